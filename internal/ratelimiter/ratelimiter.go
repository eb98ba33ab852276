package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces outgoing requests to the remote drive.
//
// It combines two mechanisms:
//   - A token bucket (golang.org/x/time/rate) that enforces a sustained request
//     rate with a configurable burst.
//   - A shared pause window, set by Pause when the service answers with a
//     throttling response (HTTP 429 + Retry-After). Every caller waits for the
//     window to pass before taking a token, so one throttled request slows the
//     whole client down instead of each request discovering the limit itself.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter

	mu          sync.Mutex
	pausedUntil time.Time

	// now and sleep are replaced in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a RateLimiter allowing requestsPerSecond sustained requests with
// the given burst.
//
// Special cases:
//   - requestsPerSecond = 0: no pacing (only Pause windows apply)
//   - burst = 0 with a non-zero rate: burst defaults to 1
func New(requestsPerSecond, burst uint) *RateLimiter {
	var limiter *rate.Limiter
	if requestsPerSecond == 0 {
		limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		if burst == 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst))
	}

	return &RateLimiter{
		limiter: limiter,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Wait blocks until a request may be sent or ctx is done. A nil RateLimiter
// never blocks.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return ctx.Err()
	}
	if d := r.pauseRemaining(); d > 0 {
		if err := r.sleep(ctx, d); err != nil {
			return err
		}
	}
	return r.limiter.Wait(ctx)
}

// Pause stops all callers from sending for d. Overlapping pauses extend the
// window to the latest deadline; a shorter pause never shortens it.
func (r *RateLimiter) Pause(d time.Duration) {
	if r == nil || d <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	until := r.now().Add(d)
	if until.After(r.pausedUntil) {
		r.pausedUntil = until
	}
}

// PausedFor reports how long callers still have to wait. Zero when not paused.
func (r *RateLimiter) PausedFor() time.Duration {
	return r.pauseRemaining()
}

func (r *RateLimiter) pauseRemaining() time.Duration {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.pausedUntil.Sub(r.now())
	if d < 0 {
		return 0
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
