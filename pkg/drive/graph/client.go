// Package graph implements drive.Drive against the Microsoft Graph OneDrive
// REST API.
//
// Requests go through two HTTP clients: an authenticated one for the API
// itself, and a plain one for upload session URLs and copy monitor URLs,
// which are pre-authorised and must not carry the bearer token.
// https://learn.microsoft.com/en-us/onedrive/developer/rest-api/api/driveitem-createuploadsession
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/marmos91/onedrivefs/internal/logger"
	"github.com/marmos91/onedrivefs/internal/ratelimiter"
	"github.com/marmos91/onedrivefs/pkg/drive"
)

const (
	// DefaultBaseURL is the Graph v1.0 endpoint.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	// DefaultMaxThrottleRetries bounds how often one request is retried after
	// a 429 answer.
	DefaultMaxThrottleRetries = 5

	// DefaultCopyPollInterval is the delay between copy monitor polls.
	DefaultCopyPollInterval = time.Second

	// defaultRetryAfter is used when a 429 answer carries no Retry-After.
	defaultRetryAfter = time.Second

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 4096
)

// Config configures a Client.
type Config struct {
	// BaseURL is the Graph endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// DriveRoot selects the drive, e.g. "me/drive" or "drives/{id}".
	// See DriveRoot. Defaults to "me/drive".
	DriveRoot string

	// HTTPClient sends authenticated API requests (see NewHTTPClient).
	HTTPClient *http.Client

	// UploadClient sends requests to upload session and copy monitor URLs.
	// Defaults to a client without credentials.
	UploadClient *http.Client

	// Limiter paces requests and carries throttling pauses. Defaults to no
	// pacing.
	Limiter *ratelimiter.RateLimiter

	// MaxThrottleRetries bounds retries after 429 answers.
	MaxThrottleRetries int

	// CopyPollInterval is the delay between copy monitor polls.
	CopyPollInterval time.Duration
}

// Client is a drive.Drive talking to Microsoft Graph.
type Client struct {
	baseURL      string
	driveRoot    string
	api          *http.Client
	upload       *http.Client
	limiter      *ratelimiter.RateLimiter
	maxRetries   int
	pollInterval time.Duration
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DriveRoot == "" {
		cfg.DriveRoot = "me/drive"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.UploadClient == nil {
		cfg.UploadClient = &http.Client{}
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimiter.New(0, 0)
	}
	if cfg.MaxThrottleRetries == 0 {
		cfg.MaxThrottleRetries = DefaultMaxThrottleRetries
	}
	if cfg.CopyPollInterval == 0 {
		cfg.CopyPollInterval = DefaultCopyPollInterval
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		driveRoot:    cfg.DriveRoot,
		api:          cfg.HTTPClient,
		upload:       cfg.UploadClient,
		limiter:      cfg.Limiter,
		maxRetries:   cfg.MaxThrottleRetries,
		pollInterval: cfg.CopyPollInterval,
	}
}

// request describes one HTTP call. The body is kept as bytes so the request
// can be rebuilt for every throttling retry.
type request struct {
	method  string
	url     string
	body    []byte
	headers map[string]string
}

func jsonRequest(method, url string, v any) (request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return request{}, fmt.Errorf("failed to encode request body: %w", err)
	}
	return request{
		method:  method,
		url:     url,
		body:    body,
		headers: map[string]string{"Content-Type": "application/json"},
	}, nil
}

// do sends r with hc, waiting for the limiter and retrying 429 answers after
// their Retry-After delay. The caller owns the returned response body.
func (c *Client) do(ctx context.Context, hc *http.Client, r request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var body io.Reader
		if r.body != nil {
			body = bytes.NewReader(r.body)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s %s: %w", r.method, r.url, err)
		}
		for k, v := range r.headers {
			req.Header.Set(k, v)
		}

		resp, err := hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", r.method, r.url, err)
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= c.maxRetries {
			return resp, nil
		}

		wait := retryAfter(resp.Header.Get("Retry-After"))
		drainAndClose(resp)
		logger.Info("Throttled on %s %s, sleeping %s (attempt %d/%d)", r.method, r.url, wait, attempt+1, c.maxRetries)
		c.limiter.Pause(wait)
	}
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(v string) time.Duration {
	if v == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0)
	}
	return defaultRetryAfter
}

// expect returns a *drive.StatusError unless resp has one of the codes.
// The body is consumed and closed on error.
func expect(resp *http.Response, codes ...int) error {
	for _, code := range codes {
		if resp.StatusCode == code {
			return nil
		}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	drainAndClose(resp)

	return &drive.StatusError{
		Method:     resp.Request.Method,
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       string(bytes.TrimSpace(body)),
	}
}

// decode reads a JSON body into v and closes it.
func decode(resp *http.Response, v any) error {
	defer drainAndClose(resp)
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", resp.Request.URL, err)
	}
	return nil
}

// call sends r through the API client, checks the status and decodes the
// body into out when out is not nil.
func (c *Client) call(ctx context.Context, r request, out any, codes ...int) error {
	resp, err := c.do(ctx, c.api, r)
	if err != nil {
		return err
	}
	if err := expect(resp, codes...); err != nil {
		return err
	}
	if out == nil {
		drainAndClose(resp)
		return nil
	}
	return decode(resp, out)
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}

var _ drive.Drive = (*Client)(nil)
