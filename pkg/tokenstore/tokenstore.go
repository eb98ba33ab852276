// Package tokenstore persists OAuth tokens between runs so a refreshed
// refresh token is not lost when the process exits.
package tokenstore

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/oauth2"
)

// ErrNoToken indicates the store holds no token yet.
var ErrNoToken = errors.New("no token stored")

// Store loads and saves one OAuth token.
type Store interface {
	// Load returns the stored token or ErrNoToken.
	Load(ctx context.Context) (*oauth2.Token, error)

	// Save replaces the stored token.
	Save(ctx context.Context, token *oauth2.Token) error
}

// MemoryStore keeps the token in memory. Tokens do not survive a restart.
type MemoryStore struct {
	mu    sync.Mutex
	token *oauth2.Token
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return nil, ErrNoToken
	}
	t := *s.token
	return &t, nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := *token
	s.token = &t
	return nil
}

// PersistingTokenSource returns a TokenSource that saves every new token
// obtained from src to store. Save failures are reported through onError and
// do not fail the request.
func PersistingTokenSource(ctx context.Context, src oauth2.TokenSource, store Store, onError func(error)) oauth2.TokenSource {
	return &persistingSource{ctx: ctx, src: src, store: store, onError: onError}
}

type persistingSource struct {
	ctx     context.Context
	src     oauth2.TokenSource
	store   Store
	onError func(error)

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	token, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if token.AccessToken != p.last {
		if err := p.store.Save(p.ctx, token); err != nil && p.onError != nil {
			p.onError(err)
		}
		p.last = token.AccessToken
	}
	return token, nil
}

var _ Store = (*MemoryStore)(nil)
