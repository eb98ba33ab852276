package tokenstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrNoToken)

	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, s.Save(ctx, tok))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", got.AccessToken)
	assert.Equal(t, "r", got.RefreshToken)

	got.AccessToken = "mutated"
	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", again.AccessToken)
}

// sequenceSource hands out the given tokens in order, repeating the last.
type sequenceSource struct {
	tokens []*oauth2.Token
	calls  int
}

func (s *sequenceSource) Token() (*oauth2.Token, error) {
	i := min(s.calls, len(s.tokens)-1)
	s.calls++
	return s.tokens[i], nil
}

func TestPersistingTokenSourceSavesNewTokens(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	src := &sequenceSource{tokens: []*oauth2.Token{
		{AccessToken: "first"},
		{AccessToken: "first"},
		{AccessToken: "second", RefreshToken: "rotated"},
	}}

	ts := PersistingTokenSource(ctx, src, store, nil)

	for range 3 {
		_, err := ts.Token()
		require.NoError(t, err)
	}

	saved, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", saved.AccessToken)
	assert.Equal(t, "rotated", saved.RefreshToken)
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Save(context.Context, *oauth2.Token) error {
	return errors.New("disk full")
}

func TestPersistingTokenSourceReportsSaveErrors(t *testing.T) {
	var reported []error
	ts := PersistingTokenSource(context.Background(),
		&sequenceSource{tokens: []*oauth2.Token{{AccessToken: "x"}}},
		&failingStore{},
		func(err error) { reported = append(reported, err) })

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "x", tok.AccessToken)
	require.Len(t, reported, 1)
	assert.EqualError(t, reported[0], "disk full")
}
