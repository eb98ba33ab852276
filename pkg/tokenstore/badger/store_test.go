package badger

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/onedrivefs/pkg/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, tokenstore.ErrNoToken)

	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       expiry,
	}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "refresh", got.RefreshToken)
	assert.True(t, expiry.Equal(got.Expiry))
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(Config{Path: dir, Account: "alice"})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir, Account: "alice"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RefreshToken)
}

func TestStoreAccountsAreIsolated(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	alice, err := Open(Config{Path: dir, Account: "alice"})
	require.NoError(t, err)
	require.NoError(t, alice.Save(ctx, &oauth2.Token{AccessToken: "a"}))
	require.NoError(t, alice.Close())

	bob, err := Open(Config{Path: dir, Account: "bob"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bob.Close() })

	_, err = bob.Load(ctx)
	assert.ErrorIs(t, err, tokenstore.ErrNoToken)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
