package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/marmos91/onedrivefs/internal/logger"
	"github.com/marmos91/onedrivefs/pkg/tokenstore"
	"golang.org/x/oauth2"
)

// DefaultTokenURL is the token endpoint for personal Microsoft accounts.
// Replace "consumers" with "organizations", "common" or a tenant id for other
// account types.
const DefaultTokenURL = "https://login.microsoftonline.com/consumers/oauth2/v2.0/token"

// DefaultScopes are the delegated permissions the filesystem needs.
var DefaultScopes = []string{"offline_access", "Files.ReadWrite"}

// AuthConfig configures the authenticated HTTP client.
type AuthConfig struct {
	ClientID     string
	ClientSecret string

	// TokenURL defaults to DefaultTokenURL.
	TokenURL string

	// Scopes defaults to DefaultScopes.
	Scopes []string

	// AccessToken and RefreshToken seed the token when Store holds none.
	AccessToken  string
	RefreshToken string

	// Store persists refreshed tokens. Defaults to an in-memory store.
	Store tokenstore.Store
}

// NewHTTPClient returns an HTTP client that authenticates every request with
// a bearer token, refreshing it when it expires and saving each new token to
// cfg.Store.
//
// A token found in the store wins over the seed tokens in cfg, since the
// service rotates refresh tokens and the stored one is the most recent.
func NewHTTPClient(ctx context.Context, cfg AuthConfig) (*http.Client, error) {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.Store == nil {
		cfg.Store = tokenstore.NewMemoryStore()
	}

	token, err := cfg.Store.Load(ctx)
	switch {
	case errors.Is(err, tokenstore.ErrNoToken):
		if cfg.AccessToken == "" && cfg.RefreshToken == "" {
			return nil, errors.New("no stored token and no access or refresh token configured")
		}
		// An empty access token is invalid and refreshed on first use.
		token = &oauth2.Token{AccessToken: cfg.AccessToken, RefreshToken: cfg.RefreshToken, TokenType: "Bearer"}
	case err != nil:
		return nil, fmt.Errorf("failed to load token: %w", err)
	default:
		logger.Debug("Using stored token (expires %s)", token.Expiry)
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	src := tokenstore.PersistingTokenSource(ctx, conf.TokenSource(ctx, token), cfg.Store, func(err error) {
		logger.Warn("Failed to save refreshed token: %v", err)
	})
	return oauth2.NewClient(ctx, src), nil
}
