// Package opener opens a filesystem from a onedrive:// URL.
//
// URL format:
//
//	onedrive://[dir]?client_id=ID[&client_secret=S][&access_token=T][&refresh_token=R]
//	    [&drive_id=D | &user_id=U | &group_id=G | &site_id=S][&base_url=B]
//
// The directory may be written after the scheme with or without a leading
// slash: onedrive://Documents/a and onedrive:///Documents/a open the same
// folder.
package opener

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/marmos91/onedrivefs/internal/logger"
	"github.com/marmos91/onedrivefs/pkg/config"
	"github.com/marmos91/onedrivefs/pkg/drive"
	"github.com/marmos91/onedrivefs/pkg/onedrivefs"
)

// Scheme is the URL scheme handled by this package.
const Scheme = "onedrive"

// ErrInvalidURL is returned for URLs that cannot be opened.
var ErrInvalidURL = errors.New("invalid onedrive URL")

// params are the query parameters accepted in a URL, each mapped onto the
// graph drive option of the same name.
var params = []string{
	"client_id",
	"client_secret",
	"access_token",
	"refresh_token",
	"drive_id",
	"user_id",
	"group_id",
	"site_id",
	"base_url",
	"token_url",
}

// Target is a parsed onedrive:// URL.
type Target struct {
	// Dir is the clean absolute folder the filesystem is rooted at.
	Dir string

	// Options holds the graph drive options given as query parameters.
	Options map[string]string
}

// Parse parses a onedrive:// URL.
func Parse(rawURL string) (*Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != Scheme {
		return nil, fmt.Errorf("%w: scheme must be %q, got %q", ErrInvalidURL, Scheme, u.Scheme)
	}

	options := make(map[string]string)
	for key, values := range u.Query() {
		if !slices.Contains(params, key) {
			return nil, fmt.Errorf("%w: unknown parameter %q", ErrInvalidURL, key)
		}
		if len(values) != 1 {
			return nil, fmt.Errorf("%w: parameter %q given %d times", ErrInvalidURL, key, len(values))
		}
		if values[0] != "" {
			options[key] = values[0]
		}
	}
	if options["client_id"] == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidURL)
	}

	// The first segment of onedrive://a/b parses as the host
	dir := drive.CleanPath(u.Host + "/" + strings.TrimPrefix(u.Path, "/"))

	return &Target{Dir: dir, Options: options}, nil
}

// Apply points cfg at the graph drive described by t. Options already present
// in cfg but absent from the URL are kept.
func (t *Target) Apply(cfg *config.Config) {
	cfg.Drive.Type = "graph"
	cfg.Drive.Root = t.Dir
	if cfg.Drive.Graph == nil {
		cfg.Drive.Graph = make(map[string]any)
	}
	for key, value := range t.Options {
		cfg.Drive.Graph[key] = value
	}
}

// Open parses rawURL, applies it on top of cfg and creates the filesystem.
// A nil cfg selects the defaults.
//
// The returned cleanup function must be called once the filesystem is no
// longer used.
func Open(ctx context.Context, rawURL string, cfg *config.Config) (*onedrivefs.FS, func() error, error) {
	target, err := Parse(rawURL)
	if err != nil {
		return nil, nil, err
	}

	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	target.Apply(cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Debug("Opening onedrive filesystem at %s", target.Dir)
	return config.CreateFilesystem(ctx, cfg)
}
