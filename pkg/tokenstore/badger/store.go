// Package badger stores OAuth tokens in an embedded BadgerDB database.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/onedrivefs/pkg/tokenstore"
	"golang.org/x/oauth2"
)

// Config configures a Store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in memory (tests only).
	InMemory bool

	// Account namespaces the token so several accounts can share one
	// database. Defaults to "default".
	Account string
}

// Store is a tokenstore.Store backed by BadgerDB.
//
// Tokens are stored as JSON under the key "token/<account>".
type Store struct {
	db  *badger.DB
	key []byte
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger token store: path is required")
	}
	if cfg.Account == "" {
		cfg.Account = "default"
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}

	return &Store{db: db, key: []byte("token/" + cfg.Account)}, nil
}

// Load implements tokenstore.Store.
func (s *Store) Load(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var token oauth2.Token
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return tokenstore.ErrNoToken
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &token)
		})
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Save implements tokenstore.Store.
func (s *Store) Save(ctx context.Context, token *oauth2.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, data)
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ tokenstore.Store = (*Store)(nil)
