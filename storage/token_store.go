package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

const (
	schemaVersion = "1"
	lockTimeout   = 5 * time.Second
)

// TokenStore keeps one OAuth token in a JSON file.
type TokenStore struct {
	path string
}

// tokenFile is the on-disk layout.
type tokenFile struct {
	Version   string        `json:"version"`
	UpdatedAt time.Time     `json:"updated_at"`
	Token     *oauth2.Token `json:"token"`
}

// NewTokenStore returns a store backed by path. Nothing is read until Load.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Path returns the token file location.
func (s *TokenStore) Path() string { return s.path }

// Load returns the cached token. It fails with ErrNotFound when no token has
// been saved and ErrStorageCorrupt when the file cannot be decoded.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &StorageError{Op: "read", Entity: "token", ID: s.path, Err: ErrNotFound}
		}
		return nil, &StorageError{Op: "read", Entity: "token", ID: s.path, Err: err}
	}

	var f tokenFile
	if err := json.Unmarshal(data, &f); err != nil || f.Token == nil {
		return nil, &StorageError{Op: "read", Entity: "token", ID: s.path, Err: ErrStorageCorrupt}
	}
	return f.Token, nil
}

// Save replaces the cached token. Concurrent savers are serialised with a
// file lock; readers never see a partial file.
func (s *TokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return &StorageError{Op: "write", Entity: "token", ID: s.path, Err: ErrInvalidInput}
	}

	// The lock file lives next to the token, so the directory must exist first.
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return &StorageError{Op: "write", Entity: "token", ID: s.path, Err: err}
	}

	lock := NewFileLock(s.path)
	if err := lock.Lock(ctx, lockTimeout); err != nil {
		return err
	}
	defer lock.Unlock()

	writer, err := NewAtomicWriter(s.path)
	if err != nil {
		return &StorageError{Op: "write", Entity: "token", ID: s.path, Err: err}
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	f := tokenFile{Version: schemaVersion, UpdatedAt: time.Now().UTC(), Token: tok}
	if err := encoder.Encode(f); err != nil {
		writer.Abort()
		return &StorageError{Op: "write", Entity: "token", ID: s.path, Err: err}
	}

	if err := writer.Commit(); err != nil {
		return &StorageError{Op: "write", Entity: "token", ID: s.path, Err: err}
	}
	return nil
}

// Delete removes the cached token. Deleting a missing token is not an error.
func (s *TokenStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StorageError{Op: "delete", Entity: "token", ID: s.path, Err: err}
	}
	return nil
}
