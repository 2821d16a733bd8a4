package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

var (
	// ErrNoCredential reports an absent cache.
	ErrNoCredential = errors.New("no cached credential")
	// ErrCorruptCredential reports a cache that exists but cannot be decoded.
	ErrCorruptCredential = errors.New("credential cache is corrupt")
)

// CredentialStore persists a single credential. Save replaces whatever was
// stored before.
type CredentialStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
}

// FileStore keeps the credential as JSON in one file.
type FileStore struct {
	Path string
}

func (s FileStore) Load() (*oauth2.Token, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("read credential cache %s: %w", s.Path, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCredential, s.Path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: %s: no tokens", ErrCorruptCredential, s.Path)
	}
	return &tok, nil
}

// Save writes through a temp file and renames it over the cache.
func (s FileStore) Save(tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("save credential: nil token")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write credential cache: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace credential cache: %w", err)
	}
	return nil
}

var _ CredentialStore = FileStore{}
