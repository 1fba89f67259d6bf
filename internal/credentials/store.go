// Package credentials resolves the x.com session cookies for a run: from
// the environment, a local token file or an interactive prompt.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	twitter "github.com/anatolykoptev/go-twitter-digest"
)

// ErrNotFound means a provider has no credentials to offer.
var ErrNotFound = errors.New("credentials not found")

// Provider supplies session cookies.
type Provider interface {
	Credentials(ctx context.Context) (twitter.Credentials, error)
}

// savedTokens is the on-disk token file layout.
type savedTokens struct {
	AuthToken string    `json:"auth_token"`
	CT0       string    `json:"ct0"`
	SavedAt   time.Time `json:"saved_at"`
}

// FileStore persists cookies as JSON, readable by the owner only.
type FileStore struct {
	path string
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) Path() string { return s.path }

// Credentials implements Provider.
func (s *FileStore) Credentials(context.Context) (twitter.Credentials, error) {
	return s.Load()
}

// Load reads the token file. A missing file returns ErrNotFound.
func (s *FileStore) Load() (twitter.Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return twitter.Credentials{}, ErrNotFound
		}
		return twitter.Credentials{}, fmt.Errorf("read tokens %s: %w", s.path, err)
	}
	var t savedTokens
	if err := json.Unmarshal(data, &t); err != nil {
		return twitter.Credentials{}, &twitter.ConfigurationError{Field: "credentials", Reason: fmt.Sprintf("corrupt token file %s: %v", s.path, err)}
	}
	creds := twitter.Credentials{AuthToken: t.AuthToken, CT0: t.CT0}
	if !creds.Valid() {
		return twitter.Credentials{}, &twitter.ConfigurationError{Field: "credentials", Reason: fmt.Sprintf("token file %s lacks auth_token or ct0", s.path)}
	}
	if info, err := os.Stat(s.path); err == nil && info.Mode().Perm()&0o077 != 0 {
		slog.Warn("token file is readable by other users", slog.String("path", s.path), slog.String("mode", info.Mode().Perm().String()))
	}
	slog.Debug("tokens loaded", slog.String("path", s.path), slog.Time("saved_at", t.SavedAt))
	return creds, nil
}

// Save writes the cookies with mode 0600 inside a 0700 directory.
func (s *FileStore) Save(creds twitter.Credentials) error {
	if err := s.write(creds); err != nil {
		return err
	}
	slog.Debug("tokens saved", slog.String("path", s.path))
	return nil
}

func (s *FileStore) write(creds twitter.Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := json.MarshalIndent(savedTokens{AuthToken: creds.AuthToken, CT0: creds.CT0, SavedAt: s.now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write tokens %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write tokens %s: %w", s.path, err)
	}
	return nil
}

// Update rewrites the file only when it already exists, so a rotated ct0
// is never persisted for a user who declined to save tokens. It runs inside
// a digest run and leaves logging to the caller.
func (s *FileStore) Update(creds twitter.Credentials) error {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return s.write(creds)
}

// Delete removes the token file. Deleting a missing file is not an error.
func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete tokens %s: %w", s.path, err)
	}
	return nil
}

// Env reads cookies from XDIGEST_AUTH_TOKEN and XDIGEST_CT0.
type Env struct {
	Lookup func(string) (string, bool)
}

const (
	envAuthToken = "XDIGEST_AUTH_TOKEN"
	envCT0       = "XDIGEST_CT0"
)

// Credentials implements Provider.
func (e Env) Credentials(context.Context) (twitter.Credentials, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	auth, _ := lookup(envAuthToken)
	ct0, _ := lookup(envCT0)
	creds := twitter.Credentials{AuthToken: auth, CT0: ct0}
	if !creds.Valid() {
		return twitter.Credentials{}, ErrNotFound
	}
	return creds, nil
}

// Chain tries each provider in order; ErrNotFound moves on to the next one.
type Chain []Provider

// Credentials implements Provider.
func (c Chain) Credentials(ctx context.Context) (twitter.Credentials, error) {
	for _, p := range c {
		if err := ctx.Err(); err != nil {
			return twitter.Credentials{}, err
		}
		creds, err := p.Credentials(ctx)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return creds, err
	}
	return twitter.Credentials{}, &twitter.ConfigurationError{Field: "credentials", Reason: "no session cookies available; run `xdigest login`"}
}
