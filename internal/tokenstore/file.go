package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/greencycle/greencycle/internal/model"
)

const fileMode = 0o600

// fileLayout is the on-disk document. The user is kept as raw JSON so a
// corrupt user record does not hide a valid token.
type fileLayout struct {
	AuthToken string          `json:"auth_token,omitempty"`
	User      json.RawMessage `json:"user,omitempty"`
}

// FileStore persists credentials as a JSON document readable only by the
// owner.
type FileStore struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore creates a FileStore writing to path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:   path,
		logger: logger.With("component", "tokenstore", "backend", "file"),
	}
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

// Save implements Store. The file is replaced atomically.
func (f *FileStore) Save(_ context.Context, token string, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc := fileLayout{AuthToken: token}
	if user != nil {
		raw, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		doc.User = raw
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Load implements Store.
func (f *FileStore) Load(_ context.Context) Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("session file unreadable", "error", err)
		}
		return Credentials{}
	}

	var doc fileLayout
	if err := json.Unmarshal(data, &doc); err != nil {
		f.logger.Warn("session file corrupt, ignoring", "error", err)
		return Credentials{}
	}

	creds := Credentials{Token: doc.AuthToken}
	if len(doc.User) > 0 && string(doc.User) != "null" {
		var u model.User
		if err := json.Unmarshal(doc.User, &u); err != nil {
			f.logger.Warn("cached user corrupt, ignoring", "error", err)
		} else {
			creds.User = &u
		}
	}
	return creds
}

// Clear implements Store.
func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
