package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

// FileName is the CLI token file inside data_dir.
const FileName = "session.json"

// DefaultKeyringService names the keyring entry holding the CLI token.
const DefaultKeyringService = "inkwell"

// TokenStores lists the accepted session.store values.
var TokenStores = []string{"file", "keyring"}

// TokenStore persists the CLI bearer token between invocations.
type TokenStore interface {
	// Load returns "" when no token has been saved.
	Load() (string, error)
	Save(token string) error
	// Forget succeeds when nothing is saved.
	Forget() error
}

// NewTokenStore returns the store for kind; dataDir holds the file store.
func NewTokenStore(kind, dataDir string) (TokenStore, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "file":
		return FileStore{Path: filepath.Join(dataDir, FileName)}, nil
	case "keyring":
		return KeyringStore{User: dataDir}, nil
	}
	return nil, fmt.Errorf("unknown session store %q", kind)
}

// FileStore keeps the token in a JSON file.
type FileStore struct{ Path string }

func (s FileStore) Load() (string, error)    { return LoadToken(s.Path) }
func (s FileStore) Save(token string) error { return SaveToken(s.Path, token) }
func (s FileStore) Forget() error           { return Forget(s.Path) }

// KeyringStore keeps the token in the system keyring. User separates
// tokens of different data directories.
type KeyringStore struct {
	Service string
	User    string
}

func (s KeyringStore) Load() (string, error) {
	tok, err := keyring.Get(s.service(), s.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return tok, err
}

func (s KeyringStore) Save(token string) error {
	return keyring.Set(s.service(), s.User, token)
}

func (s KeyringStore) Forget() error {
	err := keyring.Delete(s.service(), s.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func (s KeyringStore) service() string {
	if s.Service != "" {
		return s.Service
	}
	return DefaultKeyringService
}

type stored struct {
	Token string `json:"token"`
}

// SaveToken writes the bearer token with owner-only permissions.
func SaveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.Marshal(stored{Token: token})
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// LoadToken returns "" when no token has been saved.
func LoadToken(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var s stored
	if err := json.Unmarshal(b, &s); err != nil {
		return "", err
	}
	return s.Token, nil
}

// Forget removes the token file; a missing file is not an error.
func Forget(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
