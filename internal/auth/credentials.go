package auth

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
)

// Credentials are the two client-persisted keys: the opaque session token and
// the serialized identity snapshot. They are written and cleared together,
// never independently.
type Credentials struct {
	Token    string `json:"token"`
	Snapshot string `json:"snapshot"`
}

// ErrNoCredentials means the store holds nothing.
var ErrNoCredentials = errors.New("auth: no stored credentials")

// CredentialStore is the narrow revocable key-value persistence injected into
// the Provider; nothing reads it as ambient global state.
type CredentialStore interface {
	Read() (Credentials, error)
	Write(creds Credentials) error
	Clear() error
}

// MemoryCredentialStore keeps credentials in process.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds *Credentials
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)

func NewMemoryCredentialStore() *MemoryCredentialStore { return &MemoryCredentialStore{} }

func (s *MemoryCredentialStore) Read() (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return Credentials{}, ErrNoCredentials
	}
	return *s.creds, nil
}

func (s *MemoryCredentialStore) Write(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := creds
	s.creds = &cp
	return nil
}

func (s *MemoryCredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = nil
	return nil
}

// FileCredentialStore persists credentials as a mode-0600 JSON file, for CLI
// tools that keep a login between invocations.
type FileCredentialStore struct {
	path string
	mu   sync.Mutex
}

var _ CredentialStore = (*FileCredentialStore)(nil)

func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

func (s *FileCredentialStore) Read() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, err
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, err
	}
	if creds.Token == "" {
		return Credentials{}, ErrNoCredentials
	}
	return creds, nil
}

func (s *FileCredentialStore) Write(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileCredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
