package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"stayadmin.org/internal/store"
)

// DocIdentityStore resolves identities out of the users document table
// through the generic dispatcher, so authentication always sees the same
// state the admin surface manages. Reads go to storage on every call; stale
// cached identities must never authorize a write.
type DocIdentityStore struct {
	dispatcher *store.Dispatcher
}

var _ IdentityStore = (*DocIdentityStore)(nil)

// PasswordHashField is where the users document keeps its bcrypt hash. The
// users facade strips it from every read result.
const PasswordHashField = "password_hash"

func NewDocIdentityStore(dispatcher *store.Dispatcher) *DocIdentityStore {
	return &DocIdentityStore{dispatcher: dispatcher}
}

func (s *DocIdentityStore) FindByEmail(ctx context.Context, email string) (Identity, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	res, err := s.dispatcher.List(ctx, string(store.TableUsers),
		store.Pagination{Page: 1, PerPage: 1}, store.Sort{}, store.Filter{"email": email})
	if err != nil {
		return Identity{}, "", err
	}
	if len(res.Data) == 0 {
		return Identity{}, "", ErrInvalidCredentials
	}
	rec := res.Data[0]
	return IdentityFromRecord(rec), asString(rec[PasswordHashField]), nil
}

func (s *DocIdentityStore) Find(ctx context.Context, id string) (Identity, error) {
	rec, err := s.dispatcher.Get(ctx, string(store.TableUsers), id)
	if err != nil {
		return Identity{}, err
	}
	return IdentityFromRecord(rec), nil
}

// MemorySessionStore keeps sessions in process; tests and the smoke tool use
// it, deployments pick the Postgres or Redis store.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (s *MemorySessionStore) Create(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return errors.New("auth: session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *MemorySessionStore) Find(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *MemorySessionStore) Revoke(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.Revoked = true
	return nil
}

func (s *MemorySessionStore) RevokeByIdentity(ctx context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.IdentityID == identityID {
			session.Revoked = true
		}
	}
	return nil
}
