package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"stayadmin.org/internal/ids"
)

const defaultSessionTTL = 12 * time.Hour

// Session is an opaque server-side token record. Expiry is absolute, not
// sliding; renewal means re-authentication, never mutation in place.
type Session struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	TokenHash  string    `json:"token_hash"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Revoked    bool      `json:"revoked"`
}

// SessionStore persists session records.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	Revoke(ctx context.Context, id string) error
	RevokeByIdentity(ctx context.Context, identityID string) error
}

// LoginResult is what a successful login hands back to the client: the opaque
// token plus a display-only identity snapshot to persist alongside it.
type LoginResult struct {
	Token     string    `json:"token"`
	Snapshot  string    `json:"snapshot"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  Identity  `json:"identity"`
}

// Manager drives the session token lifecycle: Issued -> Valid -> (Expired | Revoked).
type Manager struct {
	identities IdentityStore
	sessions   SessionStore
	ttl        time.Duration
	now        func() time.Time
	secret     []byte
}

// ManagerOption configures Manager behavior.
type ManagerOption func(*Manager)

// WithTTL configures session lifetime.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithSnapshotSecret sets the key used to sign display-only identity snapshots.
func WithSnapshotSecret(secret string) ManagerOption {
	return func(m *Manager) {
		if strings.TrimSpace(secret) != "" {
			m.secret = []byte(secret)
		}
	}
}

// NewManager constructs a session manager.
func NewManager(identities IdentityStore, sessions SessionStore, opts ...ManagerOption) (*Manager, error) {
	if identities == nil || sessions == nil {
		return nil, errors.New("auth: identity and session stores are required")
	}
	m := &Manager{
		identities: identities,
		sessions:   sessions,
		ttl:        defaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Login authenticates credentials and issues a fresh session. All failure
// paths return ErrInvalidCredentials: unknown email and wrong password must
// be indistinguishable to the caller.
func (m *Manager) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	identity, hash, err := m.identities.FindByEmail(ctx, email)
	if err != nil {
		// Burn a comparison anyway; see VerifyPassword.
		_ = VerifyPassword("", password)
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(hash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !identity.Active {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, session, err := m.issueSession(identity.ID)
	if err != nil {
		return LoginResult{}, err
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return LoginResult{}, err
	}
	snapshot, err := m.issueSnapshot(identity, session.ExpiresAt)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		Token:     token,
		Snapshot:  snapshot,
		ExpiresAt: session.ExpiresAt,
		Identity:  identity,
	}, nil
}

// Validate resolves a token into a live identity. Expired sessions fail with
// ErrSessionExpired; unknown or revoked tokens with ErrSessionNotFound. A
// deactivated identity is indistinguishable from a revoked session.
func (m *Manager) Validate(ctx context.Context, token string) (Identity, error) {
	sessionID, secret, err := splitToken(token)
	if err != nil {
		return Identity{}, ErrSessionNotFound
	}
	session, err := m.sessions.Find(ctx, sessionID)
	if err != nil {
		return Identity{}, ErrSessionNotFound
	}
	if session.Revoked {
		return Identity{}, ErrSessionNotFound
	}
	if !m.now().Before(session.ExpiresAt) {
		return Identity{}, ErrSessionExpired
	}
	if !compareTokenHash(session.TokenHash, secret) {
		return Identity{}, ErrSessionNotFound
	}
	identity, err := m.identities.Find(ctx, session.IdentityID)
	if err != nil {
		return Identity{}, ErrSessionNotFound
	}
	if !identity.Active {
		return Identity{}, ErrSessionNotFound
	}
	return identity, nil
}

// Logout revokes the session behind the token. Revoking an unknown or
// already-dead token is not an error: logout is best-effort and the caller
// clears local credentials regardless.
func (m *Manager) Logout(ctx context.Context, token string) error {
	sessionID, _, err := splitToken(token)
	if err != nil {
		return nil
	}
	if err := m.sessions.Revoke(ctx, sessionID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// RevokeAll revokes every session of the identity (password change, offboarding).
func (m *Manager) RevokeAll(ctx context.Context, identityID string) error {
	return m.sessions.RevokeByIdentity(ctx, identityID)
}

func (m *Manager) issueSession(identityID string) (string, *Session, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	now := m.now().UTC()
	session := &Session{
		ID:         ids.New(),
		IdentityID: identityID,
		TokenHash:  hashSecret(secret),
		IssuedAt:   now,
		ExpiresAt:  now.Add(m.ttl),
	}
	return session.ID + "." + secret, session, nil
}

func splitToken(raw string) (id, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid token format")
	}
	return parts[0], parts[1], nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func compareTokenHash(expected, secret string) bool {
	actual := hashSecret(secret)
	if len(expected) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}
