package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeIdentityStore struct {
	identities map[string]Identity
	hashes     map[string]string
}

func (f *fakeIdentityStore) FindByEmail(_ context.Context, email string) (Identity, string, error) {
	for _, id := range f.identities {
		if id.Email == email {
			return id, f.hashes[id.ID], nil
		}
	}
	return Identity{}, "", ErrInvalidCredentials
}

func (f *fakeIdentityStore) Find(_ context.Context, id string) (Identity, error) {
	identity, ok := f.identities[id]
	if !ok {
		return Identity{}, errors.New("no such identity")
	}
	return identity, nil
}

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *fakeIdentityStore) {
	t.Helper()
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ids := &fakeIdentityStore{
		identities: map[string]Identity{
			"U1": {ID: "U1", Email: "agent@acme.test", Role: RoleAgent, Active: true, CompanyID: "C1"},
		},
		hashes: map[string]string{"U1": hash},
	}
	m, err := NewManager(ids, NewMemorySessionStore(), opts...)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m, ids
}

func TestLoginAndValidate(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	result, err := m.Login(ctx, "Agent@acme.test", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" || !strings.Contains(result.Token, ".") {
		t.Fatalf("token = %q", result.Token)
	}
	if !result.ExpiresAt.After(time.Now()) {
		t.Fatal("expiry not in the future")
	}

	identity, err := m.Validate(ctx, result.Token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if identity.ID != "U1" || identity.Role != RoleAgent {
		t.Fatalf("identity = %+v", identity)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	cases := []struct{ email, password string }{
		{"nobody@acme.test", "correct horse battery"},
		{"agent@acme.test", "wrong password"},
		{"", "correct horse battery"},
		{"agent@acme.test", ""},
	}
	for _, tc := range cases {
		if _, err := m.Login(ctx, tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%q, ...) err = %v, want ErrInvalidCredentials", tc.email, err)
		}
	}
}

func TestLoginInactiveIdentity(t *testing.T) {
	m, ids := newTestManager(t)
	id := ids.identities["U1"]
	id.Active = false
	ids.identities["U1"] = id

	_, err := m.Login(context.Background(), "agent@acme.test", "correct horse battery")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestValidateExpiredSession(t *testing.T) {
	now := time.Now()
	m, _ := newTestManager(t,
		WithTTL(time.Minute),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	result, err := m.Login(ctx, "agent@acme.test", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := m.Validate(ctx, result.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestValidateTamperedToken(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	result, err := m.Login(ctx, "agent@acme.test", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	sessionID := strings.SplitN(result.Token, ".", 2)[0]
	for _, token := range []string{
		"",
		"garbage",
		sessionID,
		sessionID + ".wrong-secret",
	} {
		if _, err := m.Validate(ctx, token); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("Validate(%q) err = %v, want ErrSessionNotFound", token, err)
		}
	}
}

func TestValidateDeactivatedIdentity(t *testing.T) {
	m, ids := newTestManager(t)
	ctx := context.Background()
	result, err := m.Login(ctx, "agent@acme.test", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	id := ids.identities["U1"]
	id.Active = false
	ids.identities["U1"] = id

	if _, err := m.Validate(ctx, result.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestLogoutRevokesAndIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	result, err := m.Login(ctx, "agent@acme.test", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := m.Logout(ctx, result.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := m.Validate(ctx, result.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	// Second logout and garbage tokens are fine.
	if err := m.Logout(ctx, result.Token); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if err := m.Logout(ctx, "not-even-a-token"); err != nil {
		t.Fatalf("garbage logout: %v", err)
	}
}

func TestRevokeAll(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	first, _ := m.Login(ctx, "agent@acme.test", "correct horse battery")
	second, _ := m.Login(ctx, "agent@acme.test", "correct horse battery")

	if err := m.RevokeAll(ctx, "U1"); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	for _, token := range []string{first.Token, second.Token} {
		if _, err := m.Validate(ctx, token); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("err = %v, want ErrSessionNotFound", err)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m, _ := newTestManager(t, WithSnapshotSecret("test-secret"))
	ctx := context.Background()
	result, err := m.Login(ctx, "agent@acme.test", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Snapshot == "" {
		t.Fatal("no snapshot issued")
	}

	identity, err := DecodeSnapshot(result.Snapshot, "test-secret")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if identity.Email != "agent@acme.test" || identity.Role != RoleAgent {
		t.Fatalf("identity = %+v", identity)
	}
	if _, err := DecodeSnapshot(result.Snapshot, "other-secret"); err == nil {
		t.Fatal("snapshot verified with the wrong secret")
	}
}
