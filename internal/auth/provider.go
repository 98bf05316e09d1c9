package auth

import (
	"context"
	"errors"
)

// SessionAPI is the session subsystem as the client sees it: opaque remote
// calls. *Manager satisfies it in process; a deployed UI would satisfy it
// over HTTP.
type SessionAPI interface {
	Login(ctx context.Context, email, password string) (LoginResult, error)
	Validate(ctx context.Context, token string) (Identity, error)
	Logout(ctx context.Context, token string) error
}

var _ SessionAPI = (*Manager)(nil)

// Provider is the caller-side session context: it owns the persisted
// credentials and keeps them consistent with server-side session state.
type Provider struct {
	api   SessionAPI
	creds CredentialStore
}

// NewProvider wires a provider; the credential store is injected, never
// referenced as a global.
func NewProvider(api SessionAPI, creds CredentialStore) (*Provider, error) {
	if api == nil || creds == nil {
		return nil, errors.New("auth: session api and credential store are required")
	}
	return &Provider{api: api, creds: creds}, nil
}

// Login authenticates and persists token and snapshot together.
func (p *Provider) Login(ctx context.Context, email, password string) (Identity, error) {
	result, err := p.api.Login(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	if err := p.creds.Write(Credentials{Token: result.Token, Snapshot: result.Snapshot}); err != nil {
		return Identity{}, err
	}
	return result.Identity, nil
}

// Resolve validates the stored token against the server. On an expired or
// unknown session the stored credentials are purged before the error is
// returned, forcing re-authentication.
func (p *Provider) Resolve(ctx context.Context) (Identity, error) {
	creds, err := p.creds.Read()
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}
	identity, err := p.api.Validate(ctx, creds.Token)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrSessionNotFound) {
			_ = p.creds.Clear()
		}
		return Identity{}, err
	}
	return identity, nil
}

// Token exposes the stored session token for outbound requests.
func (p *Provider) Token() (string, error) {
	creds, err := p.creds.Read()
	if err != nil {
		return "", ErrUnauthenticated
	}
	return creds.Token, nil
}

// Logout revokes the session best-effort and always clears local credentials:
// a revoke failure must not leave the device logged in.
func (p *Provider) Logout(ctx context.Context) error {
	creds, err := p.creds.Read()
	if err == nil && creds.Token != "" {
		_ = p.api.Logout(ctx, creds.Token)
	}
	return p.creds.Clear()
}

// CachedIdentity decodes the persisted snapshot for optimistic UI display.
// It proves nothing; Resolve is the authority.
func (p *Provider) CachedIdentity(secret string) (Identity, bool) {
	creds, err := p.creds.Read()
	if err != nil || creds.Snapshot == "" {
		return Identity{}, false
	}
	identity, err := DecodeSnapshot(creds.Snapshot, secret)
	if err != nil {
		return Identity{}, false
	}
	return identity, true
}
