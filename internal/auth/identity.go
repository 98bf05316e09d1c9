package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Identity is a user acting against the admin API: referenced, never mutated,
// by the authorization layer. Role and status changes go through the users
// facade like any other write.
type Identity struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	Active        bool      `json:"active"`
	CompanyID     string    `json:"company_id"`
	EmailVerified bool      `json:"email_verified,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// Rank is the identity's privilege rank.
func (i Identity) Rank() int { return Rank(i.Role) }

// IdentityStore resolves identities for authentication. Every authorization
// decision re-reads current role/tenant state; nothing is cached in process.
type IdentityStore interface {
	// FindByEmail returns the identity and its stored password hash.
	FindByEmail(ctx context.Context, email string) (Identity, string, error)
	Find(ctx context.Context, id string) (Identity, error)
}

// IdentityFromRecord builds an Identity out of a users document in its public
// record shape. Missing fields degrade to the least-privileged reading.
func IdentityFromRecord(rec map[string]any) Identity {
	id := Identity{
		ID:        asString(rec["id"]),
		Email:     asString(rec["email"]),
		Name:      asString(rec["name"]),
		Role:      Role(strings.ToLower(asString(rec["role"]))),
		CompanyID: asString(rec["company_id"]),
	}
	if v, ok := rec["is_active"].(bool); ok {
		id.Active = v
	}
	if v, ok := rec["email_verified"].(bool); ok {
		id.EmailVerified = v
	}
	if ts := asString(rec["created_at"]); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			id.CreatedAt = t
		}
	}
	return id
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
