package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The snapshot is a signed copy of the identity persisted client-side next to
// the opaque token. Clients may decode it for optimistic UI display; the
// server never accepts it as proof of anything. Every privileged operation
// re-validates the opaque token.

type snapshotClaims struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
	jwt.RegisteredClaims
}

func (m *Manager) issueSnapshot(identity Identity, expiresAt time.Time) (string, error) {
	if len(m.secret) == 0 {
		return "", nil
	}
	claims := snapshotClaims{
		Email:     identity.Email,
		Name:      identity.Name,
		Role:      string(identity.Role),
		CompanyID: identity.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(m.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// DecodeSnapshot verifies and decodes a persisted identity snapshot. It is a
// display helper only and does not consult the session store.
func DecodeSnapshot(token string, secret string) (Identity, error) {
	if secret == "" {
		return Identity{}, errors.New("auth: snapshot secret is empty")
	}
	var claims snapshotClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, errors.New("auth: invalid snapshot")
	}
	return Identity{
		ID:        claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      Role(claims.Role),
		Active:    true,
		CompanyID: claims.CompanyID,
	}, nil
}
