package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"stayadmin.org/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for an opaque session token plus the identity
// snapshot. Every failure mode answers the same 401 so callers cannot probe
// which emails exist.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		a.log.Error("login failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      result.Token,
		"snapshot":   result.Snapshot,
		"expires_at": result.ExpiresAt,
		"identity":   identityPayload(result.Identity),
	})
}

// Logout revokes the presented session. A bad or already-revoked token still
// answers 204: the caller's goal is a dead session either way.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.sessions.Logout(r.Context(), token); err != nil {
		a.log.Error("logout failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session returns the authoritative identity behind the presented token.
func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": identityPayload(identity)})
}

func identityPayload(identity auth.Identity) map[string]any {
	return map[string]any{
		"id":         identity.ID,
		"email":      identity.Email,
		"name":       identity.Name,
		"role":       identity.Role,
		"company_id": identity.CompanyID,
		"is_active":  identity.Active,
	}
}
