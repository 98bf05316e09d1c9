package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"stayadmin.org/internal/auth"
	"stayadmin.org/internal/resource"
	"stayadmin.org/internal/store"
	"stayadmin.org/internal/store/memory"
)

type fixture struct {
	srv        *httptest.Server
	dispatcher *store.Dispatcher
	companyID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dispatcher := store.NewDispatcher(memory.New())
	ctx := context.Background()

	company, err := dispatcher.Create(ctx, "companies", map[string]any{
		"name": "Acme Stays", "is_active": true,
	})
	if err != nil {
		t.Fatalf("seed company: %v", err)
	}
	companyID := company["id"].(string)

	seedUser := func(email, role, password string) {
		hash, err := auth.HashPassword(password)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		if _, err := dispatcher.Create(ctx, "users", map[string]any{
			"email": email, "name": email, "role": role,
			"company_id": companyID, "is_active": true,
			auth.PasswordHashField: hash,
		}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	seedUser("admin@acme.test", "admin", "admin-pass-123")
	seedUser("viewer@acme.test", "viewer", "viewer-pass-123")

	manager, err := auth.NewManager(
		auth.NewDocIdentityStore(dispatcher),
		auth.NewMemorySessionStore(),
	)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	api := New(Options{
		Sessions:  manager,
		Resources: resource.NewServices(dispatcher, nil),
		Log:       zap.NewNop(),
		Version:   "test",
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, dispatcher: dispatcher, companyID: companyID}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func (f *fixture) login(t *testing.T, email, password string) string {
	t.Helper()
	resp, payload := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email": email, "password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d (%v)", resp.StatusCode, payload)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("login returned no token")
	}
	return token
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	for _, body := range []map[string]any{
		{"email": "admin@acme.test", "password": "wrong"},
		{"email": "nobody@acme.test", "password": "admin-pass-123"},
	} {
		resp, _ := f.do(t, http.MethodPost, "/v1/auth/login", "", body)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", resp.StatusCode)
		}
	}
}

func TestRequestsRequireSession(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/v1/properties", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/v1/properties", "garbage-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSessionEndpoint(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "admin@acme.test", "admin-pass-123")

	resp, payload := f.do(t, http.MethodGet, "/v1/auth/session", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	identity, _ := payload["identity"].(map[string]any)
	if identity["email"] != "admin@acme.test" || identity["role"] != "admin" {
		t.Fatalf("identity = %v", identity)
	}
}

func TestResourceCRUD(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "admin@acme.test", "admin-pass-123")

	resp, payload := f.do(t, http.MethodPost, "/v1/properties", token, map[string]any{
		"name": "Seaside Flat", "type": "apartment",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d (%v)", resp.StatusCode, payload)
	}
	data := payload["data"].(map[string]any)
	id := data["id"].(string)
	if data["company_id"] != f.companyID {
		t.Fatalf("company_id = %v", data["company_id"])
	}

	resp, payload = f.do(t, http.MethodGet, "/v1/properties", token, nil)
	if resp.StatusCode != http.StatusOK || payload["total"].(float64) != 1 {
		t.Fatalf("list = %d total %v", resp.StatusCode, payload["total"])
	}

	resp, payload = f.do(t, http.MethodGet, "/v1/properties/"+id, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}

	resp, payload = f.do(t, http.MethodPatch, "/v1/properties/"+id, token, map[string]any{
		"status": "active",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d (%v)", resp.StatusCode, payload)
	}
	if payload["data"].(map[string]any)["status"] != "active" {
		t.Fatalf("status not updated: %v", payload)
	}

	resp, payload = f.do(t, http.MethodGet, "/v1/properties/count", token, nil)
	if resp.StatusCode != http.StatusOK || payload["total"].(float64) != 1 {
		t.Fatalf("count = %d %v", resp.StatusCode, payload)
	}

	resp, _ = f.do(t, http.MethodPost, "/v1/properties/"+id+"/deactivate", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deactivate status = %d", resp.StatusCode)
	}

	resp, _ = f.do(t, http.MethodDelete, "/v1/properties/"+id, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/v1/properties/"+id, token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", resp.StatusCode)
	}
}

func TestResourceAliases(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "admin@acme.test", "admin-pass-123")
	resp, _ := f.do(t, http.MethodGet, "/v1/listings", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("alias status = %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/v1/invoices", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown resource status = %d, want 404", resp.StatusCode)
	}
}

func TestRoleEnforcementOverHTTP(t *testing.T) {
	f := newFixture(t)
	viewer := f.login(t, "viewer@acme.test", "viewer-pass-123")

	resp, _ := f.do(t, http.MethodPost, "/v1/properties", viewer, map[string]any{"name": "Nope"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer create status = %d, want 403", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/v1/properties", viewer, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("viewer list status = %d, want 200", resp.StatusCode)
	}
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "admin@acme.test", "admin-pass-123")

	resp, _ := f.do(t, http.MethodPost, "/v1/properties", token, map[string]any{"name": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank name status = %d, want 400", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/v1/properties/not-an-id", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", resp.StatusCode)
	}
}

func TestLogoutKillsSession(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "admin@acme.test", "admin-pass-123")

	resp, _ := f.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/v1/auth/session", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("session after logout = %d, want 401", resp.StatusCode)
	}
}

func TestReferenceListingOverHTTP(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "admin@acme.test", "admin-pass-123")

	_, payload := f.do(t, http.MethodPost, "/v1/properties", token, map[string]any{"name": "Flat"})
	propID := payload["data"].(map[string]any)["id"].(string)
	for i := 0; i < 2; i++ {
		resp, body := f.do(t, http.MethodPost, "/v1/numbers", token, map[string]any{
			"number": fmt.Sprintf("+1555010770%d", i), "property_id": propID,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("number create status = %d (%v)", resp.StatusCode, body)
		}
	}

	resp, payload := f.do(t, http.MethodGet,
		"/v1/numbers?target=property_id&target_id="+propID, token, nil)
	if resp.StatusCode != http.StatusOK || payload["total"].(float64) != 2 {
		t.Fatalf("reference list = %d %v", resp.StatusCode, payload)
	}
}

func TestHealthEndpointsArePublic(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, _ := f.do(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestUnmatchedPathsReturnNotFound(t *testing.T) {
	f := newFixture(t)
	// Paths no route claims fall through to the 404 handler without a
	// session; registered routes still demand one (TestRequestsRequireSession).
	for _, path := range []string{"/nope", "/v2/properties"} {
		resp, _ := f.do(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s status = %d, want 404", path, resp.StatusCode)
		}
	}
}
