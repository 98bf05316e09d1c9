// Package httpapi is the HTTP surface of the admin backend: session
// endpoints plus a uniform REST mapping onto the resource facades.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"stayadmin.org/internal/auth"
	"stayadmin.org/internal/obs"
	"stayadmin.org/internal/resource"
)

// ReadyProbe reports whether the backing store can serve traffic.
type ReadyProbe struct {
	DB   *sql.DB
	Ping func(ctx context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Ping != nil {
		return rp.Ping(ctx)
	}
	if rp.DB != nil {
		return rp.DB.PingContext(ctx)
	}
	return nil
}

// Options carries everything the API needs; all fields except Resources and
// Sessions are optional.
type Options struct {
	Sessions   *auth.Manager
	Resources  *resource.Services
	Ready      ReadyProbe
	Log        *zap.Logger
	Version    string
	RatePerSec int
	RateBurst  int
	MaxBody    int64
}

// API is the HTTP layer.
type API struct {
	mux       *http.ServeMux
	sessions  *auth.Manager
	resources *resource.Services
	ready     ReadyProbe
	log       *zap.Logger
	version   string
	opts      Options
}

func New(opts Options) *API {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 50
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 100
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 1 << 20
	}
	a := &API{
		mux:       http.NewServeMux(),
		sessions:  opts.Sessions,
		resources: opts.Resources,
		ready:     opts.Ready,
		log:       opts.Log,
		version:   opts.Version,
		opts:      opts,
	}

	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/auth/login", a.Login)
	a.mux.HandleFunc("POST /v1/auth/logout", a.Logout)
	a.mux.HandleFunc("GET /v1/auth/session", a.Session)

	a.mux.HandleFunc("GET /v1/{resource}", a.List)
	a.mux.HandleFunc("POST /v1/{resource}", a.Create)
	a.mux.HandleFunc("GET /v1/{resource}/count", a.Count)
	a.mux.HandleFunc("GET /v1/{resource}/{id}", a.GetOne)
	a.mux.HandleFunc("PATCH /v1/{resource}/{id}", a.Update)
	a.mux.HandleFunc("PUT /v1/{resource}/{id}", a.Update)
	a.mux.HandleFunc("DELETE /v1/{resource}/{id}", a.Delete)
	a.mux.HandleFunc("POST /v1/{resource}/{id}/activate", a.Activate)
	a.mux.HandleFunc("POST /v1/{resource}/{id}/deactivate", a.Deactivate)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux with the full middleware chain. Order matters:
// metrics and logging see every request, authentication runs innermost so
// rejects are still observed.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, a.opts.MaxBody)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RateLimit(h, a.opts.RateBurst, a.opts.RatePerSec)
	h = Logging(a.log, h)
	h = RequestID(h)
	return obs.Instrument("api", h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "stayadmin-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "stayadmin-api",
		"version": a.version,
	})
}
