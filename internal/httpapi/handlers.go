package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"stayadmin.org/internal/auth"
	"stayadmin.org/internal/obs"
	"stayadmin.org/internal/resource"
	"stayadmin.org/internal/store"
)

// List serves GET /v1/{resource}. Three read shapes share the route:
// plain paging, id= batches, and target/target_id reference listing.
func (a *API) List(w http.ResponseWriter, r *http.Request) {
	svc, identity, ok := a.resolve(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	if ids := q["id"]; len(ids) > 0 {
		recs, err := svc.GetMany(r.Context(), identity, ids)
		if err != nil {
			a.respondDomainError(w, r, svc.Name(), "read", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": recs, "total": len(recs)})
		return
	}

	page, sort, filter, err := parseQuery(q)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var res store.ListResult
	if target := q.Get("target"); target != "" {
		res, err = svc.ListReference(r.Context(), identity, target, q.Get("target_id"), page, sort, filter)
	} else {
		res, err = svc.List(r.Context(), identity, page, sort, filter)
	}
	if err != nil {
		a.respondDomainError(w, r, svc.Name(), "read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": res.Data, "total": res.Total})
}

func (a *API) Count(w http.ResponseWriter, r *http.Request) {
	svc, identity, ok := a.resolve(w, r)
	if !ok {
		return
	}
	_, _, filter, err := parseQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	total, err := svc.Count(r.Context(), identity, filter)
	if err != nil {
		a.respondDomainError(w, r, svc.Name(), "read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": total})
}

func (a *API) GetOne(w http.ResponseWriter, r *http.Request) {
	svc, identity, ok := a.resolve(w, r)
	if !ok {
		return
	}
	rec, err := svc.GetByID(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		a.respondDomainError(w, r, svc.Name(), "read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

func (a *API) Create(w http.ResponseWriter, r *http.Request) {
	svc, identity, ok := a.resolve(w, r)
	if !ok {
		return
	}
	payload, err := decodeBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := svc.Create(r.Context(), identity, payload)
	if err != nil {
		a.respondDomainError(w, r, svc.Name(), "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": rec})
}

func (a *API) Update(w http.ResponseWriter, r *http.Request) {
	svc, identity, ok := a.resolve(w, r)
	if !ok {
		return
	}
	payload, err := decodeBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := svc.Update(r.Context(), identity, r.PathValue("id"), payload)
	if err != nil {
		a.respondDomainError(w, r, svc.Name(), "update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

func (a *API) Delete(w http.ResponseWriter, r *http.Request) {
	svc, identity, ok := a.resolve(w, r)
	if !ok {
		return
	}
	rec, err := svc.Delete(r.Context(), identity, r.PathValue("id"))
	if err != nil {
		a.respondDomainError(w, r, svc.Name(), "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

func (a *API) Activate(w http.ResponseWriter, r *http.Request) {
	a.setActive(w, r, true)
}

func (a *API) Deactivate(w http.ResponseWriter, r *http.Request) {
	a.setActive(w, r, false)
}

func (a *API) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	svc, identity, ok := a.resolve(w, r)
	if !ok {
		return
	}
	var (
		rec store.Record
		err error
	)
	if active {
		rec, err = svc.Activate(r.Context(), identity, r.PathValue("id"))
	} else {
		rec, err = svc.Deactivate(r.Context(), identity, r.PathValue("id"))
	}
	if err != nil {
		a.respondDomainError(w, r, svc.Name(), "update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

// --- plumbing ---

// resolve looks up the facade by path and the identity from the request
// context. A miss has already been answered.
func (a *API) resolve(w http.ResponseWriter, r *http.Request) (*resource.Service, auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return nil, auth.Identity{}, false
	}
	svc, err := a.resources.ByName(r.PathValue("resource"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return nil, auth.Identity{}, false
	}
	return svc, identity, true
}

func parseQuery(q map[string][]string) (store.Pagination, store.Sort, store.Filter, error) {
	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	page := store.Pagination{}
	if raw := get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, store.Sort{}, nil, errors.New("page must be an integer")
		}
		page.Page = n
	}
	if raw := get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, store.Sort{}, nil, errors.New("per_page must be an integer")
		}
		page.PerPage = n
	}

	sort := store.Sort{Field: get("sort")}
	if raw := get("order"); raw != "" {
		switch strings.ToUpper(raw) {
		case string(store.SortAsc):
			sort.Order = store.SortAsc
		case string(store.SortDesc):
			sort.Order = store.SortDesc
		default:
			return page, sort, nil, errors.New("order must be ASC or DESC")
		}
	}

	filter := store.Filter{}
	if raw := get("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			return page, sort, nil, errors.New("filter must be a JSON object")
		}
	}
	if raw := get(store.FilterQueryField); raw != "" {
		filter[store.FilterQueryField] = raw
	}
	return page, sort, filter, nil
}

func decodeBody(r *http.Request) (map[string]any, error) {
	var payload map[string]any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&payload); err != nil {
		return nil, errors.New("request body must be a JSON object")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

// respondDomainError maps the error taxonomy onto HTTP statuses. Denials are
// also counted so dashboards can spot permission misconfiguration.
func (a *API) respondDomainError(w http.ResponseWriter, r *http.Request, resourceName, action string, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrSessionExpired),
		errors.Is(err, auth.ErrSessionNotFound):
		respondError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, auth.ErrForbidden):
		obs.AuthzDenied(resourceName, action)
		respondError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrUnknownResource):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, resource.ErrValidation),
		errors.Is(err, store.ErrInvalidIdentifier),
		errors.Is(err, store.ErrEmptyDocument):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrStorageUnavailable):
		respondError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		a.log.Error("request failed",
			zap.Error(err),
			zap.String("resource", resourceName),
			zap.String("action", action),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}
