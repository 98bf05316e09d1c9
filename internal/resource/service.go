// Package resource composes the permission matrix and tenant scoping in
// front of the generic CRUD dispatcher, one facade per business resource.
package resource

import (
	"context"
	"errors"
	"fmt"

	"stayadmin.org/internal/audit"
	"stayadmin.org/internal/auth"
	"stayadmin.org/internal/store"
)

// ErrValidation marks business-rule failures (duplicate name, bad status).
var ErrValidation = errors.New("resource: validation failed")

// ActiveField is the soft-disable flag carried by every document.
const ActiveField = "is_active"

// TenantField is the ownership reference injected into reads and writes.
const TenantField = "company_id"

type validateFunc func(ctx context.Context, s *Service, identity auth.Identity, id string, data map[string]any) error

type sanitizeFunc func(rec store.Record) store.Record

// Service is the authorization facade for one business resource. Every
// operation takes the acting identity explicitly and runs the same fixed
// order: identity check, permission check, tenant ownership, business
// validation, dispatch. Reordering any of these would bypass authorization.
type Service struct {
	name       string
	dispatcher *store.Dispatcher
	recorder   *audit.Recorder

	// scopeByID marks resources whose records ARE tenants (companies):
	// ownership is the record id itself rather than a tenant field.
	scopeByID      bool
	validateCreate validateFunc
	validateUpdate validateFunc
	validateDelete validateFunc
	sanitize       sanitizeFunc
}

// Dispatcher exposes the underlying dispatcher to validation rules that need
// cross-resource lookups (e.g. a number referencing its property).
func (s *Service) Dispatcher() *store.Dispatcher { return s.dispatcher }

// Name returns the canonical resource name.
func (s *Service) Name() string { return s.name }

// List returns one page of the tenant's records plus the filtered total.
func (s *Service) List(ctx context.Context, identity auth.Identity, page store.Pagination, sort store.Sort, filter store.Filter) (store.ListResult, error) {
	if err := s.authorize(identity, auth.ActionRead); err != nil {
		return store.ListResult{}, err
	}
	res, err := s.dispatcher.List(ctx, s.name, page, sort, s.scopedFilter(identity, filter))
	if err != nil {
		return store.ListResult{}, err
	}
	return s.sanitizeList(res), nil
}

// ListReference lists records related to a target record, e.g. the numbers
// belonging to a property. The tenant predicate still applies.
func (s *Service) ListReference(ctx context.Context, identity auth.Identity, targetField, targetID string, page store.Pagination, sort store.Sort, filter store.Filter) (store.ListResult, error) {
	if err := s.authorize(identity, auth.ActionRead); err != nil {
		return store.ListResult{}, err
	}
	res, err := s.dispatcher.GetManyReference(ctx, s.name, targetField, targetID, page, sort, s.scopedFilter(identity, filter))
	if err != nil {
		return store.ListResult{}, err
	}
	return s.sanitizeList(res), nil
}

// Count returns the number of the tenant's records matching the filter.
func (s *Service) Count(ctx context.Context, identity auth.Identity, filter store.Filter) (int, error) {
	if err := s.authorize(identity, auth.ActionRead); err != nil {
		return 0, err
	}
	return s.dispatcher.Count(ctx, s.name, s.scopedFilter(identity, filter))
}

// GetMany fetches several records by id. Records the tenant does not own are
// silently absent from the result, mirroring a filtered read.
func (s *Service) GetMany(ctx context.Context, identity auth.Identity, ids []string) ([]store.Record, error) {
	if err := s.authorize(identity, auth.ActionRead); err != nil {
		return nil, err
	}
	recs, err := s.dispatcher.GetMany(ctx, s.name, ids)
	if err != nil {
		return nil, err
	}
	owned := make([]store.Record, 0, len(recs))
	for _, rec := range recs {
		if s.owns(identity, rec) {
			owned = append(owned, s.sanitizeOne(rec))
		}
	}
	return owned, nil
}

// GetByID fetches a single owned record.
func (s *Service) GetByID(ctx context.Context, identity auth.Identity, id string) (store.Record, error) {
	if err := s.authorize(identity, auth.ActionRead); err != nil {
		return nil, err
	}
	id, err := s.canonicalID(id)
	if err != nil {
		return nil, err
	}
	rec, err := s.fetchOwned(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	return s.sanitizeOne(rec), nil
}

// Create sanitizes the payload, applies business rules and inserts. The
// tenant reference is always the acting identity's, whatever the caller sent.
func (s *Service) Create(ctx context.Context, identity auth.Identity, data map[string]any) (store.Record, error) {
	if err := s.authorize(identity, auth.ActionCreate); err != nil {
		return nil, err
	}
	payload := copyPayload(data)
	if !s.scopeByID {
		payload[TenantField] = identity.CompanyID
	}
	if _, ok := payload[ActiveField]; !ok {
		payload[ActiveField] = true
	}
	if s.validateCreate != nil {
		if err := s.validateCreate(ctx, s, identity, "", payload); err != nil {
			return nil, err
		}
	}
	rec, err := s.dispatcher.Create(ctx, s.name, payload)
	if err != nil {
		return nil, err
	}
	s.record(ctx, identity, "create", rec)
	return s.sanitizeOne(rec), nil
}

// Update applies a partial merge to an owned record.
func (s *Service) Update(ctx context.Context, identity auth.Identity, id string, data map[string]any) (store.Record, error) {
	if err := s.authorize(identity, auth.ActionUpdate); err != nil {
		return nil, err
	}
	id, err := s.canonicalID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.fetchOwned(ctx, identity, id); err != nil {
		return nil, err
	}
	payload := copyPayload(data)
	// The tenant reference never moves through a payload.
	delete(payload, TenantField)
	if s.validateUpdate != nil {
		if err := s.validateUpdate(ctx, s, identity, id, payload); err != nil {
			return nil, err
		}
	}
	rec, err := s.dispatcher.Update(ctx, s.name, id, payload)
	if err != nil {
		return nil, err
	}
	s.record(ctx, identity, "update", rec)
	return s.sanitizeOne(rec), nil
}

// Delete removes an owned record and returns its last state.
func (s *Service) Delete(ctx context.Context, identity auth.Identity, id string) (store.Record, error) {
	if err := s.authorize(identity, auth.ActionDelete); err != nil {
		return nil, err
	}
	id, err := s.canonicalID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.fetchOwned(ctx, identity, id); err != nil {
		return nil, err
	}
	if s.validateDelete != nil {
		if err := s.validateDelete(ctx, s, identity, id, nil); err != nil {
			return nil, err
		}
	}
	rec, err := s.dispatcher.Delete(ctx, s.name, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, identity, "delete", rec)
	return s.sanitizeOne(rec), nil
}

// Activate re-enables a soft-disabled record.
func (s *Service) Activate(ctx context.Context, identity auth.Identity, id string) (store.Record, error) {
	return s.setActive(ctx, identity, id, true)
}

// Deactivate soft-disables a record without deleting it.
func (s *Service) Deactivate(ctx context.Context, identity auth.Identity, id string) (store.Record, error) {
	return s.setActive(ctx, identity, id, false)
}

func (s *Service) setActive(ctx context.Context, identity auth.Identity, id string, active bool) (store.Record, error) {
	if err := s.authorize(identity, auth.ActionUpdate); err != nil {
		return nil, err
	}
	id, err := s.canonicalID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.fetchOwned(ctx, identity, id); err != nil {
		return nil, err
	}
	payload := map[string]any{ActiveField: active}
	if s.validateUpdate != nil {
		if err := s.validateUpdate(ctx, s, identity, id, payload); err != nil {
			return nil, err
		}
	}
	rec, err := s.dispatcher.Update(ctx, s.name, id, payload)
	if err != nil {
		return nil, err
	}
	action := "deactivate"
	if active {
		action = "activate"
	}
	s.record(ctx, identity, action, rec)
	return s.sanitizeOne(rec), nil
}

// Internals ---------------------------------------------------------------

// canonicalID normalizes a client-supplied id before any validation sees it.
// Validators compare ids against stored canonical ids (self-edit guards,
// uniqueness self-matches), so a raw lowercase id must never reach them.
func (s *Service) canonicalID(id string) (string, error) {
	return store.NormalizeID(store.Table(s.name), id)
}

func (s *Service) authorize(identity auth.Identity, action auth.Action) error {
	if identity.ID == "" || !identity.Active {
		return auth.ErrUnauthenticated
	}
	if !auth.Allowed(identity.Role, s.name, action) {
		return auth.ErrForbidden
	}
	return nil
}

// fetchOwned resolves the record and checks tenant ownership. A mismatch
// fails exactly like a missing record: other tenants' ids must not be
// distinguishable from nonexistent ones.
func (s *Service) fetchOwned(ctx context.Context, identity auth.Identity, id string) (store.Record, error) {
	rec, err := s.dispatcher.Get(ctx, s.name, id)
	if err != nil {
		return nil, err
	}
	if !s.owns(identity, rec) {
		return nil, fmt.Errorf("%w: %s %s", store.ErrNotFound, s.name, id)
	}
	return rec, nil
}

func (s *Service) owns(identity auth.Identity, rec store.Record) bool {
	if s.scopeByID {
		owner, _ := rec[store.PublicIDField].(string)
		return owner == identity.CompanyID
	}
	owner, _ := rec[TenantField].(string)
	return owner == identity.CompanyID
}

func (s *Service) scopedFilter(identity auth.Identity, filter store.Filter) store.Filter {
	scoped := filter.Clone()
	if s.scopeByID {
		scoped[store.PublicIDField] = identity.CompanyID
	} else {
		scoped[TenantField] = identity.CompanyID
	}
	return scoped
}

func (s *Service) sanitizeOne(rec store.Record) store.Record {
	if s.sanitize == nil {
		return rec
	}
	return s.sanitize(rec)
}

func (s *Service) sanitizeList(res store.ListResult) store.ListResult {
	if s.sanitize == nil {
		return res
	}
	for i, rec := range res.Data {
		res.Data[i] = s.sanitize(rec)
	}
	return res
}

func (s *Service) record(ctx context.Context, identity auth.Identity, action string, rec store.Record) {
	if s.recorder == nil {
		return
	}
	recordID, _ := rec[store.PublicIDField].(string)
	s.recorder.Event(ctx, identity, s.name+"."+action, s.name, recordID, nil)
}

func copyPayload(data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+2)
	for k, v := range data {
		out[k] = v
	}
	return out
}
