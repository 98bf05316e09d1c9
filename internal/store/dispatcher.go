package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stayadmin.org/internal/ids"
)

// Backend is the storage transport beneath the dispatcher. Implementations
// work in storage shape (documents with IDField) and report taxonomy errors
// (ErrNotFound, ErrConflict) for expected conditions; anything else is
// treated as a transport failure.
type Backend interface {
	List(ctx context.Context, table Table, q Query) ([]Document, int, error)
	Get(ctx context.Context, table Table, id string) (Document, error)
	GetMany(ctx context.Context, table Table, ids []string) ([]Document, error)
	Insert(ctx context.Context, table Table, doc Document) (Document, error)
	Update(ctx context.Context, table Table, id string, fields Fields) (Document, error)
	Delete(ctx context.Context, table Table, id string) (Document, error)
}

// ListResult carries one page of records plus the filtered total.
type ListResult struct {
	Data  []Record `json:"data"`
	Total int      `json:"total"`
}

// Dispatcher implements the generic CRUD verbs against any registered table.
// It owns name resolution, identifier normalization and document mapping; the
// backend only ever sees canonical tables and native identifiers.
type Dispatcher struct {
	backend Backend
	newID   func() string
	observe func(resource, op string, d time.Duration)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithIDGenerator overrides storage id generation (useful for tests).
func WithIDGenerator(fn func() string) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.newID = fn
		}
	}
}

// WithObserver installs a latency hook called after every backend operation.
func WithObserver(fn func(resource, op string, d time.Duration)) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.observe = fn
		}
	}
}

// NewDispatcher wires a dispatcher over the given backend.
func NewDispatcher(backend Backend, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		backend: backend,
		newID:   ids.New,
		observe: func(string, string, time.Duration) {},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) track(resource, op string, start time.Time) {
	d.observe(resource, op, time.Since(start))
}

// NormalizeID converts a client-supplied identifier into the storage-native
// form for the table, failing with ErrInvalidIdentifier on malformed input.
// Accepting a malformed id as a no-op would silently return wrong results.
func NormalizeID(table Table, raw string) (string, error) {
	id, err := ids.Normalize(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q for table %s", ErrInvalidIdentifier, raw, table)
	}
	return id, nil
}

// List returns one page of public records plus the filtered total.
func (d *Dispatcher) List(ctx context.Context, resource string, page Pagination, sort Sort, filter Filter) (ListResult, error) {
	table, err := Resolve(resource)
	if err != nil {
		return ListResult{}, err
	}
	q := Query{
		Pagination: page.Normalize(),
		Sort:       toStorageSort(sort),
		Filter:     toStorageFilter(filter),
	}
	defer d.track(string(table), "list", time.Now())
	docs, total, err := d.backend.List(ctx, table, q)
	if err != nil {
		return ListResult{}, wrapBackend(err)
	}
	data := make([]Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := ToPublic(doc)
		if err != nil {
			return ListResult{}, err
		}
		data = append(data, rec)
	}
	return ListResult{Data: data, Total: total}, nil
}

// Get fetches a single record by id.
func (d *Dispatcher) Get(ctx context.Context, resource, rawID string) (Record, error) {
	table, err := Resolve(resource)
	if err != nil {
		return nil, err
	}
	id, err := NormalizeID(table, rawID)
	if err != nil {
		return nil, err
	}
	defer d.track(string(table), "get", time.Now())
	doc, err := d.backend.Get(ctx, table, id)
	if err != nil {
		return nil, wrapBackend(err)
	}
	return ToPublic(doc)
}

// GetMany fetches the records for the given ids; missing ids are skipped.
func (d *Dispatcher) GetMany(ctx context.Context, resource string, rawIDs []string) ([]Record, error) {
	table, err := Resolve(resource)
	if err != nil {
		return nil, err
	}
	native := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := NormalizeID(table, raw)
		if err != nil {
			return nil, err
		}
		native = append(native, id)
	}
	defer d.track(string(table), "get_many", time.Now())
	docs, err := d.backend.GetMany(ctx, table, native)
	if err != nil {
		return nil, wrapBackend(err)
	}
	out := make([]Record, 0, len(docs))
	for _, doc := range docs {
		rec, err := ToPublic(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetManyReference lists records whose targetField equals targetID: List with
// an implicit equality predicate, used for one-to-many relations.
func (d *Dispatcher) GetManyReference(ctx context.Context, resource, targetField, targetID string, page Pagination, sort Sort, filter Filter) (ListResult, error) {
	withRef := filter.Clone()
	withRef[targetField] = targetID
	return d.List(ctx, resource, page, sort, withRef)
}

// Create sanitizes the payload, assigns a fresh storage id and inserts.
func (d *Dispatcher) Create(ctx context.Context, resource string, data map[string]any) (Record, error) {
	table, err := Resolve(resource)
	if err != nil {
		return nil, err
	}
	doc := Document(ToStorage(data))
	doc[IDField] = d.newID()
	defer d.track(string(table), "create", time.Now())
	inserted, err := d.backend.Insert(ctx, table, doc)
	if err != nil {
		return nil, wrapBackend(err)
	}
	return ToPublic(inserted)
}

// Update applies a partial merge: fields absent from data stay untouched.
// Updating a nonexistent id fails with ErrNotFound, never silently succeeds.
func (d *Dispatcher) Update(ctx context.Context, resource, rawID string, data map[string]any) (Record, error) {
	table, err := Resolve(resource)
	if err != nil {
		return nil, err
	}
	id, err := NormalizeID(table, rawID)
	if err != nil {
		return nil, err
	}
	defer d.track(string(table), "update", time.Now())
	doc, err := d.backend.Update(ctx, table, id, ToStorage(data))
	if err != nil {
		return nil, wrapBackend(err)
	}
	return ToPublic(doc)
}

// UpdateMany applies the same partial merge to every id in order.
func (d *Dispatcher) UpdateMany(ctx context.Context, resource string, rawIDs []string, data map[string]any) ([]Record, error) {
	out := make([]Record, 0, len(rawIDs))
	for _, raw := range rawIDs {
		rec, err := d.Update(ctx, resource, raw, data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes a record and returns its last state.
func (d *Dispatcher) Delete(ctx context.Context, resource, rawID string) (Record, error) {
	table, err := Resolve(resource)
	if err != nil {
		return nil, err
	}
	id, err := NormalizeID(table, rawID)
	if err != nil {
		return nil, err
	}
	defer d.track(string(table), "delete", time.Now())
	doc, err := d.backend.Delete(ctx, table, id)
	if err != nil {
		return nil, wrapBackend(err)
	}
	return ToPublic(doc)
}

// DeleteMany removes every id in order.
func (d *Dispatcher) DeleteMany(ctx context.Context, resource string, rawIDs []string) ([]Record, error) {
	out := make([]Record, 0, len(rawIDs))
	for _, raw := range rawIDs {
		rec, err := d.Delete(ctx, resource, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of records matching the filter.
func (d *Dispatcher) Count(ctx context.Context, resource string, filter Filter) (int, error) {
	res, err := d.List(ctx, resource, Pagination{Page: 1, PerPage: 1}, Sort{}, filter)
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}

func toStorageSort(s Sort) Sort {
	s = s.Normalize()
	if s.Field == PublicIDField {
		s.Field = IDField
	}
	return s
}

func toStorageFilter(f Filter) Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		if k == PublicIDField {
			k = IDField
		}
		out[k] = v
	}
	return out
}

// wrapBackend keeps taxonomy errors intact and folds everything else into
// ErrStorageUnavailable. No retry happens here: retrying a non-idempotent
// create could duplicate records.
func wrapBackend(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrEmptyDocument),
		errors.Is(err, ErrInvalidIdentifier),
		errors.Is(err, ErrUnknownResource),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
}
