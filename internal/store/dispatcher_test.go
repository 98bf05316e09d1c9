package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stayadmin.org/internal/store"
	"stayadmin.org/internal/store/memory"
)

func newDispatcher(t *testing.T) *store.Dispatcher {
	t.Helper()
	return store.NewDispatcher(memory.New())
}

func TestCreateAssignsIdentifier(t *testing.T) {
	d := newDispatcher(t)
	rec, err := d.Create(context.Background(), "properties", map[string]any{
		"name": "Seaside Flat",
		"id":   "spoofed",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id, _ := rec["id"].(string)
	if id == "" || id == "spoofed" {
		t.Fatalf("id = %q, want generated", id)
	}

	got, err := d.Get(context.Background(), "properties", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["name"] != "Seaside Flat" {
		t.Fatalf("name = %v", got["name"])
	}
}

func TestGetAcceptsLowercaseIdentifier(t *testing.T) {
	d := newDispatcher(t)
	rec, err := d.Create(context.Background(), "knowledge", map[string]any{"title": "Check-in"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := rec["id"].(string)
	got, err := d.Get(context.Background(), "knowledge", strings.ToLower(id))
	if err != nil {
		t.Fatalf("get lowercase: %v", err)
	}
	if got["id"] != id {
		t.Fatalf("id = %v, want %v", got["id"], id)
	}
}

func TestGetRejectsMalformedIdentifier(t *testing.T) {
	d := newDispatcher(t)
	_, err := d.Get(context.Background(), "users", "not-an-id")
	if !errors.Is(err, store.ErrInvalidIdentifier) {
		t.Fatalf("err = %v, want ErrInvalidIdentifier", err)
	}
}

func TestUnknownResource(t *testing.T) {
	d := newDispatcher(t)
	_, err := d.List(context.Background(), "invoices", store.Pagination{}, store.Sort{}, nil)
	if !errors.Is(err, store.ErrUnknownResource) {
		t.Fatalf("err = %v, want ErrUnknownResource", err)
	}
}

func TestUpdateIsPartialMerge(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	rec, err := d.Create(ctx, "properties", map[string]any{"name": "A", "status": "draft"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := rec["id"].(string)

	updated, err := d.Update(ctx, "properties", id, map[string]any{"status": "active"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated["status"] != "active" {
		t.Fatalf("status = %v", updated["status"])
	}
	if updated["name"] != "A" {
		t.Fatalf("absent field was lost: name = %v", updated["name"])
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	d := newDispatcher(t)
	_, err := d.Update(context.Background(), "properties",
		"01ARZ3NDEKTSV4RRFFQ69G5FAV", map[string]any{"status": "active"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteReturnsLastState(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	rec, err := d.Create(ctx, "numbers", map[string]any{"number": "+15550107700"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := rec["id"].(string)

	deleted, err := d.Delete(ctx, "numbers", id)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted["number"] != "+15550107700" {
		t.Fatalf("deleted = %v", deleted)
	}
	if _, err := d.Get(ctx, "numbers", id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetManySkipsMissing(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	a, _ := d.Create(ctx, "users", map[string]any{"email": "a@x.test"})
	b, _ := d.Create(ctx, "users", map[string]any{"email": "b@x.test"})

	recs, err := d.GetMany(ctx, "users", []string{
		a["id"].(string), "01ARZ3NDEKTSV4RRFFQ69G5FAV", b["id"].(string),
	})
	if err != nil {
		t.Fatalf("getmany: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
}

func TestGetManyReferenceInjectsPredicate(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	prop, _ := d.Create(ctx, "properties", map[string]any{"name": "P"})
	propID := prop["id"].(string)
	_, _ = d.Create(ctx, "numbers", map[string]any{"number": "1", "property_id": propID})
	_, _ = d.Create(ctx, "numbers", map[string]any{"number": "2", "property_id": propID})
	_, _ = d.Create(ctx, "numbers", map[string]any{"number": "3", "property_id": "other"})

	res, err := d.GetManyReference(ctx, "numbers", "property_id", propID,
		store.Pagination{}, store.Sort{}, nil)
	if err != nil {
		t.Fatalf("reference: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("total = %d, want 2", res.Total)
	}
}

func TestListPaginationAndTotal(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		if _, err := d.Create(ctx, "knowledge", map[string]any{"title": "t"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	res, err := d.List(ctx, "knowledge", store.Pagination{Page: 2, PerPage: 3}, store.Sort{}, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 7 {
		t.Fatalf("total = %d, want 7", res.Total)
	}
	if len(res.Data) != 3 {
		t.Fatalf("page len = %d, want 3", len(res.Data))
	}
}

func TestListQueryFilter(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	_, _ = d.Create(ctx, "properties", map[string]any{"name": "Seaside Flat"})
	_, _ = d.Create(ctx, "properties", map[string]any{"name": "Mountain Cabin"})

	res, err := d.List(ctx, "properties", store.Pagination{}, store.Sort{},
		store.Filter{store.FilterQueryField: "seaside"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("total = %d, want 1", res.Total)
	}
}

func TestCount(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	_, _ = d.Create(ctx, "users", map[string]any{"email": "a@x.test", "role": "admin"})
	_, _ = d.Create(ctx, "users", map[string]any{"email": "b@x.test", "role": "viewer"})

	n, err := d.Count(ctx, "users", store.Filter{"role": "viewer"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestIDFilterTranslation(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	rec, _ := d.Create(ctx, "companies", map[string]any{"name": "Acme"})
	res, err := d.List(ctx, "companies", store.Pagination{}, store.Sort{},
		store.Filter{"id": rec["id"]})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("total = %d, want 1", res.Total)
	}
}

func TestUpdateManyAppliesAll(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	a, _ := d.Create(ctx, "properties", map[string]any{"name": "A", "status": "draft"})
	b, _ := d.Create(ctx, "properties", map[string]any{"name": "B", "status": "draft"})

	recs, err := d.UpdateMany(ctx, "properties",
		[]string{a["id"].(string), b["id"].(string)}, map[string]any{"status": "archived"})
	if err != nil {
		t.Fatalf("updatemany: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	for _, rec := range recs {
		if rec["status"] != "archived" {
			t.Fatalf("status = %v, want archived", rec["status"])
		}
	}
}

func TestUpdateManyStopsAtMissing(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	a, _ := d.Create(ctx, "properties", map[string]any{"name": "A", "status": "draft"})

	// Ids apply in order; the missing second id fails the call after the
	// first was already written.
	_, err := d.UpdateMany(ctx, "properties",
		[]string{a["id"].(string), "01ARZ3NDEKTSV4RRFFQ69G5FAV"},
		map[string]any{"status": "active"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	got, err := d.Get(ctx, "properties", a["id"].(string))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got["status"] != "active" {
		t.Fatalf("first record status = %v, want active", got["status"])
	}
}

func TestDeleteManyRemovesAll(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	a, _ := d.Create(ctx, "numbers", map[string]any{"number": "1"})
	b, _ := d.Create(ctx, "numbers", map[string]any{"number": "2"})

	recs, err := d.DeleteMany(ctx, "numbers", []string{a["id"].(string), b["id"].(string)})
	if err != nil {
		t.Fatalf("deletemany: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if n, _ := d.Count(ctx, "numbers", nil); n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}
}

func TestDeleteManyStopsAtMissing(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	a, _ := d.Create(ctx, "numbers", map[string]any{"number": "1"})
	b, _ := d.Create(ctx, "numbers", map[string]any{"number": "2"})

	_, err := d.DeleteMany(ctx, "numbers", []string{
		a["id"].(string), "01ARZ3NDEKTSV4RRFFQ69G5FAV", b["id"].(string),
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	// The id before the missing one is gone, the one after survives.
	if _, err := d.Get(ctx, "numbers", a["id"].(string)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("first record err = %v, want ErrNotFound", err)
	}
	if _, err := d.Get(ctx, "numbers", b["id"].(string)); err != nil {
		t.Fatalf("last record: %v", err)
	}
}

func TestUpdateEmptyDeltaIsNoOp(t *testing.T) {
	d := newDispatcher(t)
	ctx := context.Background()
	rec, err := d.Create(ctx, "knowledge", map[string]any{"title": "Check-in", "slug": "check-in"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := rec["id"].(string)

	got, err := d.Update(ctx, "knowledge", id, map[string]any{})
	if err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if got["title"] != "Check-in" || got["slug"] != "check-in" || got["id"] != id {
		t.Fatalf("record changed by empty delta: %v", got)
	}
}
