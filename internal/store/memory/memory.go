// Package memory implements the store.Backend contract in process. It backs
// tests and the smoke tool; durable deployments use store/pg.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"stayadmin.org/internal/store"
)

// Backend keeps one document map per table with in-process concurrency safety.
type Backend struct {
	mu     sync.RWMutex
	tables map[store.Table]map[string]store.Document
}

var _ store.Backend = (*Backend)(nil)

// New creates an empty backend with all registered tables present.
func New() *Backend {
	tables := make(map[store.Table]map[string]store.Document)
	for _, t := range store.Tables() {
		tables[t] = make(map[string]store.Document)
	}
	return &Backend{tables: tables}
}

func (b *Backend) List(ctx context.Context, table store.Table, q store.Query) ([]store.Document, int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	docs := make([]store.Document, 0)
	for _, doc := range b.tables[table] {
		if matches(doc, q.Filter) {
			docs = append(docs, store.Clone(doc))
		}
	}
	total := len(docs)

	s := q.Sort.Normalize()
	sort.SliceStable(docs, func(i, j int) bool {
		less := compareValues(docs[i][s.Field], docs[j][s.Field]) < 0
		if s.Order == store.SortDesc {
			return !less
		}
		return less
	})

	p := q.Pagination.Normalize()
	start := p.Offset()
	if start > len(docs) {
		start = len(docs)
	}
	end := start + p.PerPage
	if end > len(docs) {
		end = len(docs)
	}
	return docs[start:end], total, nil
}

func (b *Backend) Get(ctx context.Context, table store.Table, id string) (store.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	doc, ok := b.tables[table][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return store.Clone(doc), nil
}

func (b *Backend) GetMany(ctx context.Context, table store.Table, ids []string) ([]store.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]store.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := b.tables[table][id]; ok {
			out = append(out, store.Clone(doc))
		}
	}
	return out, nil
}

func (b *Backend) Insert(ctx context.Context, table store.Table, doc store.Document) (store.Document, error) {
	id, _ := doc[store.IDField].(string)
	if id == "" {
		return nil, store.ErrInvalidIdentifier
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.tables[table][id]; exists {
		return nil, store.ErrConflict
	}
	b.tables[table][id] = store.Clone(doc)
	return store.Clone(doc), nil
}

func (b *Backend) Update(ctx context.Context, table store.Table, id string, fields store.Fields) (store.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current, ok := b.tables[table][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	merged := store.Merge(current, fields)
	b.tables[table][id] = merged
	return store.Clone(merged), nil
}

func (b *Backend) Delete(ctx context.Context, table store.Table, id string) (store.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.tables[table][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(b.tables[table], id)
	return doc, nil
}

func matches(doc store.Document, filter store.Filter) bool {
	for key, want := range filter {
		if key == store.FilterQueryField {
			if !matchesQuery(doc, fmt.Sprint(want)) {
				return false
			}
			continue
		}
		got, ok := doc[key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func matchesQuery(doc store.Document, needle string) bool {
	needle = strings.ToLower(needle)
	for key, v := range doc {
		if key == store.IDField {
			continue
		}
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
