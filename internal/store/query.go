package store

import "strings"

// FilterQueryField is the special filter key that matches a substring across
// all string fields instead of a single-field equality.
const FilterQueryField = "q"

// SortOrder is asc or desc.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Pagination is 1-indexed page plus page size.
type Pagination struct {
	Page    int
	PerPage int
}

// Normalize clamps pagination to sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 || p.PerPage > 1000 {
		p.PerPage = 25
	}
	return p
}

// Offset returns the zero-based item offset of the page.
func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PerPage
}

// Sort is a single field with direction.
type Sort struct {
	Field string
	Order SortOrder
}

// Normalize defaults the sort to ascending id order.
func (s Sort) Normalize() Sort {
	if strings.TrimSpace(s.Field) == "" {
		s.Field = PublicIDField
	}
	if s.Order != SortDesc {
		s.Order = SortAsc
	}
	return s
}

// Filter is an equality predicate map; the FilterQueryField key is a
// substring match over string fields.
type Filter map[string]any

// Clone copies the filter so callers can add predicates without aliasing.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Query bundles list parameters for a backend.
type Query struct {
	Pagination Pagination
	Sort       Sort
	Filter     Filter
}
