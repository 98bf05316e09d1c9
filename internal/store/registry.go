package store

import (
	"fmt"
	"sort"
	"strings"
)

// Table identifies one registered storage table.
type Table string

const (
	TableCompanies  Table = "companies"
	TableProperties Table = "properties"
	TableUsers      Table = "users"
	TableNumbers    Table = "numbers"
	TableKnowledge  Table = "knowledge"
)

// aliases maps every accepted spelling to its canonical table. New tables must
// be registered here explicitly; nothing is ever inferred from input.
var aliases = map[string]Table{
	"companies": TableCompanies,
	"company":   TableCompanies,
	"tenants":   TableCompanies,

	"properties": TableProperties,
	"property":   TableProperties,
	"listings":   TableProperties,

	"users": TableUsers,
	"user":  TableUsers,

	"numbers":       TableNumbers,
	"number":        TableNumbers,
	"phones":        TableNumbers,
	"phone_numbers": TableNumbers,

	"knowledge":      TableKnowledge,
	"kb":             TableKnowledge,
	"articles":       TableKnowledge,
	"knowledge_base": TableKnowledge,
}

// Resolve maps a client-supplied resource name onto a canonical table.
func Resolve(name string) (Table, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if t, ok := aliases[key]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownResource, name)
}

// Tables returns the canonical table names in stable order.
func Tables() []Table {
	set := make(map[Table]struct{})
	for _, t := range aliases {
		set[t] = struct{}{}
	}
	out := make([]Table, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
