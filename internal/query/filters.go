package query

import (
	"tombstone/internal/core/apperror"
)

// Filters holds one read filter predicate per table. It is built once at
// session-factory configuration time and treated as read-only afterwards,
// so it is safe to share across concurrent sessions.
//
// At most one filter per table: a second registration is rejected with
// FILTER_ALREADY_REGISTERED rather than silently overriding, so a miswired
// configuration fails loudly at startup.
type Filters struct {
	m map[string][]Condition
}

// NewFilters creates an empty filter registry.
func NewFilters() *Filters {
	return &Filters{m: make(map[string][]Condition)}
}

// Register attaches a filter predicate (a conjunction of conditions) to a
// table. Returns FILTER_ALREADY_REGISTERED if the table already has one.
func (f *Filters) Register(table string, conds ...Condition) error {
	if table == "" {
		return apperror.NewValidation("filter table is required")
	}
	if len(conds) == 0 {
		return apperror.NewValidation("filter requires at least one condition").
			WithDetail("table", table)
	}
	if _, exists := f.m[table]; exists {
		return apperror.NewFilterExists(table)
	}
	f.m[table] = append([]Condition(nil), conds...)
	return nil
}

// For returns the filter conditions registered for a table, or nil.
// The returned slice must not be mutated.
func (f *Filters) For(table string) []Condition {
	return f.m[table]
}

// Has reports whether a filter is registered for the table.
func (f *Filters) Has(table string) bool {
	_, ok := f.m[table]
	return ok
}
