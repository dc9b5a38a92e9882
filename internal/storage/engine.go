// Package storage defines the contract between sessions and storage engines:
// the flush batch (insert/update/delete operations compiled from tracked
// changes) and the select primitives that execute compiled queries.
package storage

import (
	"context"

	"tombstone/internal/core/id"
	"tombstone/internal/query"
)

// OpKind classifies a flush operation.
type OpKind int

const (
	OpInsert OpKind = iota
	OpUpdate
	OpDelete
)

// String implements fmt.Stringer.
func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Operation is one storage mutation compiled from a tracked change.
type Operation struct {
	Kind  OpKind
	Table string
	ID    id.ID

	// Columns holds the full column map for inserts and updates
	// (built from "db" struct tags). Nil for deletes.
	Columns map[string]any

	// ExpectedVersion guards updates with optimistic locking.
	// Zero disables the check.
	ExpectedVersion int
}

// Engine is the storage collaborator a session delegates to. Implementations
// must apply a Flush batch atomically: either every operation takes effect or
// none does, and the error is surfaced unchanged to the caller.
type Engine interface {
	// Flush applies the batch in order within one storage transaction.
	Flush(ctx context.Context, ops []Operation) error

	// Select executes a compiled query and scans all rows into dest,
	// which must be a pointer to a slice of structs.
	Select(ctx context.Context, q query.Compiled, dest any) error

	// Get executes a compiled query expecting a single row scanned into
	// dest, a pointer to a struct. Returns a NOT_FOUND error when no row
	// matches.
	Get(ctx context.Context, q query.Compiled, dest any) error
}

// Table describes one storage table: its name and the columns derived from
// the entity type's "db" tags.
type Table struct {
	Name    string
	Columns []string
}

// TableFor builds a Table from an entity type's db tags.
func TableFor[T any](name string) Table {
	return Table{Name: name, Columns: ExtractDBColumns[T]()}
}

// Schema maps table names to their column layout. Engines use it for select
// column lists and as a whitelist when compiling conditions.
type Schema map[string]Table

// NewSchema builds a schema from tables.
func NewSchema(tables ...Table) Schema {
	s := make(Schema, len(tables))
	for _, t := range tables {
		s[t.Name] = t
	}
	return s
}

// HasColumn reports whether the table exists and contains the column.
func (s Schema) HasColumn(table, column string) bool {
	t, ok := s[table]
	if !ok {
		return false
	}
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}
