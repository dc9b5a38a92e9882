// Package memory provides an in-memory storage engine behind the same
// contract as the PostgreSQL engine. It backs tests and demo setups that
// run without a database.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/id"
	"tombstone/internal/query"
	"tombstone/internal/storage"
)

// Engine stores rows as column maps per table, guarded by one mutex.
type Engine struct {
	mu     sync.RWMutex
	tables map[string]map[id.ID]map[string]any
}

// Compile-time check that Engine implements the storage contract.
var _ storage.Engine = (*Engine)(nil)

// NewEngine creates an empty in-memory engine.
func NewEngine() *Engine {
	return &Engine{tables: make(map[string]map[id.ID]map[string]any)}
}

// Flush applies the batch atomically: every operation is validated against
// current state first, then all are applied under one lock.
func (e *Engine) Flush(_ context.Context, ops []storage.Operation) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Validation pass; nothing is mutated until the whole batch is known
	// to succeed.
	for _, op := range ops {
		rows := e.tables[op.Table]
		_, exists := rows[op.ID]

		switch op.Kind {
		case storage.OpInsert:
			if exists {
				return apperror.NewConflict(fmt.Sprintf("duplicate row in %s", op.Table)).
					WithDetail("id", op.ID.String())
			}
		case storage.OpUpdate:
			if !exists {
				return apperror.NewNotFound(op.Table, op.ID.String())
			}
			if op.ExpectedVersion > 0 {
				if v, ok := rows[op.ID]["version"].(int); ok && v != op.ExpectedVersion {
					return apperror.NewConcurrentModification(op.Table, op.ID.String())
				}
			}
		case storage.OpDelete:
			if !exists {
				return apperror.NewNotFound(op.Table, op.ID.String())
			}
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case storage.OpInsert:
			if e.tables[op.Table] == nil {
				e.tables[op.Table] = make(map[id.ID]map[string]any)
			}
			e.tables[op.Table][op.ID] = cloneRow(op.Columns)
		case storage.OpUpdate:
			row := cloneRow(op.Columns)
			if op.ExpectedVersion > 0 {
				row["version"] = op.ExpectedVersion + 1
			}
			e.tables[op.Table][op.ID] = row
		case storage.OpDelete:
			delete(e.tables[op.Table], op.ID)
		}
	}

	return nil
}

// Select evaluates the compiled query against stored rows and scans the
// matches into dest.
func (e *Engine) Select(_ context.Context, q query.Compiled, dest any) error {
	e.mu.RLock()
	rows := e.collect(q)
	e.mu.RUnlock()

	if q.OrderBy != "" {
		sortRows(rows, q.OrderBy)
	}
	rows = paginate(rows, q.Offset, q.Limit)

	return storage.ScanRowMaps(dest, rows)
}

// Get returns the first matching row or NOT_FOUND.
func (e *Engine) Get(_ context.Context, q query.Compiled, dest any) error {
	e.mu.RLock()
	rows := e.collect(q)
	e.mu.RUnlock()

	if len(rows) == 0 {
		return apperror.NewNotFound(q.Table, nil)
	}
	return storage.ScanRowMap(dest, rows[0])
}

// Len reports the number of rows currently stored in a table.
func (e *Engine) Len(table string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tables[table])
}

func (e *Engine) collect(q query.Compiled) []map[string]any {
	var out []map[string]any
	for _, row := range e.tables[q.Table] {
		if matchesAll(row, q.Conditions) {
			out = append(out, cloneRow(row))
		}
	}
	// Stable base order by id so pagination is deterministic.
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i]["id"]) < fmt.Sprint(out[j]["id"])
	})
	return out
}

func cloneRow(row map[string]any) map[string]any {
	cp := make(map[string]any, len(row))
	for k, v := range row {
		cp[k] = v
	}
	return cp
}

func matchesAll(row map[string]any, conds []query.Condition) bool {
	for _, c := range conds {
		if !matches(row, c) {
			return false
		}
	}
	return true
}

func matches(row map[string]any, c query.Condition) bool {
	val := row[c.Field]

	switch c.Op {
	case query.OpEq:
		return equal(val, c.Value)
	case query.OpNotEq:
		return !equal(val, c.Value)
	case query.OpLt:
		cmp, ok := compare(val, c.Value)
		return ok && cmp < 0
	case query.OpLte:
		cmp, ok := compare(val, c.Value)
		return ok && cmp <= 0
	case query.OpGt:
		cmp, ok := compare(val, c.Value)
		return ok && cmp > 0
	case query.OpGte:
		cmp, ok := compare(val, c.Value)
		return ok && cmp >= 0
	case query.OpIn:
		return contains(c.Value, val)
	case query.OpNotIn:
		return !contains(c.Value, val)
	case query.OpIsNull:
		return isNil(val)
	case query.OpNotNull:
		return !isNil(val)
	case query.OpContains:
		return strings.Contains(
			strings.ToLower(fmt.Sprint(val)),
			strings.ToLower(fmt.Sprint(c.Value)),
		)
	default:
		return false
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func equal(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	switch av := a.(type) {
	case decimal.Decimal:
		if bv, ok := b.(decimal.Decimal); ok {
			return av.Equal(bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Equal(bv)
		}
	}
	if an, aok := asFloat(a); aok {
		if bn, bok := asFloat(b); bok {
			return an == bn
		}
	}
	return reflect.DeepEqual(a, b)
}

func contains(list any, v any) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return equal(list, v)
	}
	for i := 0; i < rv.Len(); i++ {
		if equal(rv.Index(i).Interface(), v) {
			return true
		}
	}
	return false
}

// compare orders two values of a comparable column type.
// Nil sorts before everything.
func compare(a, b any) (int, bool) {
	if isNil(a) || isNil(b) {
		switch {
		case isNil(a) && isNil(b):
			return 0, true
		case isNil(a):
			return -1, true
		default:
			return 1, true
		}
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), true
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), true
		}
	case *time.Time:
		if bv, ok := b.(*time.Time); ok {
			return av.Compare(*bv), true
		}
	case decimal.Decimal:
		if bv, ok := b.(decimal.Decimal); ok {
			return av.Cmp(bv), true
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, true
			case !av:
				return -1, true
			default:
				return 1, true
			}
		}
	}

	if an, aok := asFloat(a); aok {
		if bn, bok := asFloat(b); bok {
			switch {
			case an < bn:
				return -1, true
			case an > bn:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b)), true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// sortRows sorts by one field; a leading "-" means descending.
func sortRows(rows []map[string]any, orderBy string) {
	field := orderBy
	desc := false
	if strings.HasPrefix(field, "-") {
		desc = true
		field = strings.TrimPrefix(field, "-")
	} else {
		field = strings.TrimPrefix(field, "+")
	}

	sort.SliceStable(rows, func(i, j int) bool {
		cmp, _ := compare(rows[i][field], rows[j][field])
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func paginate(rows []map[string]any, offset, limit int) []map[string]any {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
