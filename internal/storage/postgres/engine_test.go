package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/id"
	"tombstone/internal/query"
	"tombstone/internal/storage"
)

type itemRow struct {
	ID           id.ID      `db:"id"`
	DeletionMark bool       `db:"deletion_mark"`
	DeletedAt    *time.Time `db:"deleted_at"`
	Version      int        `db:"version"`
	Name         string     `db:"name"`
}

func newTestEngine() *Engine {
	schema := storage.NewSchema(storage.TableFor[itemRow]("items"))
	return NewEngine(nil, schema)
}

func TestBuildSelect_InjectedFilterAndCallerCondition(t *testing.T) {
	e := newTestEngine()

	q := query.Compiled{
		Table: "items",
		Conditions: []query.Condition{
			query.NotDeleted(),
			query.Eq("name", "alpha"),
		},
	}

	sql, args, err := e.buildSelect(q)
	require.NoError(t, err)

	wantSQL := "SELECT id, deletion_mark, deleted_at, version, name FROM items WHERE deletion_mark = $1 AND name = $2"
	assert.Equal(t, wantSQL, sql)
	assert.Equal(t, []any{false, "alpha"}, args)
}

func TestBuildSelect_UnfilteredHasNoPredicate(t *testing.T) {
	e := newTestEngine()

	sql, args, err := e.buildSelect(query.Compiled{Table: "items"})
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, deletion_mark, deleted_at, version, name FROM items", sql)
	assert.Empty(t, args)
}

func TestBuildSelect_OrderingAndPagination(t *testing.T) {
	e := newTestEngine()

	q := query.Compiled{
		Table:   "items",
		OrderBy: "-name",
		Limit:   10,
		Offset:  5,
	}

	sql, _, err := e.buildSelect(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, deletion_mark, deleted_at, version, name FROM items ORDER BY name DESC LIMIT 10 OFFSET 5", sql)
}

func TestBuildSelect_OperatorCompilation(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name     string
		cond     query.Condition
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "NotEq",
			cond:     query.NotEq("name", "x"),
			wantSQL:  "SELECT id, deletion_mark, deleted_at, version, name FROM items WHERE name <> $1",
			wantArgs: []any{"x"},
		},
		{
			name:     "Gt",
			cond:     query.Condition{Field: "version", Op: query.OpGt, Value: 2},
			wantSQL:  "SELECT id, deletion_mark, deleted_at, version, name FROM items WHERE version > $1",
			wantArgs: []any{2},
		},
		{
			name:     "In",
			cond:     query.In("name", []string{"a", "b"}),
			wantSQL:  "SELECT id, deletion_mark, deleted_at, version, name FROM items WHERE name IN ($1,$2)",
			wantArgs: []any{"a", "b"},
		},
		{
			name:    "IsNull",
			cond:    query.IsNull("deleted_at"),
			wantSQL: "SELECT id, deletion_mark, deleted_at, version, name FROM items WHERE deleted_at IS NULL",
		},
		{
			name:     "Contains",
			cond:     query.Condition{Field: "name", Op: query.OpContains, Value: "alp"},
			wantSQL:  "SELECT id, deletion_mark, deleted_at, version, name FROM items WHERE name ILIKE $1",
			wantArgs: []any{"%alp%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := e.buildSelect(query.Compiled{
				Table:      "items",
				Conditions: []query.Condition{tt.cond},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestBuildSelect_RejectsUnknownColumnAndTable(t *testing.T) {
	e := newTestEngine()

	_, _, err := e.buildSelect(query.Compiled{
		Table:      "items",
		Conditions: []query.Condition{query.Eq("nope", 1)},
	})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	_, _, err = e.buildSelect(query.Compiled{Table: "unknown"})
	assert.Error(t, err)

	_, _, err = e.buildSelect(query.Compiled{Table: "items", OrderBy: "nope"})
	assert.Error(t, err)
}

func TestInsertSQL(t *testing.T) {
	e := newTestEngine()
	rowID := id.New()

	sql, args, err := e.insertSQL(storage.Operation{
		Kind:  storage.OpInsert,
		Table: "items",
		ID:    rowID,
		Columns: map[string]any{
			"id":            rowID,
			"deletion_mark": false,
			"deleted_at":    (*time.Time)(nil),
			"version":       1,
			"name":          "alpha",
			"not_a_column":  "dropped",
		},
	})
	require.NoError(t, err)

	// SetMap sorts columns, unknown columns are filtered out.
	assert.Equal(t, "INSERT INTO items (deleted_at,deletion_mark,id,name,version) VALUES ($1,$2,$3,$4,$5)", sql)
	assert.Len(t, args, 5)
}

func TestUpdateSQL_SoftDeleteRewrite(t *testing.T) {
	e := newTestEngine()
	rowID := id.New()
	now := time.Now().UTC()

	sql, args, err := e.updateSQL(storage.Operation{
		Kind:  storage.OpUpdate,
		Table: "items",
		ID:    rowID,
		Columns: map[string]any{
			"id":            rowID,
			"deletion_mark": true,
			"deleted_at":    &now,
			"version":       1,
			"name":          "alpha",
		},
		ExpectedVersion: 1,
	})
	require.NoError(t, err)

	wantSQL := "UPDATE items SET deleted_at = $1, deletion_mark = $2, name = $3, version = version + 1 WHERE id = $4 AND version = $5"
	assert.Equal(t, wantSQL, sql)
	require.Len(t, args, 5)
	assert.Equal(t, &now, args[0])
	assert.Equal(t, true, args[1])
	assert.Equal(t, rowID, args[3])
	assert.Equal(t, 1, args[4])
}

func TestDeleteSQL(t *testing.T) {
	e := newTestEngine()
	rowID := id.New()

	sql, args, err := e.deleteSQL(storage.Operation{
		Kind:  storage.OpDelete,
		Table: "items",
		ID:    rowID,
	})
	require.NoError(t, err)

	assert.Equal(t, "DELETE FROM items WHERE id = $1", sql)
	assert.Equal(t, []any{rowID}, args)
}
