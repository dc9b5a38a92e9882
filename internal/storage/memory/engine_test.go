package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/id"
	"tombstone/internal/query"
	"tombstone/internal/storage"
)

type note struct {
	ID      id.ID  `db:"id"`
	Title   string `db:"title"`
	Version int    `db:"version"`
}

func insertOp(table string, rowID id.ID, cols map[string]any) storage.Operation {
	cols["id"] = rowID
	return storage.Operation{Kind: storage.OpInsert, Table: table, ID: rowID, Columns: cols}
}

func TestEngine_FlushAndSelect(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	first := id.New()
	second := id.New()
	require.NoError(t, e.Flush(ctx, []storage.Operation{
		insertOp("notes", first, map[string]any{"title": "beta", "version": 1}),
		insertOp("notes", second, map[string]any{"title": "alpha", "version": 1}),
	}))

	var got []note
	q := query.Compiled{Table: "notes", OrderBy: "title"}
	require.NoError(t, e.Select(ctx, q, &got))

	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Title)
	assert.Equal(t, "beta", got[1].Title)
}

func TestEngine_FlushIsAtomic(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	rowID := id.New()
	require.NoError(t, e.Flush(ctx, []storage.Operation{
		insertOp("notes", rowID, map[string]any{"title": "solo", "version": 1}),
	}))

	// Second op fails validation (duplicate), so the first must not apply.
	other := id.New()
	err := e.Flush(ctx, []storage.Operation{
		insertOp("notes", other, map[string]any{"title": "new", "version": 1}),
		insertOp("notes", rowID, map[string]any{"title": "dup", "version": 1}),
	})
	require.Error(t, err)

	assert.Equal(t, 1, e.Len("notes"))
}

func TestEngine_UpdateVersionCheck(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	rowID := id.New()
	require.NoError(t, e.Flush(ctx, []storage.Operation{
		insertOp("notes", rowID, map[string]any{"title": "v1", "version": 1}),
	}))

	update := storage.Operation{
		Kind:            storage.OpUpdate,
		Table:           "notes",
		ID:              rowID,
		Columns:         map[string]any{"id": rowID, "title": "v2", "version": 1},
		ExpectedVersion: 1,
	}
	require.NoError(t, e.Flush(ctx, []storage.Operation{update}))

	var got note
	require.NoError(t, e.Get(ctx, query.Compiled{Table: "notes"}, &got))
	assert.Equal(t, "v2", got.Title)
	assert.Equal(t, 2, got.Version)

	// Replaying the same expected version now fails.
	err := e.Flush(ctx, []storage.Operation{update})
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestEngine_DeleteMissingRow(t *testing.T) {
	e := NewEngine()
	err := e.Flush(context.Background(), []storage.Operation{
		{Kind: storage.OpDelete, Table: "notes", ID: id.New()},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestEngine_SelectConditions(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	now := time.Now().UTC()
	deletedID := id.New()
	liveID := id.New()
	require.NoError(t, e.Flush(ctx, []storage.Operation{
		insertOp("items", liveID, map[string]any{
			"title": "Visible Thing", "deletion_mark": false, "deleted_at": (*time.Time)(nil), "version": 1,
		}),
		insertOp("items", deletedID, map[string]any{
			"title": "Hidden Thing", "deletion_mark": true, "deleted_at": &now, "version": 2,
		}),
	}))

	tests := []struct {
		name  string
		conds []query.Condition
		want  int
	}{
		{"eq bool", []query.Condition{query.NotDeleted()}, 1},
		{"not eq", []query.Condition{query.NotEq("title", "Hidden Thing")}, 1},
		{"is null", []query.Condition{query.IsNull("deleted_at")}, 1},
		{"not null", []query.Condition{{Field: "deleted_at", Op: query.OpNotNull}}, 1},
		{"contains is case-insensitive", []query.Condition{{Field: "title", Op: query.OpContains, Value: "thing"}}, 2},
		{"gt", []query.Condition{{Field: "version", Op: query.OpGt, Value: 1}}, 1},
		{"in", []query.Condition{query.In("title", []string{"Visible Thing", "Hidden Thing"})}, 2},
		{"conjunction", []query.Condition{query.NotDeleted(), query.Eq("title", "Hidden Thing")}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := e.collect(query.Compiled{Table: "items", Conditions: tt.conds})
			assert.Len(t, rows, tt.want)
		})
	}
}

func TestEngine_GetNotFound(t *testing.T) {
	e := NewEngine()
	var got note
	err := e.Get(context.Background(), query.Compiled{Table: "notes"}, &got)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestEngine_Pagination(t *testing.T) {
	e := NewEngine()
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c", "d"} {
		require.NoError(t, e.Flush(ctx, []storage.Operation{
			insertOp("notes", id.New(), map[string]any{"title": title, "version": 1}),
		}))
	}

	var page []note
	q := query.Compiled{Table: "notes", OrderBy: "title", Offset: 1, Limit: 2}
	require.NoError(t, e.Select(ctx, q, &page))

	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Title)
	assert.Equal(t, "c", page[1].Title)
}
