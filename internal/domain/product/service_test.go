package product

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/apperror"
	"tombstone/internal/query"
	"tombstone/internal/session"
	"tombstone/internal/storage/memory"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	filters := query.NewFilters()
	require.NoError(t, filters.Register(Table, query.NotDeleted()))

	return NewService(session.NewFactory(session.Config{
		Engine:  memory.NewEngine(),
		Filters: filters,
	}))
}

func TestService_CreateAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p := New("P-001", "Widget", decimal.NewFromFloat(9.99))
	require.NoError(t, svc.Create(ctx, p))

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)
	assert.True(t, got.Price.Equal(decimal.NewFromFloat(9.99)))
}

func TestService_CreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.Create(ctx, New("P-002", "", decimal.Zero))
	require.Error(t, err)

	err = svc.Create(ctx, New("P-003", "Negative", decimal.NewFromInt(-1)))
	require.Error(t, err)
}

func TestService_DeleteHidesProduct(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p := New("P-010", "Ghost", decimal.NewFromInt(5))
	require.NoError(t, svc.Create(ctx, p))
	require.NoError(t, svc.Delete(ctx, p.ID))

	// Default read is filtered.
	_, err := svc.Get(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	visible, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, visible)

	// The row survives and shows up unfiltered.
	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].DeletionMark)
	require.NotNil(t, all[0].DeletedAt)
}

func TestService_DeleteTwiceNotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p := New("P-011", "Once", decimal.NewFromInt(1))
	require.NoError(t, svc.Create(ctx, p))
	require.NoError(t, svc.Delete(ctx, p.ID))

	// The marked row is invisible to the filtered load inside Delete.
	err := svc.Delete(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_RestoreMakesProductVisibleAgain(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p := New("P-020", "Phoenix", decimal.NewFromInt(42))
	require.NoError(t, svc.Create(ctx, p))
	require.NoError(t, svc.Delete(ctx, p.ID))
	require.NoError(t, svc.Restore(ctx, p.ID))

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.DeletionMark)
	assert.Nil(t, got.DeletedAt)
}

func TestService_ListOrdersByName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, New("P-B", "Bravo", decimal.NewFromInt(2))))
	require.NoError(t, svc.Create(ctx, New("P-A", "Alpha", decimal.NewFromInt(1))))

	items, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Alpha", items[0].Name)
	assert.Equal(t, "Bravo", items[1].Name)
}
