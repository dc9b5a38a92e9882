package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/apperror"
)

func TestFilters_RegisterTwiceRejected(t *testing.T) {
	f := NewFilters()

	err := f.Register("products", NotDeleted())
	require.NoError(t, err)

	err = f.Register("products", Eq("deletion_mark", false))
	require.Error(t, err)
	assert.True(t, apperror.IsFilterExists(err))

	// The original registration is untouched.
	assert.Equal(t, []Condition{NotDeleted()}, f.For("products"))
}

func TestFilters_RegisterValidation(t *testing.T) {
	f := NewFilters()

	assert.Error(t, f.Register("", NotDeleted()))
	assert.Error(t, f.Register("products"))
	assert.False(t, f.Has("products"))
}

func TestCompile_InjectsRegisteredFilter(t *testing.T) {
	f := NewFilters()
	require.NoError(t, f.Register("products", NotDeleted()))

	c := New("products").Where(Eq("code", "P1")).Compile(f)

	require.Len(t, c.Conditions, 2)
	assert.Equal(t, NotDeleted(), c.Conditions[0])
	assert.Equal(t, Eq("code", "P1"), c.Conditions[1])
}

func TestCompile_UnfilteredSkipsFilterForOneQueryOnly(t *testing.T) {
	f := NewFilters()
	require.NoError(t, f.Register("products", NotDeleted()))

	unfiltered := New("products").Unfiltered().Compile(f)
	assert.Empty(t, unfiltered.Conditions)

	// A subsequent query against the same table is filtered again.
	filtered := New("products").Compile(f)
	require.Len(t, filtered.Conditions, 1)
	assert.Equal(t, NotDeleted(), filtered.Conditions[0])
}

func TestCompile_TableWithoutFilterUnaffected(t *testing.T) {
	f := NewFilters()
	require.NoError(t, f.Register("products", NotDeleted()))

	c := New("audit_events").Where(Eq("action", "login")).Compile(f)
	assert.Equal(t, []Condition{Eq("action", "login")}, c.Conditions)
}

func TestCompile_CarriesPagination(t *testing.T) {
	c := New("products").OrderBy("-name").Limit(10).Offset(5).Compile(nil)

	assert.Equal(t, "products", c.Table)
	assert.Equal(t, "-name", c.OrderBy)
	assert.Equal(t, 10, c.Limit)
	assert.Equal(t, 5, c.Offset)
}
