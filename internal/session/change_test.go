package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeSet_AddThenRemoveDropsChange(t *testing.T) {
	cs := newChangeSet()
	item := newTestItem("ephemeral")

	cs.add(item)
	require.Equal(t, 1, cs.len())

	// The row was never flushed, so there is nothing to delete or mark.
	cs.remove(item)
	assert.Equal(t, 0, cs.len())
}

func TestChangeSet_AttachThenRemove(t *testing.T) {
	cs := newChangeSet()
	item := newTestItem("loaded")

	cs.attach(item)
	require.Equal(t, Unchanged, cs.all()[0].State)

	cs.remove(item)
	assert.Equal(t, Removed, cs.all()[0].State)
}

func TestChangeSet_UpdateTransitions(t *testing.T) {
	cs := newChangeSet()
	item := newTestItem("edit me")

	cs.attach(item)
	cs.update(item)
	assert.Equal(t, Modified, cs.all()[0].State)

	// Updating an entity pending insertion keeps it Added.
	added := newTestItem("fresh")
	cs.add(added)
	cs.update(added)
	require.Equal(t, 2, cs.len())
	assert.Equal(t, Added, cs.all()[1].State)
}

func TestChangeSet_ReAddRemovedBecomesModified(t *testing.T) {
	cs := newChangeSet()
	item := newTestItem("restored")

	cs.attach(item)
	cs.remove(item)
	cs.add(item)

	assert.Equal(t, Modified, cs.all()[0].State)
}

func TestChangeSet_UntrackedRemoveIsRemoved(t *testing.T) {
	cs := newChangeSet()
	item := newTestItem("direct")

	cs.remove(item)
	require.Equal(t, 1, cs.len())
	assert.Equal(t, Removed, cs.all()[0].State)
}

func TestChangeSet_OrderIsDeterministic(t *testing.T) {
	cs := newChangeSet()
	first := newTestItem("a")
	second := newTestItem("b")
	third := newTestLog("c")

	cs.add(first)
	cs.add(second)
	cs.add(third)

	all := cs.all()
	require.Len(t, all, 3)
	assert.Same(t, first, all[0].Entity.(*testItem))
	assert.Same(t, second, all[1].Entity.(*testItem))
	assert.Same(t, third, all[2].Entity.(*testLog))
}
