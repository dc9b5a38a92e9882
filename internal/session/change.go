package session

import (
	"tombstone/internal/core/entity"
	"tombstone/internal/core/id"
)

// State is the lifecycle state of a tracked change.
type State int

const (
	Unchanged State = iota
	Added
	Modified
	Removed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Change associates one tracked entity with its mutation intent for the
// duration of a unit of work. Changes are owned exclusively by their session
// and discarded after commit or reset.
type Change struct {
	Entity entity.Entity
	State  State
}

type changeKey struct {
	table string
	id    id.ID
}

// changeSet tracks changes keyed by (table, id), preserving insertion order
// so flush batches are deterministic.
type changeSet struct {
	order []changeKey
	m     map[changeKey]*Change
}

func newChangeSet() *changeSet {
	return &changeSet{m: make(map[changeKey]*Change)}
}

func keyOf(e entity.Entity) changeKey {
	return changeKey{table: e.EntityTable(), id: e.EntityID()}
}

// add tracks an entity as Added. Re-adding an entity that is pending
// removal downgrades it to Modified (the row already exists in storage);
// adding an already tracked entity is otherwise a no-op.
func (cs *changeSet) add(e entity.Entity) {
	k := keyOf(e)
	if ch, ok := cs.m[k]; ok {
		if ch.State == Removed {
			ch.State = Modified
			ch.Entity = e
		}
		return
	}
	cs.put(k, &Change{Entity: e, State: Added})
}

// update tracks an entity as Modified. Entities pending insertion stay
// Added (the insert already carries the latest field values); entities
// pending removal stay Removed.
func (cs *changeSet) update(e entity.Entity) {
	k := keyOf(e)
	if ch, ok := cs.m[k]; ok {
		ch.Entity = e
		if ch.State == Unchanged {
			ch.State = Modified
		}
		return
	}
	cs.put(k, &Change{Entity: e, State: Modified})
}

// remove tracks an entity as Removed. Removing an entity pending insertion
// drops the change entirely: the row was never flushed, so there is nothing
// to delete or mark.
func (cs *changeSet) remove(e entity.Entity) {
	k := keyOf(e)
	if ch, ok := cs.m[k]; ok {
		if ch.State == Added {
			cs.drop(k)
			return
		}
		ch.State = Removed
		return
	}
	cs.put(k, &Change{Entity: e, State: Removed})
}

// attach tracks an entity as Unchanged (typically after loading it).
// Already tracked entities keep their state.
func (cs *changeSet) attach(e entity.Entity) {
	k := keyOf(e)
	if _, ok := cs.m[k]; ok {
		return
	}
	cs.put(k, &Change{Entity: e, State: Unchanged})
}

func (cs *changeSet) put(k changeKey, ch *Change) {
	cs.order = append(cs.order, k)
	cs.m[k] = ch
}

func (cs *changeSet) drop(k changeKey) {
	delete(cs.m, k)
	for i, ok := range cs.order {
		if ok == k {
			cs.order = append(cs.order[:i], cs.order[i+1:]...)
			return
		}
	}
}

// all returns tracked changes in insertion order.
func (cs *changeSet) all() []*Change {
	out := make([]*Change, 0, len(cs.m))
	for _, k := range cs.order {
		out = append(out, cs.m[k])
	}
	return out
}

func (cs *changeSet) len() int {
	return len(cs.m)
}

func (cs *changeSet) reset() {
	cs.order = nil
	cs.m = make(map[changeKey]*Change)
}
