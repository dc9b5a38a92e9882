// Package audit is a reference append-only entity without the deletable
// capability: removing an event through a session issues a physical delete.
package audit

import (
	"time"

	"tombstone/internal/core/id"
	"tombstone/internal/storage"
)

// Table is the storage table for audit events.
const Table = "audit_events"

// Event records one action. It deliberately does not embed
// entity.BaseEntity, so sessions hard-delete it.
type Event struct {
	ID         id.ID     `db:"id" json:"id"`
	Action     string    `db:"action" json:"action"`
	Subject    string    `db:"subject" json:"subject"`
	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`
}

// New creates an Event stamped with the current UTC time.
func New(action, subject string) *Event {
	return &Event{
		ID:         id.New(),
		Action:     action,
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
	}
}

// EntityID implements entity.Entity.
func (e *Event) EntityID() id.ID {
	return e.ID
}

// EntityTable implements entity.Entity.
func (e *Event) EntityTable() string {
	return Table
}

// TableSpec returns the storage table description for schema construction.
func TableSpec() storage.Table {
	return storage.TableFor[Event](Table)
}
