// Package entity provides base types and capability contracts for all
// persisted entities.
package entity

import (
	"context"
	"time"

	"tombstone/internal/core/id"
)

// Entity is the identity contract every tracked record implements.
type Entity interface {
	// EntityID returns the primary key.
	EntityID() id.ID

	// EntityTable returns the storage table name for this entity type.
	EntityTable() string
}

// SoftDeletable is the deletable capability. Entity types that implement it
// opt in to soft deletion: removing them through a session produces a marked
// update instead of a physical delete, and registered read filters hide the
// marked rows from queries.
//
// The deletion timestamp is a derived field. It is managed exclusively by
// MarkDeleted and Restore so that the invariant
// "DeletionTime() != nil iff Deleted()" holds on every code path.
type SoftDeletable interface {
	// Deleted reports whether the entity is logically deleted.
	Deleted() bool

	// DeletionTime returns when the entity was logically deleted, or nil.
	DeletionTime() *time.Time

	// MarkDeleted sets the deletion mark and stamps the deletion time.
	MarkDeleted()

	// Restore clears the deletion mark and the deletion time.
	Restore()
}

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// BaseEntity contains common fields for soft-deletable entities.
// Embed it in concrete entity types; embedding grants the SoftDeletable
// capability, so sessions will soft-delete the type instead of issuing
// physical deletes.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// DeletionMark indicates a soft-deleted entity
	DeletionMark bool `db:"deletion_mark" json:"deletionMark"`

	// DeletedAt is set when DeletionMark transitions to true and cleared
	// when it transitions back. Managed by MarkDeleted/Restore; never
	// assign it directly.
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	// Attributes stores custom fields (JSONB in PostgreSQL)
	Attributes Attributes `db:"attributes" json:"attributes,omitempty"`
}

// NewBaseEntity creates a new BaseEntity with generated ID.
func NewBaseEntity() BaseEntity {
	return BaseEntity{
		ID:      id.New(),
		Version: 1,
	}
}

// EntityID implements Entity.
func (b *BaseEntity) EntityID() id.ID {
	return b.ID
}

// Deleted implements SoftDeletable.
func (b *BaseEntity) Deleted() bool {
	return b.DeletionMark
}

// DeletionTime implements SoftDeletable.
func (b *BaseEntity) DeletionTime() *time.Time {
	return b.DeletedAt
}

// MarkDeleted sets the deletion mark and stamps DeletedAt with the current
// UTC time, overwriting any prior value.
func (b *BaseEntity) MarkDeleted() {
	now := time.Now().UTC()
	b.DeletionMark = true
	b.DeletedAt = &now
}

// Restore clears the deletion mark and DeletedAt.
func (b *BaseEntity) Restore() {
	b.DeletionMark = false
	b.DeletedAt = nil
}

// Touch increments version (for optimistic locking).
func (b *BaseEntity) Touch() {
	b.Version++
}

// SetVersion updates the version number (used by sessions after flush).
func (b *BaseEntity) SetVersion(v int) {
	b.Version = v
}

// SetAttribute is a convenience method for setting custom fields.
func (b *BaseEntity) SetAttribute(key string, value any) {
	if b.Attributes == nil {
		b.Attributes = make(Attributes)
	}
	b.Attributes[key] = value
}

// GetAttribute is a convenience method for getting custom fields.
func (b *BaseEntity) GetAttribute(key string) any {
	if b.Attributes == nil {
		return nil
	}
	return b.Attributes[key]
}
