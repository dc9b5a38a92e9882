package session

import (
	"context"

	"tombstone/internal/core/entity"
)

// FlushInterceptor observes pending changes before a session commits them.
// Interceptors may reclassify change states and mutate the tracked entities;
// they run in registration order, exactly once per commit attempt, before
// the batch is compiled for storage.
//
// Interceptors are stateless with respect to any single call and safe to
// share across concurrent sessions as read-only configuration.
type FlushInterceptor interface {
	BeforeFlush(ctx context.Context, changes []*Change) error
}

// SoftDeleteInterceptor rewrites remove intents for soft-deletable entities
// into marked updates: the change becomes Modified and the entity's deletion
// mark and timestamp are set, so the storage engine emits an update instead
// of a delete. Entities without the capability pass through for physical
// deletion.
//
// The rewrite is idempotent: a second run finds no Removed soft-deletable
// changes and does nothing. It never fails; it only classifies and mutates.
type SoftDeleteInterceptor struct{}

// NewSoftDeleteInterceptor creates the interceptor.
func NewSoftDeleteInterceptor() *SoftDeleteInterceptor {
	return &SoftDeleteInterceptor{}
}

// BeforeFlush implements FlushInterceptor.
func (i *SoftDeleteInterceptor) BeforeFlush(_ context.Context, changes []*Change) error {
	for _, ch := range changes {
		if ch.State != Removed {
			continue
		}
		sd, ok := ch.Entity.(entity.SoftDeletable)
		if !ok {
			// Soft delete is opt-in per entity type; this one proceeds
			// as a physical delete.
			continue
		}
		ch.State = Modified
		sd.MarkDeleted()
	}
	return nil
}
