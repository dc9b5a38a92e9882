// Package session implements the unit of work: change tracking for entities,
// the flush interceptor pipeline that rewrites soft deletes, and the query
// path that injects registered read filters.
package session

import (
	"context"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/query"
	"tombstone/internal/storage"
	"tombstone/pkg/logger"
)

// Config holds the shared, read-only configuration for sessions.
type Config struct {
	// Engine is the storage collaborator commits and queries delegate to.
	Engine storage.Engine

	// Filters holds per-table read filter predicates, injected into every
	// query unless the caller opts out.
	Filters *query.Filters

	// Interceptors run before each commit attempt, in order. When nil,
	// the factory installs the soft-delete interceptor.
	Interceptors []FlushInterceptor
}

// Factory creates sessions sharing one configuration. The factory itself is
// safe for concurrent use; each logical operation (a request, a job) should
// create its own session.
type Factory struct {
	cfg Config
}

// NewFactory creates a session factory. A nil interceptor chain defaults to
// the soft-delete interceptor alone.
func NewFactory(cfg Config) *Factory {
	if cfg.Interceptors == nil {
		cfg.Interceptors = []FlushInterceptor{NewSoftDeleteInterceptor()}
	}
	if cfg.Filters == nil {
		cfg.Filters = query.NewFilters()
	}
	return &Factory{cfg: cfg}
}

// NewSession creates an empty unit of work.
func (f *Factory) NewSession() *Session {
	return &Session{
		engine:       f.cfg.Engine,
		filters:      f.cfg.Filters,
		interceptors: f.cfg.Interceptors,
		changes:      newChangeSet(),
	}
}

// Session is one unit of work. It tracks entity mutations as changes,
// rewrites them through the interceptor pipeline at commit time, and hands
// the resulting batch to the storage engine in a single transaction.
//
// A session is not safe for concurrent mutation; its change set is
// exclusively owned. Share the Factory, not the Session.
type Session struct {
	engine       storage.Engine
	filters      *query.Filters
	interceptors []FlushInterceptor
	changes      *changeSet
}

// Add tracks a new entity for insertion.
func (s *Session) Add(e entity.Entity) {
	s.changes.add(e)
}

// Update tracks an entity for update.
func (s *Session) Update(e entity.Entity) {
	s.changes.update(e)
}

// Remove tracks an entity for removal. At commit time the soft-delete
// interceptor converts this into a marked update when the entity implements
// entity.SoftDeletable; otherwise the row is physically deleted.
func (s *Session) Remove(e entity.Entity) {
	s.changes.remove(e)
}

// Attach tracks a loaded entity as unchanged so later Update/Remove calls
// operate on it.
func (s *Session) Attach(e entity.Entity) {
	s.changes.attach(e)
}

// Pending returns the number of tracked changes.
func (s *Session) Pending() int {
	return s.changes.len()
}

// Changes returns the tracked changes in insertion order. Exposed for
// introspection; mutating the returned slice is undefined.
func (s *Session) Changes() []*Change {
	return s.changes.all()
}

// Reset discards all tracked changes without touching storage.
func (s *Session) Reset() {
	s.changes.reset()
}

// Commit runs the interceptor pipeline over pending changes, compiles them
// into a storage batch and flushes it in one engine transaction. On success
// the change set is discarded (the unit of work ends).
//
// On failure the storage error is surfaced unchanged (wrapped for
// classification, the cause preserved) and the session keeps its pending
// changes, including any interceptor rewrites already applied in memory.
// Callers must discard or retry the whole unit of work, not assume partial
// success.
func (s *Session) Commit(ctx context.Context) error {
	changes := s.changes.all()
	if len(changes) == 0 {
		return nil
	}

	for _, ic := range s.interceptors {
		if err := ic.BeforeFlush(ctx, changes); err != nil {
			return err
		}
	}

	ops := compileOperations(changes)
	if len(ops) == 0 {
		s.changes.reset()
		return nil
	}

	logger.Debug(ctx, "flushing unit of work", "operations", len(ops))

	if err := s.engine.Flush(ctx, ops); err != nil {
		// Engine errors that are already classified surface unchanged;
		// raw driver errors get the commit-failure classification.
		if apperror.IsAppError(err) {
			return err
		}
		return apperror.NewStorageCommit(err)
	}

	bumpVersions(changes)
	s.changes.reset()
	return nil
}

// Select executes a query, injecting the registered read filter for the
// target table unless the query opted out, and scans all rows into dest
// (a pointer to a slice of structs).
func (s *Session) Select(ctx context.Context, q *query.Query, dest any) error {
	return s.engine.Select(ctx, q.Compile(s.filters), dest)
}

// Get executes a query expecting one row, with the same filter injection as
// Select. Returns a NOT_FOUND error when no visible row matches.
func (s *Session) Get(ctx context.Context, q *query.Query, dest any) error {
	return s.engine.Get(ctx, q.Compile(s.filters), dest)
}

// compileOperations turns changes into the storage batch. Runs after the
// interceptor pipeline, so soft-deleted entities already carry their mark
// and timestamp in the column map.
func compileOperations(changes []*Change) []storage.Operation {
	ops := make([]storage.Operation, 0, len(changes))
	for _, ch := range changes {
		op := storage.Operation{
			Table: ch.Entity.EntityTable(),
			ID:    ch.Entity.EntityID(),
		}

		switch ch.State {
		case Added:
			op.Kind = storage.OpInsert
			op.Columns = storage.StructToMap(ch.Entity)
		case Modified:
			op.Kind = storage.OpUpdate
			op.Columns = storage.StructToMap(ch.Entity)
			if v, ok := op.Columns["version"].(int); ok {
				op.ExpectedVersion = v
			}
		case Removed:
			op.Kind = storage.OpDelete
		default:
			continue
		}

		ops = append(ops, op)
	}
	return ops
}

// bumpVersions mirrors the engine-side optimistic lock increment on the
// in-memory entities after a successful flush, so they can be updated again
// without a reload.
func bumpVersions(changes []*Change) {
	for _, ch := range changes {
		if ch.State != Modified {
			continue
		}
		if v, ok := ch.Entity.(interface {
			Touch()
		}); ok {
			v.Touch()
		}
	}
}
