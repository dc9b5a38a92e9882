package audit

import (
	"context"

	"tombstone/internal/core/id"
	"tombstone/internal/query"
	"tombstone/internal/session"
)

// Service records and purges audit events. No read filter applies to this
// table; purged events are physically gone.
type Service struct {
	sessions *session.Factory
}

// NewService creates an audit service.
func NewService(sessions *session.Factory) *Service {
	return &Service{sessions: sessions}
}

// Record appends an event.
func (s *Service) Record(ctx context.Context, action, subject string) (*Event, error) {
	ev := New(action, subject)
	sess := s.sessions.NewSession()
	sess.Add(ev)
	if err := sess.Commit(ctx); err != nil {
		return nil, err
	}
	return ev, nil
}

// List returns events, newest first.
func (s *Service) List(ctx context.Context) ([]Event, error) {
	sess := s.sessions.NewSession()
	var events []Event
	q := query.New(Table).OrderBy("-occurred_at")
	if err := sess.Select(ctx, q, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Purge physically deletes an event; audit events have no deletable
// capability, so the remove intent is not rewritten.
func (s *Service) Purge(ctx context.Context, eventID id.ID) error {
	var ev Event
	sess := s.sessions.NewSession()
	if err := sess.Get(ctx, query.New(Table).Where(query.Eq("id", eventID)), &ev); err != nil {
		return err
	}
	sess.Remove(&ev)
	return sess.Commit(ctx)
}
