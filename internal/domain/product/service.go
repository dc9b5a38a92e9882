package product

import (
	"context"

	"tombstone/internal/core/id"
	"tombstone/internal/query"
	"tombstone/internal/session"
)

// Service provides product operations on top of sessions. Each call owns a
// fresh session (one unit of work per operation).
type Service struct {
	sessions *session.Factory
}

// NewService creates a product service.
func NewService(sessions *session.Factory) *Service {
	return &Service{sessions: sessions}
}

// Create validates and inserts a new product.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}
	sess := s.sessions.NewSession()
	sess.Add(p)
	return sess.Commit(ctx)
}

// Get returns a visible (not soft-deleted) product by id.
func (s *Service) Get(ctx context.Context, productID id.ID) (*Product, error) {
	var p Product
	sess := s.sessions.NewSession()
	q := query.New(Table).Where(query.Eq("id", productID))
	if err := sess.Get(ctx, q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns products ordered by name. With includeDeleted the read
// filter is bypassed for this query only and marked rows appear as well.
func (s *Service) List(ctx context.Context, includeDeleted bool) ([]Product, error) {
	sess := s.sessions.NewSession()
	q := query.New(Table).OrderBy("name")
	if includeDeleted {
		q = q.Unfiltered()
	}
	var items []Product
	if err := sess.Select(ctx, q, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Update validates and persists changes to an existing product.
func (s *Service) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}
	sess := s.sessions.NewSession()
	sess.Update(p)
	return sess.Commit(ctx)
}

// Delete soft-deletes a product: the remove intent is rewritten into a
// marked update at commit time.
func (s *Service) Delete(ctx context.Context, productID id.ID) error {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return err
	}
	sess := s.sessions.NewSession()
	sess.Remove(p)
	return sess.Commit(ctx)
}

// Restore clears the deletion mark of a soft-deleted product.
func (s *Service) Restore(ctx context.Context, productID id.ID) error {
	var p Product
	sess := s.sessions.NewSession()
	q := query.New(Table).Where(query.Eq("id", productID)).Unfiltered()
	if err := sess.Get(ctx, q, &p); err != nil {
		return err
	}
	p.Restore()
	sess.Update(&p)
	return sess.Commit(ctx)
}
