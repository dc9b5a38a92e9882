// Package product is a reference catalog entity demonstrating the
// soft-delete pipeline end to end.
package product

import (
	"context"

	"github.com/shopspring/decimal"

	"tombstone/internal/core/apperror"
	"tombstone/internal/core/entity"
	"tombstone/internal/storage"
)

// Table is the storage table for products.
const Table = "products"

// Product is a soft-deletable catalog item. Embedding entity.BaseEntity
// grants the deletable capability, so removing a product through a session
// marks it instead of erasing it.
type Product struct {
	entity.BaseEntity

	// Code is a human-readable identifier (unique)
	Code string `db:"code" json:"code"`

	// Name is the display name
	Name string `db:"name" json:"name"`

	// Price uses decimal to preserve monetary precision
	Price decimal.Decimal `db:"price" json:"price"`
}

// New creates a Product with generated ID.
func New(code, name string, price decimal.Decimal) *Product {
	return &Product{
		BaseEntity: entity.NewBaseEntity(),
		Code:       code,
		Name:       name,
		Price:      price,
	}
}

// EntityTable implements entity.Entity.
func (p *Product) EntityTable() string {
	return Table
}

// Validate implements entity.Validatable.
func (p *Product) Validate(_ context.Context) error {
	if p.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if p.Price.IsNegative() {
		return apperror.NewValidation("price must not be negative").
			WithDetail("field", "price")
	}
	return nil
}

// TableSpec returns the storage table description for schema construction.
func TableSpec() storage.Table {
	return storage.TableFor[Product](Table)
}
