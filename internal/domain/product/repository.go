package product

import (
	"context"

	"stockflow/internal/core/id"
	"stockflow/internal/domain"
)

// ListFilter selects products.
type ListFilter struct {
	domain.Page

	Warehouse string
	Category  string
	SKU       string
	// Search matches name or SKU, case-insensitive.
	Search string
	// LowStock selects products at or below their reorder level.
	LowStock bool
}

// Repository persists products and their stock history.
type Repository interface {
	// Create inserts a product. A second product with the same (sku, warehouse)
	// fails with a duplicate error.
	Create(ctx context.Context, p *Product) error

	// Update writes every mutable column and bumps the version.
	Update(ctx context.Context, p *Product) error

	// GetByID returns the product with its stock history.
	GetByID(ctx context.Context, productID id.ID) (*Product, error)

	// GetForUpdate returns the product and locks it until the surrounding
	// transaction ends. History is not loaded.
	GetForUpdate(ctx context.Context, productID id.ID) (*Product, error)

	// GetBySKUForUpdate locks the product identified by (sku, warehouse).
	GetBySKUForUpdate(ctx context.Context, sku, warehouse string) (*Product, error)

	// AppendHistory adds a snapshot to the product stock history.
	AppendHistory(ctx context.Context, entry StockHistoryEntry) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Product], error)
}
