// Package product provides the per-warehouse product record that movement
// documents mutate.
package product

import (
	"strings"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
)

const (
	DefaultUnit         = "pcs"
	DefaultReorderLevel = 10
)

// Product is identified by (SKU, Warehouse). Quantity is only ever written by
// the movement engine or at registration.
type Product struct {
	ID           id.ID     `db:"id" json:"id"`
	SKU          string    `db:"sku" json:"sku"`
	Name         string    `db:"name" json:"name"`
	Category     string    `db:"category" json:"category"`
	Unit         string    `db:"unit" json:"unit"`
	Warehouse    string    `db:"warehouse" json:"warehouse"`
	Location     string    `db:"location" json:"location,omitempty"`
	Quantity     int64     `db:"quantity" json:"quantity"`
	ReorderLevel int64     `db:"reorder_level" json:"reorderLevel"`
	Version      int       `db:"version" json:"version"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`

	// StockHistory is append-only and loaded only by single-product reads.
	StockHistory []StockHistoryEntry `db:"-" json:"stockHistory,omitempty"`
}

// StockHistoryEntry is a snapshot of a product quantity after a change.
type StockHistoryEntry struct {
	ProductID id.ID     `db:"product_id" json:"-"`
	Seq       int64     `db:"seq" json:"seq"`
	Warehouse string    `db:"warehouse" json:"warehouse"`
	Location  string    `db:"location" json:"location,omitempty"`
	Quantity  int64     `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"updatedAt"`
}

// NormalizeSKU trims and upper-cases a SKU.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// IsLowStock reports whether the product is at or below its reorder level.
func (p *Product) IsLowStock() bool {
	return p.Quantity <= p.ReorderLevel
}

// Snapshot builds the history entry for the current quantity.
func (p *Product) Snapshot(now time.Time) StockHistoryEntry {
	return StockHistoryEntry{
		ProductID: p.ID,
		Warehouse: p.Warehouse,
		Location:  p.Location,
		Quantity:  p.Quantity,
		CreatedAt: now,
	}
}

// Clone returns a deep copy.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	if p.StockHistory != nil {
		c.StockHistory = append([]StockHistoryEntry(nil), p.StockHistory...)
	}
	return &c
}

// Validate checks the invariants of a stored product.
func (p *Product) Validate() error {
	switch {
	case p.SKU == "":
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	case strings.TrimSpace(p.Name) == "":
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	case strings.TrimSpace(p.Category) == "":
		return apperror.NewValidation("category is required").WithDetail("field", "category")
	case strings.TrimSpace(p.Warehouse) == "":
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouse")
	case p.Quantity < 0:
		return apperror.NewValidation("quantity cannot be negative").WithDetail("field", "quantity")
	case p.ReorderLevel < 0:
		return apperror.NewValidation("reorder level cannot be negative").WithDetail("field", "reorderLevel")
	}
	return nil
}
