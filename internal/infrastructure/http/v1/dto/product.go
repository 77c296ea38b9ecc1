package dto

import (
	"time"

	"stockflow/internal/domain/product"
)

// CreateProductRequest registers a product in a warehouse.
type CreateProductRequest struct {
	SKU             string `json:"sku" binding:"required"`
	Name            string `json:"name" binding:"required"`
	Category        string `json:"category"`
	Unit            string `json:"unit"`
	Warehouse       string `json:"warehouse" binding:"required"`
	Location        string `json:"location"`
	OpeningQuantity int64  `json:"quantity"`
	ReorderLevel    *int64 `json:"reorderLevel"`
}

// ToInput converts the request into the service input.
func (r *CreateProductRequest) ToInput() product.RegisterInput {
	return product.RegisterInput{
		SKU:             r.SKU,
		Name:            r.Name,
		Category:        r.Category,
		Unit:            r.Unit,
		Warehouse:       r.Warehouse,
		Location:        r.Location,
		OpeningQuantity: r.OpeningQuantity,
		ReorderLevel:    r.ReorderLevel,
	}
}

// UpdateProductRequest changes descriptive fields. Quantity is not writable.
type UpdateProductRequest struct {
	Name         *string `json:"name"`
	Category     *string `json:"category"`
	Unit         *string `json:"unit"`
	Location     *string `json:"location"`
	ReorderLevel *int64  `json:"reorderLevel"`
}

func (r *UpdateProductRequest) ToInput() product.DetailsInput {
	return product.DetailsInput{
		Name:         r.Name,
		Category:     r.Category,
		Unit:         r.Unit,
		Location:     r.Location,
		ReorderLevel: r.ReorderLevel,
	}
}

// StockHistoryResponse is one stock snapshot.
type StockHistoryResponse struct {
	Warehouse string    `json:"warehouse"`
	Location  string    `json:"location,omitempty"`
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProductResponse represents a product.
type ProductResponse struct {
	ID           string                 `json:"id"`
	SKU          string                 `json:"sku"`
	Name         string                 `json:"name"`
	Category     string                 `json:"category,omitempty"`
	Unit         string                 `json:"unit"`
	Warehouse    string                 `json:"warehouse"`
	Location     string                 `json:"location,omitempty"`
	Quantity     int64                  `json:"quantity"`
	ReorderLevel int64                  `json:"reorderLevel"`
	LowStock     bool                   `json:"lowStock"`
	Version      int                    `json:"version"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
	StockHistory []StockHistoryResponse `json:"stockHistory,omitempty"`
}

// FromProduct creates ProductResponse from a domain product.
func FromProduct(p *product.Product) ProductResponse {
	resp := ProductResponse{
		ID:           p.ID.String(),
		SKU:          p.SKU,
		Name:         p.Name,
		Category:     p.Category,
		Unit:         p.Unit,
		Warehouse:    p.Warehouse,
		Location:     p.Location,
		Quantity:     p.Quantity,
		ReorderLevel: p.ReorderLevel,
		LowStock:     p.IsLowStock(),
		Version:      p.Version,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	for _, h := range p.StockHistory {
		resp.StockHistory = append(resp.StockHistory, StockHistoryResponse{
			Warehouse: h.Warehouse,
			Location:  h.Location,
			Quantity:  h.Quantity,
			UpdatedAt: h.CreatedAt,
		})
	}
	return resp
}
