package product

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/tx"
	"stockflow/internal/domain"
	"stockflow/pkg/logger"
)

// RegisterInput describes a new product in one warehouse.
type RegisterInput struct {
	SKU             string
	Name            string
	Category        string
	Unit            string
	Warehouse       string
	Location        string
	OpeningQuantity int64
	ReorderLevel    *int64
}

// DetailsInput carries the catalog fields that may change after registration.
// Nil fields are left untouched.
type DetailsInput struct {
	Name         *string
	Category     *string
	Unit         *string
	Location     *string
	ReorderLevel *int64
}

// Service provides product catalog operations.
type Service struct {
	repo      Repository
	txManager tx.Manager
	now       func() time.Time
}

// NewService creates a new product service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a product and its first stock history entry.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Product, error) {
	now := s.now()
	p := &Product{
		ID:           id.New(),
		SKU:          NormalizeSKU(in.SKU),
		Name:         strings.TrimSpace(in.Name),
		Category:     strings.TrimSpace(in.Category),
		Unit:         strings.TrimSpace(in.Unit),
		Warehouse:    strings.TrimSpace(in.Warehouse),
		Location:     strings.TrimSpace(in.Location),
		Quantity:     in.OpeningQuantity,
		ReorderLevel: DefaultReorderLevel,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if p.Unit == "" {
		p.Unit = DefaultUnit
	}
	if in.ReorderLevel != nil {
		p.ReorderLevel = *in.ReorderLevel
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		entry := p.Snapshot(now)
		if err := s.repo.AppendHistory(ctx, entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		p.StockHistory = []StockHistoryEntry{entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "product registered",
		"id", p.ID, "sku", p.SKU, "warehouse", p.Warehouse, "quantity", p.Quantity)
	return p, nil
}

// UpdateDetails changes catalog fields. Quantity is not reachable from here.
func (s *Service) UpdateDetails(ctx context.Context, productID id.ID, in DetailsInput) (*Product, error) {
	var updated *Product
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if in.Name != nil {
			p.Name = strings.TrimSpace(*in.Name)
		}
		if in.Category != nil {
			p.Category = strings.TrimSpace(*in.Category)
		}
		if in.Unit != nil {
			p.Unit = strings.TrimSpace(*in.Unit)
		}
		if in.Location != nil {
			p.Location = strings.TrimSpace(*in.Location)
		}
		if in.ReorderLevel != nil {
			p.ReorderLevel = *in.ReorderLevel
		}
		if err := p.Validate(); err != nil {
			return err
		}
		p.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns a product with its stock history.
func (s *Service) Get(ctx context.Context, productID id.ID) (*Product, error) {
	if id.IsNil(productID) {
		return nil, apperror.NewValidation("product id is required")
	}
	return s.repo.GetByID(ctx, productID)
}

// List returns products ordered by SKU then warehouse.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Product], error) {
	filter.Page = filter.Page.Normalize()
	filter.SKU = NormalizeSKU(filter.SKU)
	return s.repo.List(ctx, filter)
}
