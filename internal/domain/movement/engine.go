package movement

import (
	"context"
	"fmt"
	"math"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/product"
	"stockflow/pkg/logger"
)

// Engine turns an applied document into product quantity changes, history
// snapshots and ledger entries. It must run inside the transaction that locked
// the document.
type Engine struct {
	products product.Repository
	ledger   ledger.Repository
	now      func() time.Time
}

// NewEngine creates a new mutation engine.
func NewEngine(products product.Repository, ledgerRepo ledger.Repository) *Engine {
	return &Engine{
		products: products,
		ledger:   ledgerRepo,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply executes the stock effect of doc and returns the ledger entries it
// wrote. Nothing is written when an error is returned before the first
// mutation; later failures rely on the caller rolling the transaction back.
func (e *Engine) Apply(ctx context.Context, doc *Document, approverID string) ([]ledger.Entry, error) {
	var (
		entries []ledger.Entry
		err     error
	)
	switch doc.Kind {
	case KindReceipt:
		entries, err = e.applyReceipt(ctx, doc, approverID)
	case KindDelivery:
		entries, err = e.applyDelivery(ctx, doc, approverID)
	case KindTransfer:
		entries, err = e.applyTransfer(ctx, doc, approverID)
	case KindAdjustment:
		entries, err = e.applyAdjustment(ctx, doc, approverID)
	default:
		return nil, apperror.NewValidation(fmt.Sprintf("unknown document kind %q", doc.Kind))
	}
	if err != nil {
		return nil, err
	}

	if err := e.ledger.Append(ctx, entries...); err != nil {
		return nil, fmt.Errorf("append ledger: %w", err)
	}
	for _, entry := range entries {
		logger.Ledger(ctx,
			"action", entry.Action,
			"product_id", entry.ProductID,
			"sku", entry.SKU,
			"warehouse", entry.Warehouse,
			"delta", entry.Delta,
			"quantity_after", entry.QuantityAfter,
			"document", entry.DocumentNumber,
			"actor_id", entry.ActorID,
		)
	}
	return entries, nil
}

func (e *Engine) applyReceipt(ctx context.Context, doc *Document, approverID string) ([]ledger.Entry, error) {
	p, err := e.lockInDeclaredWarehouse(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := addStock(p, doc.Quantity); err != nil {
		return nil, err
	}
	if err := e.save(ctx, p, doc.Location); err != nil {
		return nil, err
	}
	receipt, _ := doc.Receipt()
	return []ledger.Entry{
		e.entry(doc, approverID, ledger.ActionReceipt, p, doc.Quantity, map[string]any{
			"supplier": receipt.Supplier,
		}),
	}, nil
}

// addStock increases the quantity of p, refusing a result that does not fit
// in an int64.
func addStock(p *product.Product, qty int64) error {
	if qty > math.MaxInt64-p.Quantity {
		return apperror.NewValidation("resulting quantity exceeds the supported maximum").
			WithDetail("productId", p.ID).
			WithDetail("warehouse", p.Warehouse).
			WithDetail("quantity", p.Quantity).
			WithDetail("increment", qty)
	}
	p.Quantity += qty
	return nil
}

func (e *Engine) applyDelivery(ctx context.Context, doc *Document, approverID string) ([]ledger.Entry, error) {
	p, err := e.lockInDeclaredWarehouse(ctx, doc)
	if err != nil {
		return nil, err
	}
	if p.Quantity < doc.Quantity {
		return nil, apperror.NewInsufficientStock(p.ID, p.Warehouse, doc.Quantity, p.Quantity)
	}
	p.Quantity -= doc.Quantity
	if err := e.save(ctx, p, doc.Location); err != nil {
		return nil, err
	}
	delivery, _ := doc.Delivery()
	return []ledger.Entry{
		e.entry(doc, approverID, ledger.ActionDelivery, p, -doc.Quantity, map[string]any{
			"deliveredTo":    delivery.DeliveredTo,
			"pickedQuantity": delivery.PickedQuantity,
			"packedQuantity": delivery.PackedQuantity,
		}),
	}, nil
}

// applyTransfer locks both products in warehouse name order so that two
// opposite transfers of the same SKU cannot deadlock.
func (e *Engine) applyTransfer(ctx context.Context, doc *Document, approverID string) ([]ledger.Entry, error) {
	transfer, ok := doc.Transfer()
	if !ok {
		return nil, apperror.NewInternal(fmt.Errorf("transfer %s has no transfer payload", doc.ID))
	}

	var (
		src, dst *product.Product
		err      error
	)
	if doc.Warehouse < transfer.ToWarehouse {
		if src, err = e.lockInWarehouse(ctx, doc.ProductID, doc.Warehouse); err != nil {
			return nil, err
		}
		if dst, err = e.lockOrCreateDestination(ctx, src, transfer); err != nil {
			return nil, err
		}
	} else {
		// SKU never changes, so an unlocked read is enough to find the destination.
		peek, err := e.products.GetByID(ctx, doc.ProductID)
		if err != nil || peek.Warehouse != doc.Warehouse {
			return nil, productNotFoundIn(err, doc.ProductID, doc.Warehouse)
		}
		if dst, err = e.lockOrCreateDestination(ctx, peek, transfer); err != nil {
			return nil, err
		}
		if src, err = e.lockInWarehouse(ctx, doc.ProductID, doc.Warehouse); err != nil {
			return nil, err
		}
	}

	if src.Quantity < doc.Quantity {
		return nil, apperror.NewInsufficientStock(src.ID, src.Warehouse, doc.Quantity, src.Quantity)
	}

	if err := addStock(dst, doc.Quantity); err != nil {
		return nil, err
	}
	src.Quantity -= doc.Quantity
	if err := e.save(ctx, src, doc.Location); err != nil {
		return nil, err
	}
	if err := e.save(ctx, dst, transfer.ToLocation); err != nil {
		return nil, err
	}

	route := map[string]any{
		"fromWarehouse": doc.Warehouse,
		"toWarehouse":   transfer.ToWarehouse,
	}
	out := e.entry(doc, approverID, ledger.ActionTransferOut, src, -doc.Quantity, route)
	in := e.entry(doc, approverID, ledger.ActionTransferIn, dst, doc.Quantity, route)
	return []ledger.Entry{out, in}, nil
}

func (e *Engine) applyAdjustment(ctx context.Context, doc *Document, approverID string) ([]ledger.Entry, error) {
	adj, ok := doc.Adjustment()
	if !ok {
		return nil, apperror.NewInternal(fmt.Errorf("adjustment %s has no adjustment payload", doc.ID))
	}
	p, err := e.lockInWarehouse(ctx, doc.ProductID, doc.Warehouse)
	if err != nil {
		return nil, err
	}

	observed := p.Quantity
	drift := observed - adj.OldStock
	if drift != 0 {
		logger.Warn(ctx, "stock moved since adjustment was drafted",
			"document", doc.Number,
			"product_id", p.ID,
			"old_stock", adj.OldStock,
			"observed_stock", observed,
			"new_stock", adj.NewStock,
		)
	}

	p.Quantity = adj.NewStock
	if err := e.save(ctx, p, doc.Location); err != nil {
		return nil, err
	}
	return []ledger.Entry{
		e.entry(doc, approverID, ledger.ActionAdjustment, p, adj.NewStock-adj.OldStock, map[string]any{
			"reason":        adj.Reason,
			"oldStock":      adj.OldStock,
			"newStock":      adj.NewStock,
			"observedStock": observed,
			"drift":         drift,
		}),
	}, nil
}

// lockInDeclaredWarehouse loads the product for receipts and deliveries, which
// report a product recorded elsewhere as a mismatch.
func (e *Engine) lockInDeclaredWarehouse(ctx context.Context, doc *Document) (*product.Product, error) {
	p, err := e.products.GetForUpdate(ctx, doc.ProductID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewProductNotFound(doc.ProductID, "")
		}
		return nil, err
	}
	if p.Warehouse != doc.Warehouse {
		return nil, apperror.NewWarehouseMismatch(p.ID, doc.Warehouse, p.Warehouse)
	}
	return p, nil
}

// lockInWarehouse loads the product for transfers and adjustments, which
// treat a product recorded elsewhere as absent.
func (e *Engine) lockInWarehouse(ctx context.Context, productID id.ID, warehouse string) (*product.Product, error) {
	p, err := e.products.GetForUpdate(ctx, productID)
	if err != nil || p.Warehouse != warehouse {
		return nil, productNotFoundIn(err, productID, warehouse)
	}
	return p, nil
}

func (e *Engine) lockOrCreateDestination(ctx context.Context, src *product.Product, transfer TransferPayload) (*product.Product, error) {
	dst, err := e.products.GetBySKUForUpdate(ctx, src.SKU, transfer.ToWarehouse)
	if err == nil {
		return dst, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	now := e.now()
	dst = &product.Product{
		ID:           id.New(),
		SKU:          src.SKU,
		Name:         src.Name,
		Category:     src.Category,
		Unit:         src.Unit,
		Warehouse:    transfer.ToWarehouse,
		Location:     transfer.ToLocation,
		Quantity:     0,
		ReorderLevel: src.ReorderLevel,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// A concurrent transfer may create the same row first; the duplicate error
	// aborts this transaction and the caller may retry.
	if err := e.products.Create(ctx, dst); err != nil {
		return nil, err
	}
	if err := e.products.AppendHistory(ctx, dst.Snapshot(now)); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	logger.Info(ctx, "destination product created",
		"product_id", dst.ID, "sku", dst.SKU, "warehouse", dst.Warehouse)
	return dst, nil
}

// save persists a changed quantity and appends the matching history snapshot.
func (e *Engine) save(ctx context.Context, p *product.Product, location string) error {
	now := e.now()
	if location != "" {
		p.Location = location
	}
	p.UpdatedAt = now
	if err := e.products.Update(ctx, p); err != nil {
		return err
	}
	if err := e.products.AppendHistory(ctx, p.Snapshot(now)); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (e *Engine) entry(doc *Document, approverID string, action ledger.Action, p *product.Product, delta int64, ctxData map[string]any) ledger.Entry {
	return ledger.Entry{
		ID:             id.New(),
		Action:         action,
		ProductID:      p.ID,
		SKU:            p.SKU,
		Warehouse:      p.Warehouse,
		Location:       p.Location,
		Delta:          delta,
		QuantityAfter:  p.Quantity,
		ActorID:        doc.ActorID,
		ApproverID:     approverID,
		DocumentID:     doc.ID,
		DocumentNumber: doc.Number,
		DocumentKind:   string(doc.Kind),
		Context:        ctxData,
		CreatedAt:      e.now(),
	}
}

func productNotFoundIn(err error, productID id.ID, warehouse string) error {
	if err != nil && !apperror.IsNotFound(err) {
		return err
	}
	return apperror.NewProductNotFound(productID, warehouse)
}
