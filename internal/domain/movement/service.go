package movement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/core/tx"
	"stockflow/internal/domain"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/product"
	"stockflow/pkg/logger"
)

const auditEntityType = "movement_document"

// CreateInput carries the draft fields of a new document. Only the fields of
// the chosen Kind are read.
type CreateInput struct {
	Kind      Kind
	ProductID id.ID
	// Warehouse is the source warehouse for transfers.
	Warehouse string
	// Location is the source location for transfers.
	Location string
	Quantity int64
	// Status defaults to draft.
	Status  Status
	ActorID string
	Date    *time.Time

	Supplier string // receipt

	DeliveredTo string // delivery

	ToWarehouse string // transfer
	ToLocation  string

	NewStock      *int64 // adjustment
	PhysicalCount *int64
	Reason        string
}

// ServiceConfig wires the collaborators of a Service. Events and Audit are
// optional.
type ServiceConfig struct {
	Documents Repository
	Products  product.Repository
	Ledger    ledger.Repository
	TxManager tx.Manager
	Numerator Numerator
	Events    EventPublisher
	Audit     Auditor
}

// Service runs the document workflow.
type Service struct {
	docs      Repository
	products  product.Repository
	txManager tx.Manager
	engine    *Engine
	numerator Numerator
	events    EventPublisher
	audit     Auditor
	trail     AuditTrail
	now       func() time.Time
}

// NewService creates a new movement service.
func NewService(cfg ServiceConfig) *Service {
	trail, _ := cfg.Audit.(AuditTrail)
	return &Service{
		docs:      cfg.Documents,
		products:  cfg.Products,
		txManager: cfg.TxManager,
		engine:    NewEngine(cfg.Products, cfg.Ledger),
		numerator: cfg.Numerator,
		events:    cfg.Events,
		audit:     cfg.Audit,
		trail:     trail,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and stores a new document. Stock is never touched here;
// the stock checks performed are advisory and repeated when the document is
// applied.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Document, error) {
	doc, err := s.draft(in)
	if err != nil {
		return nil, err
	}

	number, err := s.numerator.Next(ctx, NumberPrefix(doc.Kind), doc.Date)
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	doc.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkProduct(ctx, doc); err != nil {
			return err
		}
		if err := s.docs.Create(ctx, doc); err != nil {
			return err
		}
		if err := s.logAudit(ctx, doc, "create", map[string]any{
			"status":   doc.Status,
			"quantity": doc.Quantity,
		}); err != nil {
			return err
		}
		return s.publish(ctx, Event{
			AggregateType: auditEntityType,
			AggregateID:   doc.ID,
			EventType:     EventDocumentCreated,
			Payload:       doc,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement document created",
		"id", doc.ID, "number", doc.Number, "kind", doc.Kind, "status", doc.Status)
	return doc, nil
}

// Transition moves a document to target. Entering the applied status runs
// the engine in the same transaction, so the status change and the stock
// change are committed together or not at all.
func (s *Service) Transition(ctx context.Context, docID id.ID, target Status, approverID string) (*Document, error) {
	if id.IsNil(docID) {
		return nil, apperror.NewValidation("document id is required")
	}
	if target == "" {
		return nil, apperror.NewValidation("status is required").WithDetail("field", "status")
	}

	var (
		doc     *Document
		from    Status
		entries []ledger.Entry
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.docs.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		from = doc.Status
		if !CanTransition(doc.Kind, from, target) {
			return apperror.NewInvalidTransition(string(from), string(target))
		}

		if target == AppliedStatus(doc.Kind) {
			if entries, err = s.engine.Apply(ctx, doc, approverID); err != nil {
				return err
			}
		}

		doc.Status = target
		if approverID != "" {
			doc.ApproverID = approverID
		}
		doc.UpdatedAt = s.now()
		if err := s.docs.Update(ctx, doc); err != nil {
			return err
		}

		if err := s.logAudit(ctx, doc, "status_change", map[string]any{
			"from":     from,
			"to":       target,
			"approver": approverID,
		}); err != nil {
			return err
		}

		events := make([]Event, 0, len(entries)+1)
		events = append(events, Event{
			AggregateType: auditEntityType,
			AggregateID:   doc.ID,
			EventType:     EventStatusChanged,
			Payload: map[string]any{
				"id":     doc.ID,
				"number": doc.Number,
				"kind":   doc.Kind,
				"from":   from,
				"to":     target,
			},
		})
		for _, entry := range entries {
			events = append(events, Event{
				AggregateType: "product",
				AggregateID:   entry.ProductID,
				EventType:     EventStockChanged,
				Payload:       entry,
			})
		}
		return s.publish(ctx, events...)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement document status changed",
		"id", doc.ID, "number", doc.Number, "from", from, "to", target, "ledger_entries", len(entries))
	return doc, nil
}

// RecordPicked stores the picked quantity of a delivery in picking status.
// A non-empty location replaces the document location.
func (s *Service) RecordPicked(ctx context.Context, docID id.ID, picked int64, location string) (*Document, error) {
	if picked < 0 {
		return nil, apperror.NewValidation("picked quantity cannot be negative").WithDetail("field", "pickedQuantity")
	}
	return s.updateDelivery(ctx, docID, StatusPicking, func(doc *Document, d *DeliveryPayload) error {
		if picked > doc.Quantity {
			return apperror.NewValidation("Picked quantity cannot exceed requested quantity").
				WithDetail("picked", picked).WithDetail("requested", doc.Quantity)
		}
		d.PickedQuantity = picked
		if loc := strings.TrimSpace(location); loc != "" {
			doc.Location = loc
		}
		return nil
	})
}

// RecordPacked stores the packed quantity of a delivery in packing status.
func (s *Service) RecordPacked(ctx context.Context, docID id.ID, packed int64) (*Document, error) {
	if packed < 0 {
		return nil, apperror.NewValidation("packed quantity cannot be negative").WithDetail("field", "packedQuantity")
	}
	return s.updateDelivery(ctx, docID, StatusPacking, func(doc *Document, d *DeliveryPayload) error {
		if packed > d.PickedQuantity {
			return apperror.NewValidation("Packed quantity cannot exceed picked quantity").
				WithDetail("packed", packed).WithDetail("picked", d.PickedQuantity)
		}
		d.PackedQuantity = packed
		return nil
	})
}

func (s *Service) updateDelivery(ctx context.Context, docID id.ID, required Status, mutate func(*Document, *DeliveryPayload) error) (*Document, error) {
	var doc *Document
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.docs.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		delivery, ok := doc.Delivery()
		if !ok {
			return apperror.NewValidation("document is not a delivery").WithDetail("kind", doc.Kind)
		}
		if doc.Status != required {
			return apperror.NewStatusRequired(string(required), string(doc.Status))
		}
		if err := mutate(doc, &delivery); err != nil {
			return err
		}
		doc.Payload = delivery
		doc.UpdatedAt = s.now()
		if err := s.docs.Update(ctx, doc); err != nil {
			return err
		}
		return s.logAudit(ctx, doc, "update_"+string(required), map[string]any{
			"pickedQuantity": delivery.PickedQuantity,
			"packedQuantity": delivery.PackedQuantity,
			"location":       doc.Location,
		})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Get returns a document by id.
func (s *Service) Get(ctx context.Context, docID id.ID) (*Document, error) {
	if id.IsNil(docID) {
		return nil, apperror.NewValidation("document id is required")
	}
	var doc *Document
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.docs.GetByID(ctx, docID)
		return err
	})
	return doc, err
}

// List returns documents newest first.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Document], error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return domain.ListResult[*Document]{}, apperror.NewValidation("unknown document kind").WithDetail("kind", filter.Kind)
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return domain.ListResult[*Document]{}, apperror.NewValidation("date range end precedes its start")
	}
	filter.Page = filter.Page.Normalize()

	var res domain.ListResult[*Document]
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.docs.List(ctx, filter)
		return err
	})
	return res, err
}

// History returns the recorded lifecycle changes of a document, newest
// first. It is empty when the configured auditor cannot be read back.
func (s *Service) History(ctx context.Context, docID id.ID, limit int) ([]AuditRecord, error) {
	if _, err := s.Get(ctx, docID); err != nil {
		return nil, err
	}
	if s.trail == nil {
		return []AuditRecord{}, nil
	}
	if limit <= 0 || limit > domain.MaxLimit {
		limit = domain.DefaultLimit
	}
	return s.trail.History(ctx, auditEntityType, docID, limit)
}

// read runs fn in a read-only transaction when the store supports one.
func (s *Service) read(ctx context.Context, fn func(ctx context.Context) error) error {
	if ro, ok := s.txManager.(tx.ReadOnlyManager); ok {
		return ro.ReadOnly(ctx, fn)
	}
	return fn(ctx)
}

// draft builds a document from input without touching any store.
func (s *Service) draft(in CreateInput) (*Document, error) {
	if !in.Kind.Valid() {
		return nil, apperror.NewValidation("unknown document kind").WithDetail("kind", in.Kind)
	}
	if id.IsNil(in.ProductID) {
		return nil, required("productId")
	}
	warehouse := strings.TrimSpace(in.Warehouse)
	if warehouse == "" {
		return nil, required("warehouse")
	}
	actor := strings.TrimSpace(in.ActorID)
	if actor == "" {
		return nil, required("actorId")
	}

	status := in.Status
	if status == "" {
		status = StatusDraft
	}
	if !CanStartIn(in.Kind, status) {
		return nil, apperror.NewValidation(fmt.Sprintf("a %s cannot be created in status %s", in.Kind, status)).
			WithDetail("field", "status")
	}

	now := s.now()
	doc := &Document{
		ID:        id.New(),
		Kind:      in.Kind,
		Status:    status,
		ProductID: in.ProductID,
		Warehouse: warehouse,
		Location:  strings.TrimSpace(in.Location),
		Quantity:  in.Quantity,
		ActorID:   actor,
		Date:      now,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if in.Date != nil {
		doc.Date = in.Date.UTC()
	}

	if in.Kind != KindAdjustment && in.Quantity < 1 {
		return nil, apperror.NewValidation("quantity must be at least 1").WithDetail("field", "quantity")
	}

	switch in.Kind {
	case KindReceipt:
		supplier := strings.TrimSpace(in.Supplier)
		if supplier == "" {
			return nil, required("supplier")
		}
		doc.Payload = ReceiptPayload{Supplier: supplier}
	case KindDelivery:
		to := strings.TrimSpace(in.DeliveredTo)
		if to == "" {
			return nil, required("deliveredTo")
		}
		doc.Payload = DeliveryPayload{DeliveredTo: to}
	case KindTransfer:
		to := strings.TrimSpace(in.ToWarehouse)
		if to == "" {
			return nil, required("toWarehouse")
		}
		if to == warehouse {
			return nil, apperror.NewValidation("source and destination warehouses must differ").
				WithDetail("field", "toWarehouse")
		}
		doc.Payload = TransferPayload{ToWarehouse: to, ToLocation: strings.TrimSpace(in.ToLocation)}
	case KindAdjustment:
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			return nil, required("reason")
		}
		adj := AdjustmentPayload{Reason: reason}
		switch {
		case in.PhysicalCount != nil:
			if *in.PhysicalCount < 0 {
				return nil, apperror.NewValidation("physical count cannot be negative").WithDetail("field", "physicalCount")
			}
			v := *in.PhysicalCount
			adj.PhysicalCount = &v
			adj.NewStock = v
		case in.NewStock != nil:
			if *in.NewStock < 0 {
				return nil, apperror.NewValidation("new stock cannot be negative").WithDetail("field", "newStock")
			}
			adj.NewStock = *in.NewStock
		default:
			return nil, required("newStock")
		}
		doc.Quantity = 0
		doc.Payload = adj
	}
	return doc, nil
}

// checkProduct resolves the product a new document refers to and captures
// the adjustment baseline.
func (s *Service) checkProduct(ctx context.Context, doc *Document) error {
	p, err := s.products.GetByID(ctx, doc.ProductID)
	switch doc.Kind {
	case KindReceipt, KindDelivery:
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewProductNotFound(doc.ProductID, "")
			}
			return err
		}
		if p.Warehouse != doc.Warehouse {
			return apperror.NewWarehouseMismatch(p.ID, doc.Warehouse, p.Warehouse)
		}
	default:
		if err != nil || p.Warehouse != doc.Warehouse {
			return productNotFoundIn(err, doc.ProductID, doc.Warehouse)
		}
	}

	switch doc.Kind {
	case KindDelivery, KindTransfer:
		if doc.Status != StatusDraft && p.Quantity < doc.Quantity {
			return apperror.NewInsufficientStock(p.ID, p.Warehouse, doc.Quantity, p.Quantity)
		}
	case KindAdjustment:
		adj := doc.Payload.(AdjustmentPayload)
		adj.OldStock = p.Quantity
		doc.Payload = adj
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, doc *Document, action string, changes map[string]any) error {
	if s.audit == nil {
		return nil
	}
	changes["number"] = doc.Number
	changes["kind"] = doc.Kind
	if err := s.audit.LogChange(ctx, auditEntityType, doc.ID, action, changes); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, events ...Event) error {
	if s.events == nil || len(events) == 0 {
		return nil
	}
	if err := s.events.PublishBatch(ctx, events); err != nil {
		return fmt.Errorf("publish events: %w", err)
	}
	return nil
}

func required(field string) *apperror.AppError {
	return apperror.NewValidation(field+" is required").WithDetail("field", field)
}
