package movement

import (
	"context"
	"time"

	"stockflow/internal/core/id"
	"stockflow/internal/domain"
)

// Filter selects documents. Zero values do not filter.
type Filter struct {
	domain.Page

	Kind Kind
	// Warehouse matches either side of a transfer.
	Warehouse     string
	FromWarehouse string
	ToWarehouse   string
	ProductID     id.ID
	Status        Status
	DateFrom      *time.Time
	DateTo        *time.Time
}

// Repository persists documents. Documents are never deleted.
type Repository interface {
	Create(ctx context.Context, doc *Document) error

	// Update writes status, approver, payload, location and timestamps.
	// It fails with a concurrent modification error when doc.Version is stale
	// and increments doc.Version on success.
	Update(ctx context.Context, doc *Document) error

	GetByID(ctx context.Context, docID id.ID) (*Document, error)

	// GetForUpdate re-reads the document and locks it until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, docID id.ID) (*Document, error)

	// List returns documents newest first.
	List(ctx context.Context, filter Filter) (domain.ListResult[*Document], error)
}

// Numerator issues human readable document numbers.
type Numerator interface {
	Next(ctx context.Context, prefix string, at time.Time) (string, error)
}

// Event is a domain event written in the same transaction as the change it
// describes.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

const (
	EventDocumentCreated = "movement.created"
	EventStatusChanged   = "movement.status_changed"
	EventStockChanged    = "stock.changed"
)

// EventPublisher stores events transactionally (outbox).
type EventPublisher interface {
	PublishBatch(ctx context.Context, events []Event) error
}

// Auditor records document lifecycle changes.
type Auditor interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// AuditRecord is one recorded lifecycle change of a document.
type AuditRecord struct {
	Action    string
	UserID    string
	Changes   map[string]any
	CreatedAt time.Time
}

// AuditTrail reads recorded changes back, newest first. Auditors may
// implement it.
type AuditTrail interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditRecord, error)
}
