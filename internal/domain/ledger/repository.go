package ledger

import (
	"context"
	"time"

	"stockflow/internal/core/id"
	"stockflow/internal/domain"
)

// Filter selects ledger entries. Zero values do not filter.
type Filter struct {
	domain.Page

	ProductID  id.ID
	Warehouse  string
	ActorID    string
	Action     Action
	DocumentID id.ID
	From       *time.Time
	To         *time.Time
}

// Repository is append-only: there is no update or delete.
type Repository interface {
	Append(ctx context.Context, entries ...Entry) error
	// List returns entries newest first.
	List(ctx context.Context, filter Filter) (domain.ListResult[Entry], error)
}
