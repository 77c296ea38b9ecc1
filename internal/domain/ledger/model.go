// Package ledger provides the append-only stock ledger. An entry records one
// quantity change of one product in one warehouse and is never updated.
package ledger

import (
	"time"

	"stockflow/internal/core/id"
)

// Action is the kind of stock change an entry records.
type Action string

const (
	ActionReceipt     Action = "RECEIPT"
	ActionDelivery    Action = "DELIVERY"
	ActionTransferOut Action = "TRANSFER_OUT"
	ActionTransferIn  Action = "TRANSFER_IN"
	ActionAdjustment  Action = "ADJUSTMENT"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionReceipt, ActionDelivery, ActionTransferOut, ActionTransferIn, ActionAdjustment:
		return true
	}
	return false
}

// Entry is one immutable ledger row.
type Entry struct {
	ID             id.ID          `db:"id" json:"id"`
	Action         Action         `db:"action" json:"action"`
	ProductID      id.ID          `db:"product_id" json:"productId"`
	SKU            string         `db:"sku" json:"sku"`
	Warehouse      string         `db:"warehouse" json:"warehouse"`
	Location       string         `db:"location" json:"location,omitempty"`
	Delta          int64          `db:"delta" json:"delta"`
	QuantityAfter  int64          `db:"quantity_after" json:"quantityAfter"`
	ActorID        string         `db:"actor_id" json:"actorId"`
	ApproverID     string         `db:"approver_id" json:"approverId,omitempty"`
	DocumentID     id.ID          `db:"document_id" json:"documentId"`
	DocumentNumber string         `db:"document_number" json:"documentNumber"`
	DocumentKind   string         `db:"document_kind" json:"documentKind"`
	Context        map[string]any `db:"context" json:"context,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// NetDelta sums the deltas of entries.
func NetDelta(entries []Entry) int64 {
	var sum int64
	for _, e := range entries {
		sum += e.Delta
	}
	return sum
}
