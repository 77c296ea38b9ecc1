package dto

import (
	"time"

	"stockflow/internal/domain/ledger"
)

// LedgerEntryResponse represents one stock ledger entry.
type LedgerEntryResponse struct {
	ID             string         `json:"id"`
	Action         string         `json:"action"`
	ProductID      string         `json:"productId"`
	SKU            string         `json:"sku"`
	Warehouse      string         `json:"warehouse"`
	Location       string         `json:"location,omitempty"`
	Delta          int64          `json:"delta"`
	QuantityAfter  int64          `json:"quantityAfter"`
	ActorID        string         `json:"actorId"`
	ApproverID     string         `json:"approverId,omitempty"`
	DocumentID     string         `json:"documentId"`
	DocumentNumber string         `json:"documentNumber"`
	DocumentKind   string         `json:"documentKind"`
	Context        map[string]any `json:"context,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func FromLedgerEntry(e ledger.Entry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:             e.ID.String(),
		Action:         string(e.Action),
		ProductID:      e.ProductID.String(),
		SKU:            e.SKU,
		Warehouse:      e.Warehouse,
		Location:       e.Location,
		Delta:          e.Delta,
		QuantityAfter:  e.QuantityAfter,
		ActorID:        e.ActorID,
		ApproverID:     e.ApproverID,
		DocumentID:     e.DocumentID.String(),
		DocumentNumber: e.DocumentNumber,
		DocumentKind:   e.DocumentKind,
		Context:        e.Context,
		CreatedAt:      e.CreatedAt,
	}
}
