package dto

import (
	"time"

	"stockflow/internal/core/apperror"
	"stockflow/internal/core/id"
	"stockflow/internal/domain/movement"
)

// --- Request DTOs ---

// CreateReceiptRequest represents a request to create a receipt.
type CreateReceiptRequest struct {
	ProductID string     `json:"productId"`
	Warehouse string     `json:"warehouse"`
	Location  string     `json:"location,omitempty"`
	Quantity  int64      `json:"quantity"`
	Supplier  string     `json:"supplier"`
	Status    string     `json:"status,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
}

func (r *CreateReceiptRequest) ToInput(actorID string) (movement.CreateInput, error) {
	productID, err := parseProductID(r.ProductID)
	if err != nil {
		return movement.CreateInput{}, err
	}
	return movement.CreateInput{
		Kind:      movement.KindReceipt,
		ProductID: productID,
		Warehouse: r.Warehouse,
		Location:  r.Location,
		Quantity:  r.Quantity,
		Status:    movement.Status(r.Status),
		ActorID:   actorID,
		Date:      r.Date,
		Supplier:  r.Supplier,
	}, nil
}

// CreateDeliveryRequest represents a request to create a delivery.
type CreateDeliveryRequest struct {
	ProductID   string     `json:"productId"`
	Warehouse   string     `json:"warehouse"`
	Location    string     `json:"location,omitempty"`
	Quantity    int64      `json:"quantity"`
	DeliveredTo string     `json:"deliveredTo"`
	Status      string     `json:"status,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
}

func (r *CreateDeliveryRequest) ToInput(actorID string) (movement.CreateInput, error) {
	productID, err := parseProductID(r.ProductID)
	if err != nil {
		return movement.CreateInput{}, err
	}
	return movement.CreateInput{
		Kind:        movement.KindDelivery,
		ProductID:   productID,
		Warehouse:   r.Warehouse,
		Location:    r.Location,
		Quantity:    r.Quantity,
		Status:      movement.Status(r.Status),
		ActorID:     actorID,
		Date:        r.Date,
		DeliveredTo: r.DeliveredTo,
	}, nil
}

// CreateTransferRequest represents a request to create a transfer.
type CreateTransferRequest struct {
	ProductID     string     `json:"productId"`
	FromWarehouse string     `json:"fromWarehouse"`
	ToWarehouse   string     `json:"toWarehouse"`
	FromLocation  string     `json:"fromLocation,omitempty"`
	ToLocation    string     `json:"toLocation,omitempty"`
	Quantity      int64      `json:"quantity"`
	Status        string     `json:"status,omitempty"`
	Date          *time.Time `json:"date,omitempty"`
}

func (r *CreateTransferRequest) ToInput(actorID string) (movement.CreateInput, error) {
	productID, err := parseProductID(r.ProductID)
	if err != nil {
		return movement.CreateInput{}, err
	}
	return movement.CreateInput{
		Kind:        movement.KindTransfer,
		ProductID:   productID,
		Warehouse:   r.FromWarehouse,
		Location:    r.FromLocation,
		Quantity:    r.Quantity,
		Status:      movement.Status(r.Status),
		ActorID:     actorID,
		Date:        r.Date,
		ToWarehouse: r.ToWarehouse,
		ToLocation:  r.ToLocation,
	}, nil
}

// CreateAdjustmentRequest represents a request to create an adjustment.
// PhysicalCount wins over NewStock when both are sent.
type CreateAdjustmentRequest struct {
	ProductID     string     `json:"productId"`
	Warehouse     string     `json:"warehouse"`
	Location      string     `json:"location,omitempty"`
	NewStock      *int64     `json:"newStock,omitempty"`
	PhysicalCount *int64     `json:"physicalCount,omitempty"`
	Reason        string     `json:"reason"`
	Status        string     `json:"status,omitempty"`
	Date          *time.Time `json:"date,omitempty"`
}

func (r *CreateAdjustmentRequest) ToInput(actorID string) (movement.CreateInput, error) {
	productID, err := parseProductID(r.ProductID)
	if err != nil {
		return movement.CreateInput{}, err
	}
	return movement.CreateInput{
		Kind:          movement.KindAdjustment,
		ProductID:     productID,
		Warehouse:     r.Warehouse,
		Location:      r.Location,
		Status:        movement.Status(r.Status),
		ActorID:       actorID,
		Date:          r.Date,
		NewStock:      r.NewStock,
		PhysicalCount: r.PhysicalCount,
		Reason:        r.Reason,
	}, nil
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// PickingRequest records picking progress of a delivery.
type PickingRequest struct {
	PickedQuantity *int64 `json:"pickedQuantity" binding:"required"`
	Location       string `json:"location,omitempty"`
}

// PackingRequest records packing progress of a delivery.
type PackingRequest struct {
	PackedQuantity *int64 `json:"packedQuantity" binding:"required"`
}

func parseProductID(s string) (id.ID, error) {
	if s == "" {
		return id.Nil(), nil
	}
	productID, err := id.Parse(s)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid productId format").WithDetail("field", "productId")
	}
	return productID, nil
}

// --- Response DTOs ---

// DocumentResponse represents a movement document of any kind. Only the
// fields of the document's kind are filled.
type DocumentResponse struct {
	ID         string    `json:"id"`
	Number     string    `json:"number"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	ProductID  string    `json:"productId"`
	Warehouse  string    `json:"warehouse"`
	Location   string    `json:"location,omitempty"`
	Quantity   int64     `json:"quantity"`
	ActorID    string    `json:"actorId"`
	ApproverID string    `json:"approverId,omitempty"`
	Date       time.Time `json:"date"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Version    int       `json:"version"`

	// Receipt
	Supplier string `json:"supplier,omitempty"`

	// Delivery
	DeliveredTo    string `json:"deliveredTo,omitempty"`
	PickedQuantity *int64 `json:"pickedQuantity,omitempty"`
	PackedQuantity *int64 `json:"packedQuantity,omitempty"`

	// Transfer
	FromWarehouse string `json:"fromWarehouse,omitempty"`
	ToWarehouse   string `json:"toWarehouse,omitempty"`
	FromLocation  string `json:"fromLocation,omitempty"`
	ToLocation    string `json:"toLocation,omitempty"`

	// Adjustment
	OldStock      *int64 `json:"oldStock,omitempty"`
	NewStock      *int64 `json:"newStock,omitempty"`
	PhysicalCount *int64 `json:"physicalCount,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// FromDocument creates DocumentResponse from a domain document.
func FromDocument(d *movement.Document) DocumentResponse {
	resp := DocumentResponse{
		ID:         d.ID.String(),
		Number:     d.Number,
		Kind:       string(d.Kind),
		Status:     string(d.Status),
		ProductID:  d.ProductID.String(),
		Warehouse:  d.Warehouse,
		Location:   d.Location,
		Quantity:   d.Quantity,
		ActorID:    d.ActorID,
		ApproverID: d.ApproverID,
		Date:       d.Date,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		Version:    d.Version,
	}

	switch p := d.Payload.(type) {
	case movement.ReceiptPayload:
		resp.Supplier = p.Supplier
	case movement.DeliveryPayload:
		resp.DeliveredTo = p.DeliveredTo
		resp.PickedQuantity = &p.PickedQuantity
		resp.PackedQuantity = &p.PackedQuantity
	case movement.TransferPayload:
		resp.FromWarehouse = d.Warehouse
		resp.FromLocation = d.Location
		resp.ToWarehouse = p.ToWarehouse
		resp.ToLocation = p.ToLocation
	case movement.AdjustmentPayload:
		resp.OldStock = &p.OldStock
		resp.NewStock = &p.NewStock
		resp.PhysicalCount = p.PhysicalCount
		resp.Reason = p.Reason
	}
	return resp
}

// AuditRecordResponse is one entry of a document's change history.
type AuditRecordResponse struct {
	Action    string         `json:"action"`
	UserID    string         `json:"userId,omitempty"`
	Changes   map[string]any `json:"changes,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func FromAuditRecord(r movement.AuditRecord) AuditRecordResponse {
	return AuditRecordResponse{
		Action:    r.Action,
		UserID:    r.UserID,
		Changes:   r.Changes,
		CreatedAt: r.CreatedAt,
	}
}
