// Package movement provides movement documents (receipts, deliveries,
// transfers and adjustments), their status workflow and the engine that turns
// an applied document into a stock change.
package movement

import (
	"encoding/json"
	"fmt"
	"time"

	"stockflow/internal/core/id"
)

// Document is the common header of every movement document. Kind-specific
// fields live in Payload, whose concrete type always matches Kind.
type Document struct {
	ID     id.ID  `json:"id"`
	Number string `json:"number"`
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`

	ProductID id.ID `json:"productId"`
	// Warehouse is the source warehouse for transfers.
	Warehouse string `json:"warehouse"`
	// Location is the source location for transfers.
	Location string `json:"location,omitempty"`
	// Quantity is unused by adjustments.
	Quantity int64 `json:"quantity"`

	ActorID    string `json:"actorId"`
	ApproverID string `json:"approverId,omitempty"`

	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`

	Payload Payload `json:"payload"`
}

// Payload is the kind-specific part of a document.
type Payload interface {
	Kind() Kind
}

type ReceiptPayload struct {
	Supplier string `json:"supplier"`
}

type DeliveryPayload struct {
	DeliveredTo    string `json:"deliveredTo"`
	PickedQuantity int64  `json:"pickedQuantity"`
	PackedQuantity int64  `json:"packedQuantity"`
}

type TransferPayload struct {
	ToWarehouse string `json:"toWarehouse"`
	ToLocation  string `json:"toLocation,omitempty"`
}

// AdjustmentPayload holds the stock target of an adjustment. OldStock is
// captured when the document is created and never rewritten.
type AdjustmentPayload struct {
	OldStock      int64  `json:"oldStock"`
	NewStock      int64  `json:"newStock"`
	PhysicalCount *int64 `json:"physicalCount,omitempty"`
	Reason        string `json:"reason"`
}

func (ReceiptPayload) Kind() Kind    { return KindReceipt }
func (DeliveryPayload) Kind() Kind   { return KindDelivery }
func (TransferPayload) Kind() Kind   { return KindTransfer }
func (AdjustmentPayload) Kind() Kind { return KindAdjustment }

// Receipt returns the receipt payload when d is a receipt.
func (d *Document) Receipt() (ReceiptPayload, bool) {
	p, ok := d.Payload.(ReceiptPayload)
	return p, ok
}

// Delivery returns the delivery payload when d is a delivery.
func (d *Document) Delivery() (DeliveryPayload, bool) {
	p, ok := d.Payload.(DeliveryPayload)
	return p, ok
}

// Transfer returns the transfer payload when d is a transfer.
func (d *Document) Transfer() (TransferPayload, bool) {
	p, ok := d.Payload.(TransferPayload)
	return p, ok
}

// Adjustment returns the adjustment payload when d is an adjustment.
func (d *Document) Adjustment() (AdjustmentPayload, bool) {
	p, ok := d.Payload.(AdjustmentPayload)
	return p, ok
}

// IsTerminal reports whether the document can no longer change.
func (d *Document) IsTerminal() bool {
	return IsTerminal(d.Kind, d.Status)
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if adj, ok := d.Payload.(AdjustmentPayload); ok && adj.PhysicalCount != nil {
		v := *adj.PhysicalCount
		adj.PhysicalCount = &v
		c.Payload = adj
	}
	return &c
}

// EncodePayload serializes a payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("document has no payload")
	}
	return json.Marshal(p)
}

// DecodePayload restores the payload stored for a document of kind k.
func DecodePayload(k Kind, data []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch k {
	case KindReceipt:
		var v ReceiptPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KindDelivery:
		var v DeliveryPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KindTransfer:
		var v TransferPayload
		err = json.Unmarshal(data, &v)
		p = v
	case KindAdjustment:
		var v AdjustmentPayload
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown document kind %q", k)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", k, err)
	}
	return p, nil
}

// NumberPrefix is the numerator prefix of each kind.
func NumberPrefix(k Kind) string {
	switch k {
	case KindReceipt:
		return "REC"
	case KindDelivery:
		return "DEL"
	case KindTransfer:
		return "TRF"
	case KindAdjustment:
		return "ADJ"
	}
	return "DOC"
}
