package handlers

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/core/apperror"
	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/security"
	"stockflow/internal/domain/movement"
	"stockflow/internal/infrastructure/http/v1/dto"
)

type createRequest interface {
	ToInput(actorID string) (movement.CreateInput, error)
}

// MovementHandler handles HTTP requests for movement documents.
type MovementHandler struct {
	*BaseHandler
	service *movement.Service
	policy  security.TransitionPolicy
}

// NewMovementHandler creates a new movement handler. A nil policy allows
// every transition.
func NewMovementHandler(base *BaseHandler, service *movement.Service, policy security.TransitionPolicy) *MovementHandler {
	if policy == nil {
		policy = security.OpenPolicy{}
	}
	return &MovementHandler{BaseHandler: base, service: service, policy: policy}
}

// ForKind returns the handler serving the routes of one document kind.
func (h *MovementHandler) ForKind(kind movement.Kind) *KindHandler {
	return &KindHandler{MovementHandler: h, kind: kind}
}

// List handles GET /documents (every kind).
// Query: kind, warehouse, fromWarehouse, toWarehouse, productId, status,
// dateFrom, dateTo, limit, offset.
func (h *MovementHandler) List(c *gin.Context) {
	h.list(c, movement.Kind(c.Query("kind")))
}

// History handles GET /documents/:id/history.
func (h *MovementHandler) History(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	records, err := h.service.History(c.Request.Context(), docID, h.ParseIntQuery(c, "limit", 0))
	if err != nil {
		h.Error(c, err)
		return
	}
	items := make([]dto.AuditRecordResponse, 0, len(records))
	for _, r := range records {
		items = append(items, dto.FromAuditRecord(r))
	}
	h.OK(c, items)
}

// RecordPicking handles POST /deliveries/:id/picking.
func (h *MovementHandler) RecordPicking(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.PickingRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.RecordPicked(c.Request.Context(), docID, *req.PickedQuantity, req.Location)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// RecordPacking handles POST /deliveries/:id/packing.
func (h *MovementHandler) RecordPacking(c *gin.Context) {
	docID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.PackingRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.RecordPacked(c.Request.Context(), docID, *req.PackedQuantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

func (h *MovementHandler) list(c *gin.Context, kind movement.Kind) {
	productID, ok := h.ParseIDQuery(c, "productId")
	if !ok {
		return
	}
	dateFrom, ok := h.ParseTimeQuery(c, "dateFrom")
	if !ok {
		return
	}
	dateTo, ok := h.ParseTimeQuery(c, "dateTo")
	if !ok {
		return
	}

	res, err := h.service.List(c.Request.Context(), movement.Filter{
		Page:          h.ParsePage(c),
		Kind:          kind,
		Warehouse:     c.Query("warehouse"),
		FromWarehouse: c.Query("fromWarehouse"),
		ToWarehouse:   c.Query("toWarehouse"),
		ProductID:     productID,
		Status:        movement.Status(c.Query("status")),
		DateFrom:      dateFrom,
		DateTo:        dateTo,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(res, dto.FromDocument))
}

// KindHandler serves /receipts, /deliveries, /transfers and /adjustments.
type KindHandler struct {
	*MovementHandler
	kind movement.Kind
}

// Create handles POST /<kind>.
func (h *KindHandler) Create(c *gin.Context) {
	var req createRequest
	switch h.kind {
	case movement.KindReceipt:
		req = &dto.CreateReceiptRequest{}
	case movement.KindDelivery:
		req = &dto.CreateDeliveryRequest{}
	case movement.KindTransfer:
		req = &dto.CreateTransferRequest{}
	case movement.KindAdjustment:
		req = &dto.CreateAdjustmentRequest{}
	default:
		h.Error(c, apperror.NewValidation("unknown document kind").WithDetail("kind", h.kind))
		return
	}
	if !h.BindJSON(c, req) {
		return
	}

	in, err := req.ToInput(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	doc, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromDocument(doc))
}

// List handles GET /<kind>.
func (h *KindHandler) List(c *gin.Context) {
	h.list(c, h.kind)
}

// Get handles GET /<kind>/:id.
func (h *KindHandler) Get(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Transition handles POST /<kind>/:id/status. The transition policy sees the
// acting role and the current status before the service is called; the
// acting user is recorded as approver.
func (h *KindHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, ok := h.load(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	actorID := appctx.GetUserID(ctx)
	err := h.policy.Authorize(ctx, security.TransitionRequest{
		ActorID: actorID,
		Role:    appctx.GetRole(ctx),
		Kind:    string(doc.Kind),
		From:    string(doc.Status),
		To:      req.Status,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err = h.service.Transition(ctx, doc.ID, movement.Status(req.Status), actorID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// load reads the :id document and hides documents of another kind.
func (h *KindHandler) load(c *gin.Context) (*movement.Document, bool) {
	docID, ok := h.ParseID(c)
	if !ok {
		return nil, false
	}
	doc, err := h.service.Get(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	if doc.Kind != h.kind {
		h.Error(c, apperror.NewNotFound(string(h.kind), docID))
		return nil, false
	}
	return doc, true
}
