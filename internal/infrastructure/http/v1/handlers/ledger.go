package handlers

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/domain/ledger"
	"stockflow/internal/infrastructure/http/v1/dto"
)

// LedgerHandler serves the stock ledger.
type LedgerHandler struct {
	*BaseHandler
	service *ledger.Service
}

func NewLedgerHandler(base *BaseHandler, service *ledger.Service) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, service: service}
}

// List handles GET /ledger.
// Query: productId, warehouse, actorId, action, documentId, from, to, limit, offset.
func (h *LedgerHandler) List(c *gin.Context) {
	productID, ok := h.ParseIDQuery(c, "productId")
	if !ok {
		return
	}
	documentID, ok := h.ParseIDQuery(c, "documentId")
	if !ok {
		return
	}
	from, ok := h.ParseTimeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := h.ParseTimeQuery(c, "to")
	if !ok {
		return
	}

	res, err := h.service.List(c.Request.Context(), ledger.Filter{
		Page:       h.ParsePage(c),
		ProductID:  productID,
		Warehouse:  c.Query("warehouse"),
		ActorID:    c.Query("actorId"),
		Action:     ledger.Action(c.Query("action")),
		DocumentID: documentID,
		From:       from,
		To:         to,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(res, dto.FromLedgerEntry))
}
