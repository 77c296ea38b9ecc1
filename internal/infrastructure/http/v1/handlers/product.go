package handlers

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/domain/product"
	"stockflow/internal/infrastructure/http/v1/dto"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	*BaseHandler
	service *product.Service
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, service *product.Service) *ProductHandler {
	return &ProductHandler{BaseHandler: base, service: service}
}

// Create handles POST /products.
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Register(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromProduct(p))
}

// Get handles GET /products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := h.ParseID(c)
	if !ok {
		return
	}

	p, err := h.service.Get(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProduct(p))
}

// Update handles PATCH /products/:id.
func (h *ProductHandler) Update(c *gin.Context) {
	productID, ok := h.ParseID(c)
	if !ok {
		return
	}

	var req dto.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.UpdateDetails(c.Request.Context(), productID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromProduct(p))
}

// List handles GET /products.
// Query: warehouse, category, sku, search, lowStock, limit, offset.
func (h *ProductHandler) List(c *gin.Context) {
	filter := product.ListFilter{
		Page:      h.ParsePage(c),
		Warehouse: c.Query("warehouse"),
		Category:  c.Query("category"),
		SKU:       c.Query("sku"),
		Search:    c.Query("search"),
		LowStock:  c.Query("lowStock") == "true",
	}

	res, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(res, func(p *product.Product) dto.ProductResponse {
		resp := dto.FromProduct(p)
		resp.StockHistory = nil
		return resp
	}))
}
