package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stockflow/internal/core/apperror"
	appctx "stockflow/internal/core/context"
	"stockflow/internal/core/id"
	"stockflow/internal/domain"
	"stockflow/internal/infrastructure/http/v1/middleware"
	"stockflow/pkg/logger"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseID parses the :id path parameter.
func (h *BaseHandler) ParseID(c *gin.Context) (id.ID, bool) {
	parsed, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("id", c.Param("id")))
		return id.Nil(), false
	}
	return parsed, true
}

// ParseIDQuery parses an optional id query parameter.
func (h *BaseHandler) ParseIDQuery(c *gin.Context, key string) (id.ID, bool) {
	val := c.Query(key)
	if val == "" {
		return id.Nil(), true
	}
	parsed, err := id.Parse(val)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+key+" format").WithDetail("field", key))
		return id.Nil(), false
	}
	return parsed, true
}

// ParseTimeQuery parses an optional RFC 3339 timestamp or YYYY-MM-DD date.
func (h *BaseHandler) ParseTimeQuery(c *gin.Context, key string) (*time.Time, bool) {
	val := c.Query(key)
	if val == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, val); err == nil {
			return &t, true
		}
	}
	h.Error(c, apperror.NewValidation("invalid "+key+" format, expected RFC 3339 or YYYY-MM-DD").WithDetail("field", key))
	return nil, false
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// ParsePage reads limit and offset.
func (h *BaseHandler) ParsePage(c *gin.Context) domain.Page {
	return domain.Page{
		Limit:  h.ParseIntQuery(c, "limit", domain.DefaultLimit),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}.Normalize()
}

// GetUserID extracts user ID from request context.
func (h *BaseHandler) GetUserID(c *gin.Context) string {
	return appctx.GetUserID(c.Request.Context())
}

type idempotencyCompleter interface {
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error
}

// CompleteIdempotency stores the response for replay when the request carried
// an idempotency key. Best effort: a failure only costs the replay.
func (h *BaseHandler) CompleteIdempotency(c *gin.Context, statusCode int, response any) {
	key := c.GetString(middleware.ContextIdempotencyKey)
	if key == "" {
		return
	}
	v, _ := c.Get(middleware.ContextIdempotencyStore)
	store, ok := v.(idempotencyCompleter)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	body, err := json.Marshal(response)
	if err == nil {
		err = store.CompleteKey(context.WithoutCancel(ctx), key, statusCode, "application/json; charset=utf-8", body)
	}
	if err != nil {
		logger.Warn(ctx, "failed to store idempotent response", "key", key, "error", err)
	}
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.CompleteIdempotency(c, http.StatusCreated, data)
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.CompleteIdempotency(c, http.StatusOK, data)
	c.JSON(http.StatusOK, data)
}
