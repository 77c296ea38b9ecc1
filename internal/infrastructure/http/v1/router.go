// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockflow/internal/core/security"
	"stockflow/internal/domain/ledger"
	"stockflow/internal/domain/movement"
	"stockflow/internal/domain/product"
	"stockflow/internal/infrastructure/http/v1/handlers"
	"stockflow/internal/infrastructure/http/v1/middleware"
	"stockflow/pkg/logger"
)

// Version is reported by the liveness check.
const Version = "0.1.0"

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger *logger.Logger

	// JWTValidator authenticates /api/v1 requests.
	JWTValidator middleware.JWTValidator

	// AllowAnonymous also accepts X-Actor-ID / X-Actor-Role headers.
	// Development only.
	AllowAnonymous bool

	// Policy guards status transitions. Nil allows every transition.
	Policy security.TransitionPolicy

	Products  *product.Service
	Movements *movement.Service
	Ledger    *ledger.Service

	// Database backs the readiness check. Nil for memory storage.
	Database handlers.Pinger

	// Idempotency enables X-Idempotency-Key handling when set.
	Idempotency middleware.IdempotencyStore
}

var documentGroups = []struct {
	path string
	kind movement.Kind
}{
	{"/receipts", movement.KindReceipt},
	{"/deliveries", movement.KindDelivery},
	{"/transfers", movement.KindTransfer},
	{"/adjustments", movement.KindAdjustment},
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Database, Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	api := router.Group("/api/v1")
	if cfg.AllowAnonymous {
		api.Use(middleware.AuthOrAnonymous(cfg.JWTValidator))
	} else {
		api.Use(middleware.Auth(cfg.JWTValidator))
	}
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerProductRoutes(api, base, cfg)
	registerDocumentRoutes(api, base, cfg)
	registerLedgerRoutes(api, base, cfg)

	return router
}

func registerProductRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewProductHandler(base, cfg.Products)

	products := rg.Group("/products")
	products.GET("", h.List)
	products.POST("", h.Create)
	products.GET("/:id", h.Get)
	products.PATCH("/:id", h.Update)
}

func registerDocumentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewMovementHandler(base, cfg.Movements, cfg.Policy)

	for _, g := range documentGroups {
		RegisterDocumentRoutes(rg.Group(g.path), h.ForKind(g.kind))
	}

	deliveries := rg.Group("/deliveries")
	deliveries.POST("/:id/picking", h.RecordPicking)
	deliveries.POST("/:id/packing", h.RecordPacking)

	rg.GET("/documents", h.List)
	rg.GET("/documents/:id/history", h.History)
}

func registerLedgerRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewLedgerHandler(base, cfg.Ledger)
	rg.GET("/ledger", h.List)
}
