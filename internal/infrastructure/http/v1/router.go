// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/app"
	"stockledger/internal/core/tenant"
	"stockledger/internal/domain/audit"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Services *app.Services

	// Registry resolves X-Tenant-ID.
	Registry tenant.Registry

	Logger *logger.Logger

	JWTValidator middleware.JWTValidator

	// Audit serves /audit when set.
	Audit audit.Reader

	// Checks are pinged by /health/ready, keyed by dependency name.
	Checks map[string]handlers.Pinger

	Version string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Order matters: Recovery must see panics of every later middleware.
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	health := handlers.NewHealthHandler(cfg.Version, cfg.Checks)
	hg := router.Group("/health")
	{
		hg.GET("/live", health.Live)
		hg.GET("/ready", health.Ready)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Tenant(cfg.Registry))
	v1.Use(middleware.Auth(cfg.JWTValidator))
	v1.Use(middleware.Idempotency())

	base := handlers.NewBaseHandler()
	svc := cfg.Services

	RegisterMovementRoutes(v1.Group("/movements"), handlers.NewMovementHandler(base, svc.Ledger, svc.Query))
	RegisterBalanceRoutes(v1.Group("/balances"), handlers.NewBalanceHandler(base, svc.Query))
	RegisterReservationRoutes(v1.Group("/reservations"), handlers.NewReservationHandler(base, svc.Reservations))
	RegisterDocumentRoutes(v1.Group("/documents"), handlers.NewDocumentHandler(base, svc.Documents))
	RegisterCatalogRoutes(v1.Group("/catalog"), handlers.NewCatalogHandler(base, svc.Catalog))
	if cfg.Audit != nil {
		v1.GET("/audit/:entity/:id", handlers.NewAuditHandler(base, cfg.Audit).History)
	}

	return router
}
