package v1

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/infrastructure/http/v1/handlers"
)

// RegisterMovementRoutes registers the movement log routes.
func RegisterMovementRoutes(group *gin.RouterGroup, h *handlers.MovementHandler) {
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
}

// RegisterBalanceRoutes registers the balance query routes.
func RegisterBalanceRoutes(group *gin.RouterGroup, h *handlers.BalanceHandler) {
	group.GET("", h.List)
	group.GET("/lookup", h.Lookup)
	group.GET("/summary", h.Summary)
}

// RegisterReservationRoutes registers reservation CRUD and lifecycle routes.
func RegisterReservationRoutes(group *gin.RouterGroup, h *handlers.ReservationHandler) {
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.POST("/:id/confirm", h.Confirm)
	group.POST("/:id/fulfill", h.Fulfill)
	group.POST("/:id/cancel", h.Cancel)
	group.DELETE("/:id", h.Cancel)
}

// RegisterDocumentRoutes registers document CRUD and lifecycle routes.
func RegisterDocumentRoutes(group *gin.RouterGroup, h *handlers.DocumentHandler) {
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
	group.POST("/:id/confirm", h.Confirm)
	group.POST("/:id/submit", h.Submit)
	group.POST("/:id/reject", h.Reject)
	group.POST("/:id/cancel", h.Cancel)
	group.PATCH("/:id/status", h.UpdateStatus)
}

// RegisterCatalogRoutes registers the catalog routes for every kind.
func RegisterCatalogRoutes(group *gin.RouterGroup, h *handlers.CatalogHandler) {
	group.POST("/:kind", h.Create)
	group.GET("/:kind", h.List)
	group.GET("/:kind/:id", h.Get)
}
