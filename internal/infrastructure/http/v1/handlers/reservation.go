package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/reservation"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/internal/infrastructure/http/v1/middleware"
)

// ReservationHandler serves reservations and their lifecycle actions.
type ReservationHandler struct {
	*BaseHandler
	service *reservation.Service
}

// NewReservationHandler creates a reservation handler.
func NewReservationHandler(base *BaseHandler, service *reservation.Service) *ReservationHandler {
	return &ReservationHandler{BaseHandler: base, service: service}
}

// Create handles POST /reservations.
func (h *ReservationHandler) Create(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	var in reservation.CreateInput
	if !h.BindJSON(c, &in) {
		return
	}
	r, replayed, err := h.service.ReserveIdempotent(c.Request.Context(), a, middleware.IdempotencyKey(c), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.CreatedOrReplayed(c, r, replayed)
}

// Get handles GET /reservations/:id.
func (h *ReservationHandler) Get(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	reservationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	r, err := h.service.Get(c.Request.Context(), a, reservationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// List handles GET /reservations.
func (h *ReservationHandler) List(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	var q dto.ReservationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.Error(c, invalidQuery(err))
		return
	}
	f, err := q.Filter()
	if err != nil {
		h.Error(c, err)
		return
	}
	f.Page = h.Page(c)

	res, err := h.service.List(c.Request.Context(), a, f)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, res)
}

// Confirm handles POST /reservations/:id/confirm.
func (h *ReservationHandler) Confirm(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	reservationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	r, err := h.service.Confirm(c.Request.Context(), a, reservationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// Fulfill handles POST /reservations/:id/fulfill.
func (h *ReservationHandler) Fulfill(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	reservationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.FulfillRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	r, err := h.service.Fulfill(c.Request.Context(), a, reservationID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// Cancel handles POST /reservations/:id/cancel and DELETE /reservations/:id.
func (h *ReservationHandler) Cancel(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	reservationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	r, err := h.service.Cancel(c.Request.Context(), a, reservationID, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}
