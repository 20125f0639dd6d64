package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/query"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/internal/infrastructure/http/v1/middleware"
)

// MovementHandler serves the movement log.
type MovementHandler struct {
	*BaseHandler
	ledger *ledger.Service
	query  *query.Facade
}

// NewMovementHandler creates a movement handler.
func NewMovementHandler(base *BaseHandler, led *ledger.Service, q *query.Facade) *MovementHandler {
	return &MovementHandler{BaseHandler: base, ledger: led, query: q}
}

// Create handles POST /movements.
func (h *MovementHandler) Create(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	var req dto.CreateMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	draft, err := req.ToDraft()
	if err != nil {
		h.Error(c, err)
		return
	}
	m, replayed, err := h.ledger.AppendIdempotent(c.Request.Context(), a, middleware.IdempotencyKey(c), draft)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.CreatedOrReplayed(c, m, replayed)
}

// Get handles GET /movements/:id.
func (h *MovementHandler) Get(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	movementID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	m, err := h.ledger.Get(c.Request.Context(), a, movementID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// List handles GET /movements.
func (h *MovementHandler) List(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	var q dto.MovementQuery
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

	res, err := h.query.ListMovements(c.Request.Context(), a, f)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, res)
}
