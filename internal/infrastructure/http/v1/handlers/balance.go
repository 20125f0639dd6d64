package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/query"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// BalanceHandler serves balance queries.
type BalanceHandler struct {
	*BaseHandler
	query *query.Facade
}

// NewBalanceHandler creates a balance handler.
func NewBalanceHandler(base *BaseHandler, q *query.Facade) *BalanceHandler {
	return &BalanceHandler{BaseHandler: base, query: q}
}

// List handles GET /balances.
func (h *BalanceHandler) List(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	var raw dto.BalanceQuery
	if err := c.ShouldBindQuery(&raw); err != nil {
		h.Error(c, invalidQuery(err))
		return
	}
	q, err := raw.Query()
	if err != nil {
		h.Error(c, err)
		return
	}
	page, err := h.query.ListBalances(c.Request.Context(), a, q)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, page)
}

// Lookup handles GET /balances/lookup. An absent key answers with zero quantities.
func (h *BalanceHandler) Lookup(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	var raw dto.BalanceKeyQuery
	if err := c.ShouldBindQuery(&raw); err != nil {
		h.Error(c, invalidQuery(err))
		return
	}
	key, err := raw.Key(a.TenantID)
	if err != nil {
		h.Error(c, err)
		return
	}
	b, err := h.query.GetBalance(c.Request.Context(), a, key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{
		"key":              key,
		"quantity":         b.Quantity,
		"reservedQuantity": b.ReservedQuantity,
		"available":        b.Available(),
		"version":          b.Version,
		"lastMovementAt":   b.LastMovementAt,
	})
}

// Summary handles GET /balances/summary.
func (h *BalanceHandler) Summary(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	var raw dto.SummaryQuery
	if err := c.ShouldBindQuery(&raw); err != nil {
		h.Error(c, invalidQuery(err))
		return
	}
	productID, warehouseID, err := raw.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}
	sum, err := h.query.AvailabilitySummary(c.Request.Context(), a, productID, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sum)
}

func invalidQuery(err error) error {
	return apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error())
}
