package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/actor"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/document"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// DocumentHandler serves documents and their lifecycle actions.
type DocumentHandler struct {
	*BaseHandler
	service *document.Service
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(base *BaseHandler, service *document.Service) *DocumentHandler {
	return &DocumentHandler{BaseHandler: base, service: service}
}

// Create handles POST /documents.
func (h *DocumentHandler) Create(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	var in document.Input
	if !h.BindJSON(c, &in) {
		return
	}
	d, err := h.service.Create(c.Request.Context(), a, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromDocument(d))
}

// Get handles GET /documents/:id.
func (h *DocumentHandler) Get(c *gin.Context) {
	h.act(c, func(ctx context.Context, a actor.Actor, documentID id.ID) (*document.Document, error) {
		return h.service.Get(ctx, a, documentID)
	})
}

// List handles GET /documents.
func (h *DocumentHandler) List(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	var q dto.DocumentQuery
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

// Update handles PUT /documents/:id. Only drafts can be edited.
func (h *DocumentHandler) Update(c *gin.Context) {
	var in document.Input
	if !h.BindJSON(c, &in) {
		return
	}
	h.act(c, func(ctx context.Context, a actor.Actor, documentID id.ID) (*document.Document, error) {
		return h.service.Update(ctx, a, documentID, in)
	})
}

// Delete handles DELETE /documents/:id.
func (h *DocumentHandler) Delete(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	documentID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), a, documentID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Confirm handles POST /documents/:id/confirm.
func (h *DocumentHandler) Confirm(c *gin.Context) {
	h.act(c, h.service.Confirm)
}

// Submit handles POST /documents/:id/submit.
func (h *DocumentHandler) Submit(c *gin.Context) {
	h.act(c, h.service.Submit)
}

// Reject handles POST /documents/:id/reject.
func (h *DocumentHandler) Reject(c *gin.Context) {
	var req dto.ReasonRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	h.act(c, func(ctx context.Context, a actor.Actor, documentID id.ID) (*document.Document, error) {
		return h.service.Reject(ctx, a, documentID, req.Reason)
	})
}

// Cancel handles POST /documents/:id/cancel.
func (h *DocumentHandler) Cancel(c *gin.Context) {
	var req dto.ReasonRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	h.act(c, func(ctx context.Context, a actor.Actor, documentID id.ID) (*document.Document, error) {
		return h.service.Cancel(ctx, a, documentID, req.Reason)
	})
}

// UpdateStatus handles PATCH /documents/:id/status.
func (h *DocumentHandler) UpdateStatus(c *gin.Context) {
	var req dto.StatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	to, err := document.ParseStatus(req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.act(c, func(ctx context.Context, a actor.Actor, documentID id.ID) (*document.Document, error) {
		return h.service.UpdateStatus(ctx, a, documentID, to, req.Reason)
	})
}

// act runs fn on the document addressed by :id and renders the result.
func (h *DocumentHandler) act(c *gin.Context, fn func(context.Context, actor.Actor, id.ID) (*document.Document, error)) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	documentID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	d, err := fn(c.Request.Context(), a, documentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(d))
}
