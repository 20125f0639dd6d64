package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/catalog"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// CatalogHandler serves every catalog kind under /catalog/:kind.
type CatalogHandler struct {
	*BaseHandler
	service *catalog.Service
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(base *BaseHandler, service *catalog.Service) *CatalogHandler {
	return &CatalogHandler{BaseHandler: base, service: service}
}

func (h *CatalogHandler) kind(c *gin.Context) (catalog.Kind, bool) {
	k, err := catalog.ParseKind(c.Param("kind"))
	if err != nil {
		h.Error(c, err)
		return "", false
	}
	return k, true
}

// Create handles POST /catalog/:kind.
func (h *CatalogHandler) Create(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	var req dto.CreateCatalogRequest
	if !h.BindJSON(c, &req) {
		return
	}
	item, err := h.service.Create(c.Request.Context(), a, catalog.CreateInput{
		Kind:     kind,
		ParentID: req.ParentID,
		Code:     req.Code,
		Name:     req.Name,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, item)
}

// Get handles GET /catalog/:kind/:id.
func (h *CatalogHandler) Get(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), a, kind, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// List handles GET /catalog/:kind.
func (h *CatalogHandler) List(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	parentID, ok := h.QueryID(c, "parentId")
	if !ok {
		return
	}
	res, err := h.service.List(c.Request.Context(), a, catalog.ListFilter{
		Kind:     kind,
		ParentID: parentID,
		Search:   c.Query("search"),
		Page:     h.Page(c),
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, res)
}
