package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/audit"
)

const maxAuditEntries = 200

// AuditHandler serves the audit trail of one entity.
type AuditHandler struct {
	*BaseHandler
	reader audit.Reader
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(base *BaseHandler, reader audit.Reader) *AuditHandler {
	return &AuditHandler{BaseHandler: base, reader: reader}
}

// History handles GET /audit/:entity/:id.
func (h *AuditHandler) History(c *gin.Context) {
	a, ok := h.Actor(c)
	if !ok {
		return
	}
	entityType, err := audit.ParseEntityType(c.Param("entity"))
	if err != nil {
		h.Error(c, err)
		return
	}
	entityID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	limit := h.ParseIntQuery(c, "limit", 50)
	if limit <= 0 || limit > maxAuditEntries {
		limit = maxAuditEntries
	}

	entries, err := h.reader.History(c.Request.Context(), a.TenantID, entityType, entityID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	if entries == nil {
		entries = []audit.LogEntry{}
	}
	h.OK(c, gin.H{"items": entries})
}
