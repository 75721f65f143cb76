package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/venuechat/internal/core/ports"
)

// AuditHandler handles audit logging operations
type AuditHandler struct {
	Service ports.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service ports.AuditService) *AuditHandler {
	return &AuditHandler{
		Service: service,
	}
}

// HandleGetLogs returns the latest audit logs
func (h *AuditHandler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logs, err := h.Service.GetLogs(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": logs,
	})
}
