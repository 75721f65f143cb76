package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/lcalzada-xor/venuechat/internal/adapters/reporting"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"github.com/lcalzada-xor/venuechat/internal/core/services/export"
)

// DirectoryExporter renders the venue directory.
type DirectoryExporter interface {
	ExportVenueDirectory(meta reporting.DirectoryMetadata, venues []domain.Venue) ([]byte, error)
}

// ExportHandler handles data export
type ExportHandler struct {
	Venues   ports.VenueService
	Audit    ports.AuditService
	Exporter DirectoryExporter
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(venues ports.VenueService, audit ports.AuditService, exporter DirectoryExporter) *ExportHandler {
	return &ExportHandler{
		Venues:   venues,
		Audit:    audit,
		Exporter: exporter,
	}
}

// HandleVenuesPDF streams the venue directory as a PDF attachment.
func (h *ExportHandler) HandleVenuesPDF(w http.ResponseWriter, r *http.Request) {
	venues, err := h.Venues.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	meta := reporting.DirectoryMetadata{GeneratedAt: time.Now()}
	if actor, ok := domain.ActorFromContext(r.Context()); ok {
		meta.GeneratedBy = actor.Email
	}

	data, err := h.Exporter.ExportVenueDirectory(meta, venues)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.audit(r, "venues.pdf", fmt.Sprintf("%d venues", len(venues)))
	h.attach(w, "application/pdf", fmt.Sprintf("venues_%s.pdf", meta.GeneratedAt.Format("20060102_150405")), data)
}

// HandleVenuesData exports the venue list as CSV or JSON, selected by the
// {format} path variable.
func (h *ExportHandler) HandleVenuesData(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]

	venues, err := h.Venues.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	var contentType string
	switch format {
	case "csv":
		contentType = "text/csv; charset=utf-8"
		err = export.ExportVenuesCSV(&buf, venues)
	case "json":
		contentType = "application/json"
		err = export.ExportVenuesJSON(&buf, venues)
	default:
		writeError(w, r, domain.NewValidationError("format", "must be csv or json"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.audit(r, "venues."+format, fmt.Sprintf("%d venues", len(venues)))
	h.attach(w, contentType, fmt.Sprintf("venues_%s.%s", time.Now().Format("20060102_150405"), format), buf.Bytes())
}

// HandleAuditCSV exports the latest audit entries as CSV.
func (h *ExportHandler) HandleAuditCSV(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeError(w, r, fmt.Errorf("audit log not configured"))
		return
	}
	limit, err := queryInt(r, "limit", 1000)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logs, err := h.Audit.GetLogs(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.ExportAuditCSV(&buf, logs); err != nil {
		writeError(w, r, err)
		return
	}
	h.attach(w, "text/csv; charset=utf-8", fmt.Sprintf("audit_%s.csv", time.Now().Format("20060102_150405")), buf.Bytes())
}

func (h *ExportHandler) audit(r *http.Request, target, details string) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Log(r.Context(), domain.ActionExport, target, details); err != nil {
		slog.Warn("failed to audit export", "target", target, "error", err)
	}
}

func (h *ExportHandler) attach(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write export", "error", err)
	}
}
