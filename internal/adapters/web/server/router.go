package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/lcalzada-xor/venuechat/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes builds the HTTP route table.
func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})

	r.HandleFunc("/healthz", s.HealthHandler.HandleHealth).Methods(http.MethodGet)

	auth := middleware.AuthMiddleware(s.Verifier)
	requireAdmin := middleware.RoleMiddleware(domain.RoleAdmin)

	// WebSocket endpoint (protected)
	r.Handle("/ws", auth(http.HandlerFunc(s.Hub.HandleWebSocket))).Methods(http.MethodGet)

	// Metrics endpoint (protected - requires authentication)
	r.Handle("/metrics", auth(promhttp.Handler())).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth, middleware.RateLimitByUser(s.RateLimit.Requests, s.RateLimit.Window))

	api.HandleFunc("/me", s.MeHandler.HandleMe).Methods(http.MethodGet)

	api.HandleFunc("/venues", s.VenueHandler.HandleList).Methods(http.MethodGet)
	api.HandleFunc("/venues", s.VenueHandler.HandleCreate).Methods(http.MethodPost)
	api.HandleFunc("/venues/{id}", s.VenueHandler.HandleGet).Methods(http.MethodGet)
	api.HandleFunc("/venues/{id}", s.VenueHandler.HandleUpdate).Methods(http.MethodPut)
	api.HandleFunc("/venues/{id}", s.VenueHandler.HandleDelete).Methods(http.MethodDelete)

	api.HandleFunc("/venues/{id}/messages", s.MessageHandler.HandleHistory).Methods(http.MethodGet)
	api.HandleFunc("/venues/{id}/messages", s.MessageHandler.HandlePost).Methods(http.MethodPost)

	api.HandleFunc("/location", s.LocationHandler.HandleUpdate).Methods(http.MethodPut)
	api.HandleFunc("/nearby", s.LocationHandler.HandleNearby).Methods(http.MethodGet)

	// Restricted to admins
	api.Handle("/audit-logs", requireAdmin(http.HandlerFunc(s.AuditHandler.HandleGetLogs))).Methods(http.MethodGet)
	api.Handle("/export/venues.pdf", requireAdmin(http.HandlerFunc(s.ExportHandler.HandleVenuesPDF))).Methods(http.MethodGet)
	api.Handle("/export/venues.{format:csv|json}", requireAdmin(http.HandlerFunc(s.ExportHandler.HandleVenuesData))).Methods(http.MethodGet)
	api.Handle("/export/audit.csv", requireAdmin(http.HandlerFunc(s.ExportHandler.HandleAuditCSV))).Methods(http.MethodGet)

	return r
}
