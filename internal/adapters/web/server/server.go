package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/venuechat/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RateLimit bounds API requests per user. Zero Requests disables it.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Verifier     ports.IdentityVerifier
	Venues       ports.VenueService
	Chat         ports.ChatService
	Nearby       ports.NearbyService
	Audit        ports.AuditService
	Hub          *websocket.Hub
	Exporter     handlers.DirectoryExporter
	HealthChecks map[string]handlers.HealthCheck
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr      string
	Verifier  ports.IdentityVerifier
	Hub       *websocket.Hub
	RateLimit RateLimit

	MeHandler       *handlers.MeHandler
	VenueHandler    *handlers.VenueHandler
	MessageHandler  *handlers.MessageHandler
	LocationHandler *handlers.LocationHandler
	AuditHandler    *handlers.AuditHandler
	ExportHandler   *handlers.ExportHandler
	HealthHandler   *handlers.HealthHandler
	srv             *http.Server
}

// NewServer creates a new web server.
func NewServer(addr string, deps Dependencies, limit RateLimit) *Server {
	return &Server{
		Addr:      addr,
		Verifier:  deps.Verifier,
		Hub:       deps.Hub,
		RateLimit: limit,

		MeHandler:       handlers.NewMeHandler(),
		VenueHandler:    handlers.NewVenueHandler(deps.Venues),
		MessageHandler:  handlers.NewMessageHandler(deps.Chat),
		LocationHandler: handlers.NewLocationHandler(deps.Nearby),
		AuditHandler:    handlers.NewAuditHandler(deps.Audit),
		ExportHandler:   handlers.NewExportHandler(deps.Venues, deps.Audit, deps.Exporter),
		HealthHandler:   handlers.NewHealthHandler(deps.HealthChecks),
	}
}

// Handler returns the instrumented route table.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(SetupRoutes(s), "venuechat-http")
}

// Serve listens on Addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server listening", "addr", s.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("web server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("web server shutdown error", "error", err)
	}
	<-errCh
	return ctx.Err()
}

func (s *Server) String() string {
	return "web-server"
}
