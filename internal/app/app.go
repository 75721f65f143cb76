package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/lcalzada-xor/venuechat/internal/adapters/events"
	"github.com/lcalzada-xor/venuechat/internal/adapters/presence"
	"github.com/lcalzada-xor/venuechat/internal/adapters/reporting"
	"github.com/lcalzada-xor/venuechat/internal/adapters/storage"
	"github.com/lcalzada-xor/venuechat/internal/adapters/web/handlers"
	webserver "github.com/lcalzada-xor/venuechat/internal/adapters/web/server"
	"github.com/lcalzada-xor/venuechat/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/venuechat/internal/config"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/services/audit"
	"github.com/lcalzada-xor/venuechat/internal/core/services/chat"
	grpcserver "github.com/lcalzada-xor/venuechat/internal/core/services/grpc"
	"github.com/lcalzada-xor/venuechat/internal/core/services/identity"
	"github.com/lcalzada-xor/venuechat/internal/core/services/nearby"
	"github.com/lcalzada-xor/venuechat/internal/core/services/persistence"
	"github.com/lcalzada-xor/venuechat/internal/core/services/venue"
	"github.com/lcalzada-xor/venuechat/internal/geo"
	"github.com/lcalzada-xor/venuechat/internal/mock"
	"github.com/lcalzada-xor/venuechat/internal/telemetry"
)

// Application holds the core components of the application and owns the
// infrastructure they share.
type Application struct {
	Config *config.Config
	Logger *slog.Logger

	Storage  *storage.SQLiteAdapter
	Presence *presence.BadgerStore
	Feed     *events.NATSFeed
	Broker   *events.EmbeddedServer

	AuditService       *audit.AuditService
	IdentityService    *identity.Service
	VenueService       *venue.Service
	ChatService        *chat.Service
	NearbyService      *nearby.Service
	PersistenceManager *persistence.PersistenceManager
	Hub                *websocket.Hub
	WebServer          *webserver.Server
	GrpcServer         *grpcserver.Server
	Simulator          *mock.Simulator

	tree *SupervisorTree
}

// New creates a new Application instance and bootstraps its components.
// Resources opened before a failure are released again.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &Application{
		Config: cfg,
		Logger: logger,
	}

	if err := app.bootstrap(); err != nil {
		if cerr := app.cleanup(); cerr != nil {
			logger.Warn("cleanup after failed bootstrap", "error", cerr)
		}
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	if err := app.initStorage(); err != nil {
		return err
	}
	if err := app.initPresence(); err != nil {
		return err
	}
	if err := app.initFeed(); err != nil {
		return err
	}

	// 2. Domain Services
	if err := app.initServices(); err != nil {
		return err
	}

	// 3. Servers
	app.initServers()

	// 4. Simulator
	if app.Config.Mock.Enabled {
		if err := app.initSimulator(); err != nil {
			return err
		}
	}

	app.initSupervisor()
	return nil
}

func (app *Application) initStorage() error {
	path := app.Config.Database.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteAdapter(path)
	if err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}
	app.Storage = store
	return nil
}

func (app *Application) initPresence() error {
	dir := app.Config.Presence.Dir
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create presence directory: %w", err)
		}
	}

	// Locations older than the nearby window can never be shown again.
	store, err := presence.Open(dir, app.Config.Nearby.Window)
	if err != nil {
		return err
	}
	app.Presence = store
	return nil
}

func (app *Application) initFeed() error {
	url := app.Config.Events.URL
	if url == "" {
		broker, err := events.StartEmbedded(app.Config.Events.EmbeddedHost, app.Config.Events.EmbeddedPort)
		if err != nil {
			return fmt.Errorf("failed to start embedded broker: %w", err)
		}
		app.Broker = broker
		url = broker.ClientURL()
		app.Logger.Info("embedded NATS broker started", "url", url)
	}

	feed, err := events.Connect(url, app.Config.Events.Prefix)
	if err != nil {
		return err
	}
	app.Feed = feed
	return nil
}

func (app *Application) initServices() error {
	cfg := app.Config

	app.AuditService = audit.NewAuditService(app.Storage)

	identityCfg := identity.Config{
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		CacheTTL:   cfg.Auth.CacheTTL,
	}
	if cfg.Auth.PublicKeyFile != "" {
		pem, err := os.ReadFile(cfg.Auth.PublicKeyFile)
		if err != nil {
			return fmt.Errorf("failed to read identity public key: %w", err)
		}
		identityCfg.PublicKeyPEM = string(pem)
	}
	ids, err := identity.NewService(app.Storage, app.AuditService, identityCfg)
	if err != nil {
		return fmt.Errorf("failed to init identity verifier: %w", err)
	}
	app.IdentityService = ids

	app.VenueService = venue.NewService(app.Storage, app.Feed, app.AuditService)
	app.ChatService = chat.NewService(app.Storage, app.Storage, app.Feed)

	app.PersistenceManager = persistence.NewPersistenceManager(app.Storage, cfg.Persistence.BufferSize, cfg.Persistence.FlushInterval)
	app.PersistenceManager.SetEnabled(cfg.Persistence.Enabled)
	if !app.PersistenceManager.IsEnabled() {
		app.Logger.Warn("location persistence disabled, locations live only in the presence store")
	}

	ns, err := nearby.NewService(app.Presence, app.Storage, app.PersistenceManager, app.Feed, nearby.Config{
		Criteria: domain.NearbyCriteria{
			RadiusKm: cfg.Nearby.RadiusKm,
			Window:   cfg.Nearby.Window,
		},
		RefreshInterval: cfg.Nearby.RefreshInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to init nearby service: %w", err)
	}
	app.NearbyService = ns
	return nil
}

func (app *Application) initServers() {
	cfg := app.Config

	app.Hub = websocket.NewHub(app.VenueService, app.ChatService, app.NearbyService, app.Feed, websocket.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ChatRate:       rate.Limit(cfg.Chat.RatePerSecond),
		ChatBurst:      cfg.Chat.Burst,
		HistoryLimit:   cfg.Chat.HistoryLimit,
	})

	app.WebServer = webserver.NewServer(cfg.Server.Addr, webserver.Dependencies{
		Verifier: app.IdentityService,
		Venues:   app.VenueService,
		Chat:     app.ChatService,
		Nearby:   app.NearbyService,
		Audit:    app.AuditService,
		Hub:      app.Hub,
		Exporter: reporting.NewPDFExporter(),
		HealthChecks: map[string]handlers.HealthCheck{
			"database":    app.Storage.Ping,
			"change_feed": app.Feed.Ping,
		},
	}, webserver.RateLimit{
		Requests: cfg.Server.RateLimitRequests,
		Window:   cfg.Server.RateLimitWindow,
	})

	if cfg.GRPC.Enabled {
		app.GrpcServer = grpcserver.NewServer(cfg.GRPC.Addr, app.NearbyService, app.IdentityService)
	}
}

func (app *Application) initSimulator() error {
	sim, err := mock.NewSimulator(app.NearbyService, mock.Config{
		Users:    app.Config.Mock.Users,
		Centre:   geo.Location{Latitude: app.Config.Mock.Latitude, Longitude: app.Config.Mock.Longitude},
		Interval: app.Config.Mock.Interval,
		Seed:     time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to init simulator: %w", err)
	}
	app.Simulator = sim
	app.Logger.Info("Mock Mode Active: simulating users", "users", app.Config.Mock.Users)
	return nil
}

func (app *Application) initSupervisor() {
	app.tree = NewSupervisorTree(app.Logger, DefaultTreeConfig())

	app.tree.AddDataService(app.Presence)
	app.tree.AddDataService(app.PersistenceManager)

	app.tree.AddMessagingService(app.NearbyService)
	app.tree.AddMessagingService(app.Hub)
	if app.Simulator != nil {
		app.tree.AddMessagingService(app.Simulator)
	}

	app.tree.AddAPIService(app.WebServer)
	if app.GrpcServer != nil {
		app.tree.AddAPIService(app.GrpcServer)
	}
}

// Run serves every component until ctx is cancelled, then releases the
// shared infrastructure.
func (app *Application) Run(ctx context.Context) error {
	app.Logger.Info("VenueChat ready",
		"http", app.Config.Server.Addr,
		"grpc_enabled", app.Config.GRPC.Enabled,
		"mock", app.Config.Mock.Enabled,
	)

	err := app.tree.Root().Serve(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		app.Logger.Info("Termination signal received")
		err = nil
	}

	return errors.Join(err, app.cleanup())
}

func (app *Application) cleanup() error {
	app.Logger.Info("Cleaning up resources...")

	var errs []error
	if app.Feed != nil {
		if err := app.Feed.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close change feed: %w", err))
		}
	}
	if app.Broker != nil {
		app.Broker.Shutdown()
	}
	if app.Presence != nil {
		if err := app.Presence.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close presence store: %w", err))
		}
	}
	if app.Storage != nil {
		if err := app.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
