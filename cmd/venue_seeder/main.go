package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lcalzada-xor/venuechat/internal/adapters/storage"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/services/audit"
	"github.com/lcalzada-xor/venuechat/internal/core/services/venue"
)

func main() {
	seedFile := flag.String("seed-file", "./configs/venues_seed.json", "Path to venue seed JSON file")
	dbPath := flag.String("db-path", "./data/venuechat.db", "Path to VenueChat database")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	slog.Info("=== Venue Seed Loader ===", "seed_file", *seedFile, "database", *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		slog.Error("Failed to create data directory", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteAdapter(*dbPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Other instances pick the venues up on their next list; no feed is needed.
	svc := venue.NewService(store, nil, audit.NewAuditService(store))
	seeder := &domain.User{ID: "venue-seeder", DisplayName: "Venue Seeder", Role: domain.RoleAdmin}

	res, err := venue.NewSeedLoader(svc).LoadFromFile(context.Background(), *seedFile, seeder)
	if err != nil {
		slog.Error("Failed to load seed data", "error", err)
		store.Close()
		os.Exit(1)
	}

	venues, _ := svc.List(context.Background())
	slog.Info("Database now contains venues", "count", len(venues), "loaded", res.Loaded, "skipped", res.Skipped, "failed", res.Failed)
}
