// Package mock runs synthetic users so the nearby feed has something to show
// without real clients.
package mock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"github.com/lcalzada-xor/venuechat/internal/geo"
	"github.com/lcalzada-xor/venuechat/internal/telemetry"
)

// Defaults for the walk of the simulated population.
const (
	DefaultSpreadKm = 3.0
	DefaultStepKm   = 0.2
	DefaultInterval = 5 * time.Second
)

// Config tunes the simulator.
type Config struct {
	Users    int
	Centre   geo.Location
	SpreadKm float64
	StepKm   float64
	Interval time.Duration
	Seed     int64
}

// Simulator moves the generated users every Interval and reports their new
// locations through the nearby service, exactly like real clients do.
type Simulator struct {
	nearby   ports.NearbyService
	gen      *DataGenerator
	stepKm   float64
	interval time.Duration
}

// NewSimulator creates a simulator with cfg.Users users around cfg.Centre.
func NewSimulator(nearby ports.NearbyService, cfg Config) (*Simulator, error) {
	if cfg.Users <= 0 {
		return nil, fmt.Errorf("simulator needs at least one user, got %d", cfg.Users)
	}
	if err := cfg.Centre.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulator centre: %w", err)
	}
	if cfg.SpreadKm <= 0 {
		cfg.SpreadKm = DefaultSpreadKm
	}
	if cfg.StepKm <= 0 {
		cfg.StepKm = DefaultStepKm
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	gen := NewDataGenerator(cfg.Seed, cfg.Centre, cfg.SpreadKm)
	gen.GeneratePopulation(cfg.Users)

	return &Simulator{
		nearby:   nearby,
		gen:      gen,
		stepKm:   cfg.StepKm,
		interval: cfg.Interval,
	}, nil
}

// Users returns the simulated population.
func (s *Simulator) Users() []*MockUser {
	return s.gen.Users()
}

// Report sends the current location of every user.
func (s *Simulator) Report(ctx context.Context) error {
	var errs []error
	for _, u := range s.gen.Users() {
		loc := s.gen.Location(u)
		if _, err := s.nearby.UpdateLocation(ctx, u.User, loc.Latitude, loc.Longitude); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.User.ID, err))
			continue
		}
		telemetry.LocationUpdates.WithLabelValues("simulator").Inc()
	}
	return errors.Join(errs...)
}

// Tick moves every user once and reports the result.
func (s *Simulator) Tick(ctx context.Context) error {
	s.gen.Step(s.stepKm)
	return s.Report(ctx)
}

// Serve reports the initial population, then ticks every interval until ctx
// is done. Failed reports are logged and retried on the next tick.
func (s *Simulator) Serve(ctx context.Context) error {
	slog.Info("user simulator started", "users", len(s.gen.Users()), "interval", s.interval)

	if err := s.Report(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("simulated location report failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("user simulator stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("simulated location report failed", "error", err)
			}
		}
	}
}

func (s *Simulator) String() string {
	return "user-simulator"
}
