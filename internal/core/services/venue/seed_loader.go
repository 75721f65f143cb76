package venue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
)

// SeedResult counts what a seed run did.
type SeedResult struct {
	Loaded  int
	Skipped int
	Failed  int
}

// SeedLoader creates venues from a JSON array of venue drafts. Drafts whose
// name matches an existing venue, case-insensitively, are skipped so a seed
// file can be loaded more than once.
type SeedLoader struct {
	venues ports.VenueService
}

// NewSeedLoader creates a new seed loader.
func NewSeedLoader(venues ports.VenueService) *SeedLoader {
	return &SeedLoader{venues: venues}
}

// LoadFromFile loads drafts from the JSON file at path.
func (s *SeedLoader) LoadFromFile(ctx context.Context, path string, actor *domain.User) (SeedResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedResult{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	defer f.Close()
	return s.Load(ctx, f, actor)
}

// Load reads drafts from r and creates them as actor. Invalid drafts are
// logged and counted, not fatal.
func (s *SeedLoader) Load(ctx context.Context, r io.Reader, actor *domain.User) (SeedResult, error) {
	var res SeedResult

	var drafts []domain.VenueDraft
	if err := json.NewDecoder(r).Decode(&drafts); err != nil {
		return res, fmt.Errorf("failed to parse seed file: %w", err)
	}

	existing, err := s.venues.List(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list venues: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, v := range existing {
		names[strings.ToLower(v.Name)] = true
	}

	for i, d := range drafts {
		key := strings.ToLower(strings.TrimSpace(d.Name))
		if key != "" && names[key] {
			res.Skipped++
			continue
		}

		v, err := s.venues.Create(ctx, actor, d)
		if err != nil {
			slog.Warn("seed venue rejected", "index", i, "name", d.Name, "error", err)
			res.Failed++
			continue
		}
		names[strings.ToLower(v.Name)] = true
		res.Loaded++
	}

	slog.Info("venue seed loaded", "loaded", res.Loaded, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}
