package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"github.com/lcalzada-xor/venuechat/internal/telemetry"
)

// LocationWriter is the storage side the manager flushes into.
type LocationWriter interface {
	SaveLocationsBatch(ctx context.Context, records []domain.LocationRecord) error
}

// PersistenceManager handles background batch writing of location records.
// Records of the same user queued between two flushes collapse into the latest.
type PersistenceManager struct {
	storage     LocationWriter
	persistChan chan domain.LocationRecord
	batchSize   int
	interval    time.Duration
	enabled     bool
	mu          sync.RWMutex
}

// NewPersistenceManager creates a new manager.
func NewPersistenceManager(storage LocationWriter, bufferSize int, interval time.Duration) *PersistenceManager {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PersistenceManager{
		storage:     storage,
		persistChan: make(chan domain.LocationRecord, bufferSize),
		batchSize:   100,
		interval:    interval,
		enabled:     true,
	}
}

var _ ports.LocationPersister = (*PersistenceManager)(nil)

// Persist queues a record if persistence is enabled. It never blocks; records
// are dropped when the queue is full.
func (p *PersistenceManager) Persist(rec domain.LocationRecord) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.enabled {
		return
	}
	select {
	case p.persistChan <- rec:
	default:
		telemetry.PersistenceDropped.Inc()
		slog.Warn("location queue full, dropping record", "user_id", rec.UserID)
	}
}

// IsEnabled returns the current persistence status.
func (p *PersistenceManager) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// SetEnabled toggles persistence.
func (p *PersistenceManager) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
}

// Serve runs the flush loop until ctx is done, flushing whatever is pending on exit.
func (p *PersistenceManager) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	buffer := make(map[string]domain.LocationRecord)

	for {
		select {
		case <-ctx.Done():
			p.drain(buffer)
			p.flushBuffer(buffer)
			return ctx.Err()
		case rec := <-p.persistChan:
			p.add(buffer, rec)
			if len(buffer) >= p.batchSize {
				p.flushBuffer(buffer)
				buffer = make(map[string]domain.LocationRecord)
			}
		case <-ticker.C:
			if len(buffer) > 0 {
				p.flushBuffer(buffer)
				buffer = make(map[string]domain.LocationRecord)
			}
		}
	}
}

func (p *PersistenceManager) add(buffer map[string]domain.LocationRecord, rec domain.LocationRecord) {
	if prev, ok := buffer[rec.UserID]; ok && prev.UpdatedAt.After(rec.UpdatedAt) {
		return
	}
	buffer[rec.UserID] = rec
}

func (p *PersistenceManager) drain(buffer map[string]domain.LocationRecord) {
	for {
		select {
		case rec := <-p.persistChan:
			p.add(buffer, rec)
		default:
			return
		}
	}
}

func (p *PersistenceManager) flushBuffer(buffer map[string]domain.LocationRecord) {
	if len(buffer) == 0 || p.storage == nil {
		return
	}
	records := make([]domain.LocationRecord, 0, len(buffer))
	for _, r := range buffer {
		records = append(records, r)
	}

	// The loop's own context may already be cancelled on shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.storage.SaveLocationsBatch(ctx, records); err != nil {
		telemetry.PersistenceFlushes.WithLabelValues("error").Inc()
		slog.Error("failed to batch save locations", "count", len(records), "error", err)
		return
	}
	telemetry.PersistenceFlushes.WithLabelValues("ok").Inc()
}

func (p *PersistenceManager) String() string {
	return "location-persistence"
}
