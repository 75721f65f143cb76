// Package presence keeps the current location of active users in Badger.
// Entries expire once they fall out of the nearby window, so the store only
// ever holds users who can still be seen.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
)

const locationKeyPrefix = "loc:"

// gcInterval is how often the value log is compacted for on-disk stores.
const gcInterval = 5 * time.Minute

// BadgerStore implements ports.LocationStore.
type BadgerStore struct {
	db       *badger.DB
	ttl      time.Duration
	inMemory bool
	now      func() time.Time
}

var _ ports.LocationStore = (*BadgerStore)(nil)

// Open opens a presence store under dir, or in memory when dir is empty.
// Records live for ttl after their UpdatedAt.
func Open(dir string, ttl time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open presence store: %w", err)
	}
	return &BadgerStore{db: db, ttl: ttl, inMemory: dir == "", now: time.Now}, nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// PutLocation stores rec unless a newer record for the same user is present.
// Records already past their TTL are ignored.
func (s *BadgerStore) PutLocation(ctx context.Context, rec domain.LocationRecord) error {
	remaining := rec.UpdatedAt.Add(s.ttl).Sub(s.now())
	if remaining <= 0 {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	key := []byte(locationKeyPrefix + rec.UserID)

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return fmt.Errorf("get location: %w", err)
		default:
			var current domain.LocationRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return err
			}
			if current.UpdatedAt.After(rec.UpdatedAt) {
				return nil
			}
		}

		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(remaining))
	})
}

// GetLocation returns the live record of userID.
func (s *BadgerStore) GetLocation(ctx context.Context, userID string) (domain.LocationRecord, bool, error) {
	var rec domain.LocationRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(locationKeyPrefix + userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.LocationRecord{}, false, nil
	}
	if err != nil {
		return domain.LocationRecord{}, false, fmt.Errorf("get location: %w", err)
	}
	return rec, true, nil
}

// ListLocations returns every live record.
func (s *BadgerStore) ListLocations(ctx context.Context) ([]domain.LocationRecord, error) {
	records := make([]domain.LocationRecord, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(locationKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec domain.LocationRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return records, nil
}

// Serve runs value-log garbage collection until ctx is done. In-memory
// stores have nothing to collect and just wait.
func (s *BadgerStore) Serve(ctx context.Context) error {
	if s.inMemory {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					slog.Warn("presence value log gc failed", "error", err)
				}
				break
			}
		}
	}
}

func (s *BadgerStore) String() string {
	return "presence-store"
}
