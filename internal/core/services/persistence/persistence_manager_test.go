package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mu      sync.Mutex
	Saved   []domain.LocationRecord
	Batches int
}

func (m *MockWriter) SaveLocationsBatch(ctx context.Context, records []domain.LocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, records...)
	m.Batches++
	return nil
}

func (m *MockWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Saved)
}

func record(id string, ts time.Time) domain.LocationRecord {
	return domain.LocationRecord{UserID: id, UpdatedAt: ts}
}

func run(t *testing.T, pm *PersistenceManager) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pm.Serve(ctx)
	}()
	return func() {
		stop()
		<-done
	}
}

func TestPersistenceManager_Batching(t *testing.T) {
	w := &MockWriter{}
	pm := NewPersistenceManager(w, 10, time.Hour)
	pm.batchSize = 5

	stop := run(t, pm)
	defer stop()

	now := time.Now()
	for i := 0; i < 4; i++ {
		pm.Persist(record(string(rune('a'+i)), now))
	}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, w.count())

	pm.Persist(record("e", now))
	assert.Eventually(t, func() bool { return w.count() == 5 }, time.Second, 10*time.Millisecond)
}

func TestPersistenceManager_CoalescesPerUser(t *testing.T) {
	w := &MockWriter{}
	pm := NewPersistenceManager(w, 10, time.Hour)

	stop := run(t, pm)
	now := time.Now()
	pm.Persist(record("u1", now))
	pm.Persist(record("u1", now.Add(time.Second)))
	pm.Persist(record("u1", now.Add(-time.Second)))
	time.Sleep(50 * time.Millisecond)
	stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.Saved, 1)
	assert.True(t, w.Saved[0].UpdatedAt.Equal(now.Add(time.Second)))
}

func TestPersistenceManager_TimerFlush(t *testing.T) {
	w := &MockWriter{}
	pm := NewPersistenceManager(w, 10, 200*time.Millisecond)

	stop := run(t, pm)
	defer stop()

	pm.Persist(record("u1", time.Now()))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, w.count(), "should wait for timer")

	assert.Eventually(t, func() bool { return w.count() == 1 }, time.Second, 20*time.Millisecond)
}

func TestPersistenceManager_FlushOnShutdown(t *testing.T) {
	w := &MockWriter{}
	pm := NewPersistenceManager(w, 10, time.Hour)

	stop := run(t, pm)
	pm.Persist(record("u1", time.Now()))
	pm.Persist(record("u2", time.Now()))
	stop()

	assert.Equal(t, 2, w.count())
}

func TestPersistenceManager_Disabled(t *testing.T) {
	w := &MockWriter{}
	pm := NewPersistenceManager(w, 10, time.Hour)
	pm.SetEnabled(false)
	assert.False(t, pm.IsEnabled())

	stop := run(t, pm)
	pm.Persist(record("u1", time.Now()))
	stop()

	assert.Equal(t, 0, w.count())
}

func TestPersistenceManager_DropsWhenFull(t *testing.T) {
	pm := NewPersistenceManager(&MockWriter{}, 1, time.Hour)
	assert.NotPanics(t, func() {
		pm.Persist(record("u1", time.Now()))
		pm.Persist(record("u2", time.Now()))
	})
}
