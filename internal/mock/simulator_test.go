package mock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/services/nearby"
	"github.com/lcalzada-xor/venuechat/internal/core/services/servicetest"
	"github.com/lcalzada-xor/venuechat/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var madrid = geo.Location{Latitude: 40.4168, Longitude: -3.7038}

type MockNearbyService struct {
	mock.Mock
}

func (m *MockNearbyService) UpdateLocation(ctx context.Context, user *domain.User, lat, lng float64) (domain.LocationRecord, error) {
	args := m.Called(ctx, user, lat, lng)
	return args.Get(0).(domain.LocationRecord), args.Error(1)
}

func (m *MockNearbyService) Nearby(ctx context.Context, userID string, origin geo.Location) ([]domain.NearbyUser, error) {
	args := m.Called(ctx, userID, origin)
	return args.Get(0).([]domain.NearbyUser), args.Error(1)
}

func (m *MockNearbyService) Watch(ctx context.Context, userID string, origin geo.Location, onUpdate func([]domain.NearbyUser)) (func(), error) {
	args := m.Called(ctx, userID, origin, onUpdate)
	return args.Get(0).(func()), args.Error(1)
}

func TestDataGenerator_PopulationStaysInsideSpread(t *testing.T) {
	gen := NewDataGenerator(42, madrid, 2)
	gen.GeneratePopulation(30)
	require.Len(t, gen.Users(), 30)

	ids := make(map[string]bool)
	for _, u := range gen.Users() {
		assert.False(t, ids[u.User.ID], "duplicate id %s", u.User.ID)
		ids[u.User.ID] = true
		assert.Equal(t, domain.RoleUser, u.User.Role)
		assert.NotEmpty(t, u.User.DisplayName)
	}

	for i := 0; i < 200; i++ {
		gen.Step(0.5)
		for _, u := range gen.Users() {
			loc := gen.Location(u)
			require.NoError(t, loc.Validate())
			assert.LessOrEqual(t, geo.DistanceKm(madrid, loc), 2.05, "user %s left the spread", u.User.ID)
		}
	}
}

func TestDataGenerator_Deterministic(t *testing.T) {
	a := NewDataGenerator(7, madrid, 3)
	b := NewDataGenerator(7, madrid, 3)
	a.GeneratePopulation(5)
	b.GeneratePopulation(5)
	a.Step(0.2)
	b.Step(0.2)

	for i := range a.Users() {
		assert.Equal(t, a.Users()[i].User, b.Users()[i].User)
		assert.Equal(t, a.Location(a.Users()[i]), b.Location(b.Users()[i]))
	}
}

func TestNewSimulator_Validation(t *testing.T) {
	_, err := NewSimulator(&MockNearbyService{}, Config{Users: 0, Centre: madrid})
	assert.Error(t, err)

	_, err = NewSimulator(&MockNearbyService{}, Config{Users: 3, Centre: geo.Location{Latitude: 91}})
	assert.Error(t, err)

	sim, err := NewSimulator(&MockNearbyService{}, Config{Users: 3, Centre: madrid})
	require.NoError(t, err)
	assert.Len(t, sim.Users(), 3)
	assert.Equal(t, DefaultInterval, sim.interval)
	assert.Equal(t, DefaultStepKm, sim.stepKm)
}

func TestSimulator_UsersBecomeNearby(t *testing.T) {
	svc, err := nearby.NewService(servicetest.NewMemoryLocations(), nil, nil, nil, nearby.Config{
		Criteria: domain.NearbyCriteria{RadiusKm: 10, Window: time.Minute},
	})
	require.NoError(t, err)

	sim, err := NewSimulator(svc, Config{Users: 4, Centre: madrid, SpreadKm: 1, Seed: 1})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sim.Report(ctx))
	require.NoError(t, sim.Tick(ctx))

	first := sim.Users()[0]
	list, err := svc.Nearby(ctx, first.User.ID, madrid)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	for _, n := range list {
		assert.NotEqual(t, first.User.ID, n.ID)
	}
}

func TestSimulator_ReportJoinsErrors(t *testing.T) {
	svc := &MockNearbyService{}
	svc.On("UpdateLocation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.LocationRecord{}, errors.New("store down"))

	sim, err := NewSimulator(svc, Config{Users: 2, Centre: madrid})
	require.NoError(t, err)

	err = sim.Report(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sim-0001")
	assert.Contains(t, err.Error(), "sim-0002")
	svc.AssertNumberOfCalls(t, "UpdateLocation", 2)
}

func TestSimulator_ServeStopsOnCancel(t *testing.T) {
	var reports atomic.Int32
	svc := &MockNearbyService{}
	svc.On("UpdateLocation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { reports.Add(1) }).
		Return(domain.LocationRecord{}, nil)

	sim, err := NewSimulator(svc, Config{Users: 2, Centre: madrid, Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Serve(ctx) }()

	assert.Eventually(t, func() bool {
		return reports.Load() >= 6
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("simulator did not stop")
	}
}
