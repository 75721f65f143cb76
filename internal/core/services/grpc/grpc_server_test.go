package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/services/nearby"
	"github.com/lcalzada-xor/venuechat/internal/core/services/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type tokenVerifier map[string]*domain.User

func (v tokenVerifier) VerifyToken(ctx context.Context, token string) (*domain.User, error) {
	if u, ok := v[token]; ok {
		return u, nil
	}
	return nil, errors.New("invalid identity token")
}

func startServer(t *testing.T) (*LocationClient, healthpb.HealthClient) {
	t.Helper()

	svc, err := nearby.NewService(servicetest.NewMemoryLocations(), nil, nil, nil, nearby.Config{})
	require.NoError(t, err)
	verifier := tokenVerifier{
		"alice-token": {ID: "alice", Email: "alice@example.com", DisplayName: "Alice"},
		"bob-token":   {ID: "bob", Email: "bob@example.com", DisplayName: "Bob"},
	}

	lis := bufconn.Listen(1 << 20)
	srv := NewServer("bufnet", svc, verifier)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(10 * time.Second):
			t.Error("grpc server did not stop")
		}
	})

	return NewLocationClient(conn), healthpb.NewHealthClient(conn)
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func point(t *testing.T, lat, lng float64) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(map[string]interface{}{"latitude": lat, "longitude": lng})
	require.NoError(t, err)
	return s
}

func nearbyIDs(t *testing.T, s *structpb.Struct) []string {
	t.Helper()
	list := s.GetFields()["nearby"].GetListValue()
	require.NotNil(t, list, "response has no nearby list: %v", s)
	ids := make([]string, 0)
	for _, v := range list.GetValues() {
		ids = append(ids, v.GetStructValue().GetFields()["id"].GetStringValue())
	}
	return ids
}

func TestReportLocation(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	resp, err := client.ReportLocation(withToken(ctx, "alice-token"), point(t, 40.41684, -3.70381))
	require.NoError(t, err)
	loc := resp.GetFields()["location"].GetStructValue().GetFields()["location"].GetStructValue().GetFields()
	assert.Equal(t, 40.417, loc["latitude"].GetNumberValue())
	assert.Equal(t, -3.704, loc["longitude"].GetNumberValue())
	assert.Empty(t, nearbyIDs(t, resp))

	resp, err = client.ReportLocation(withToken(ctx, "bob-token"), point(t, 40.42, -3.70))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, nearbyIDs(t, resp))
}

func TestReportLocation_Errors(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	_, err := client.ReportLocation(ctx, point(t, 1, 1))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.ReportLocation(withToken(ctx, "forged"), point(t, 1, 1))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.ReportLocation(withToken(ctx, "alice-token"), point(t, 91, 0))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	empty, err := structpb.NewStruct(map[string]interface{}{"latitude": "north"})
	require.NoError(t, err)
	_, err = client.ReportLocation(withToken(ctx, "alice-token"), empty)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestWatchNearby(t *testing.T) {
	client, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.WatchNearby(withToken(ctx, "alice-token"), point(t, 40.4168, -3.7038))
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Empty(t, nearbyIDs(t, first))

	_, err = client.ReportLocation(withToken(ctx, "bob-token"), point(t, 40.42, -3.70))
	require.NoError(t, err)

	next, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, nearbyIDs(t, next))
}

func TestWatchNearby_RequiresToken(t *testing.T) {
	client, _ := startServer(t)

	stream, err := client.WatchNearby(context.Background(), point(t, 40.4168, -3.7038))
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestHealthCheck(t *testing.T) {
	_, hc := startServer(t)

	resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
