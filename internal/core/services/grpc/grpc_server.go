package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"github.com/lcalzada-xor/venuechat/internal/geo"
	"github.com/lcalzada-xor/venuechat/internal/telemetry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GrpcServer implements LocationServer on top of the nearby service.
type GrpcServer struct {
	nearby ports.NearbyService
}

// NewLocationService creates the location service implementation.
func NewLocationService(nearby ports.NearbyService) *GrpcServer {
	return &GrpcServer{nearby: nearby}
}

// NewGrpcServer creates a gRPC server with authentication, the location
// service and the standard health service registered.
func NewGrpcServer(nearby ports.NearbyService, verifier ports.IdentityVerifier) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryAuthInterceptor(verifier)),
		grpc.ChainStreamInterceptor(StreamAuthInterceptor(verifier)),
	)
	RegisterLocationServer(s, NewLocationService(nearby))

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

func (s *GrpcServer) ReportLocation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, ok := domain.ActorFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, domain.ErrUnauthenticated.Error())
	}
	loc, err := locationFromRequest(req)
	if err != nil {
		return nil, toStatus(err)
	}

	rec, err := s.nearby.UpdateLocation(ctx, actor, loc.Latitude, loc.Longitude)
	if err != nil {
		return nil, toStatus(err)
	}
	telemetry.LocationUpdates.WithLabelValues("grpc").Inc()

	users, err := s.nearby.Nearby(ctx, actor.ID, rec.Location)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]interface{}{
		"location": rec,
		"nearby":   users,
	})
}

func (s *GrpcServer) WatchNearby(req *structpb.Struct, stream WatchNearbyServer) error {
	ctx := stream.Context()
	actor, ok := domain.ActorFromContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, domain.ErrUnauthenticated.Error())
	}
	origin, err := locationFromRequest(req)
	if err != nil {
		return toStatus(err)
	}

	// Only the latest set matters; a slow stream skips intermediate ones.
	var (
		mu     sync.Mutex
		latest []domain.NearbyUser
	)
	ready := make(chan struct{}, 1)
	cancel, err := s.nearby.Watch(ctx, actor.ID, origin, func(users []domain.NearbyUser) {
		mu.Lock()
		latest = users
		mu.Unlock()
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return toStatus(err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ready:
			mu.Lock()
			users := latest
			mu.Unlock()

			msg, err := toStruct(map[string]interface{}{"nearby": users})
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func locationFromRequest(req *structpb.Struct) (geo.Location, error) {
	fields := req.GetFields()
	lat, okLat := fields["latitude"].GetKind().(*structpb.Value_NumberValue)
	lng, okLng := fields["longitude"].GetKind().(*structpb.Value_NumberValue)

	verr := &domain.ValidationError{Fields: map[string]string{}}
	if !okLat {
		verr.Fields["latitude"] = "is required"
	}
	if !okLng {
		verr.Fields["longitude"] = "is required"
	}
	if len(verr.Fields) > 0 {
		return geo.Location{}, verr
	}
	return geo.Location{Latitude: lat.NumberValue, Longitude: lng.NumberValue}, nil
}

// toStruct converts a JSON-serializable value into a protobuf Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		slog.Error("grpc request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

// UnaryAuthInterceptor verifies the bearer token in the authorization
// metadata and stores the user in the request context.
func UnaryAuthInterceptor(verifier ports.IdentityVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if isHealthMethod(info.FullMethod) {
			return handler(ctx, req)
		}
		ctx, err := authenticate(ctx, verifier)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor is the streaming counterpart of UnaryAuthInterceptor.
func StreamAuthInterceptor(verifier ports.IdentityVerifier) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if isHealthMethod(info.FullMethod) {
			return handler(srv, ss)
		}
		ctx, err := authenticate(ss.Context(), verifier)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: ctx})
	}
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context {
	return s.ctx
}

func isHealthMethod(method string) bool {
	return strings.HasPrefix(method, "/grpc.health.v1.Health/")
}

func authenticate(ctx context.Context, verifier ports.IdentityVerifier) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}
	values := md.Get("authorization")
	if len(values) == 0 || !strings.HasPrefix(values[0], "Bearer ") {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}

	user, err := verifier.VerifyToken(ctx, strings.TrimSpace(strings.TrimPrefix(values[0], "Bearer ")))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	return domain.WithActor(ctx, user), nil
}

const shutdownGrace = 5 * time.Second

// Server runs a gRPC server as a supervised service.
type Server struct {
	Addr   string
	grpc   *grpc.Server
	health *health.Server
}

// NewServer wraps NewGrpcServer for supervision.
func NewServer(addr string, nearby ports.NearbyService, verifier ports.IdentityVerifier) *Server {
	gs, hs := NewGrpcServer(nearby, verifier)
	return &Server{Addr: addr, grpc: gs, health: hs}
}

// Serve listens on Addr until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr, err)
	}
	return s.ServeListener(ctx, lis)
}

// ServeListener serves on an existing listener until ctx is done.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		slog.Info("grpc server shutting down")
		s.health.Shutdown()

		// Open WatchNearby streams only end when clients hang up.
		stopped := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownGrace):
			s.grpc.Stop()
		}
	})
	defer stop()

	slog.Info("grpc server listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Server) String() string {
	return "grpc-server"
}
