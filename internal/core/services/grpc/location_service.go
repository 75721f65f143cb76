package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the location service.
const ServiceName = "venuechat.v1.LocationService"

const (
	reportLocationMethod = "/" + ServiceName + "/ReportLocation"
	watchNearbyMethod    = "/" + ServiceName + "/WatchNearby"
)

// LocationServer is the server API of venuechat.v1.LocationService.
// Requests and responses are google.protobuf.Struct documents.
type LocationServer interface {
	// ReportLocation stores the caller's location and returns who is nearby.
	ReportLocation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	// WatchNearby streams the caller's nearby set each time it changes.
	WatchNearby(req *structpb.Struct, stream WatchNearbyServer) error
}

// WatchNearbyServer is the server side of a WatchNearby stream.
type WatchNearbyServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type watchNearbyServer struct {
	grpc.ServerStream
}

func (x *watchNearbyServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// LocationServiceDesc describes venuechat.v1.LocationService for registration.
var LocationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LocationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ReportLocation",
			Handler:    reportLocationHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchNearby",
			Handler:       watchNearbyHandler,
			ServerStreams: true,
		},
	},
	Metadata: "venuechat/v1/location.proto",
}

// RegisterLocationServer registers srv on s.
func RegisterLocationServer(s grpc.ServiceRegistrar, srv LocationServer) {
	s.RegisterService(&LocationServiceDesc, srv)
}

func reportLocationHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LocationServer).ReportLocation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: reportLocationMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LocationServer).ReportLocation(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchNearbyHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(LocationServer).WatchNearby(in, &watchNearbyServer{stream})
}

// LocationClient calls venuechat.v1.LocationService.
type LocationClient struct {
	cc grpc.ClientConnInterface
}

// NewLocationClient creates a client on cc.
func NewLocationClient(cc grpc.ClientConnInterface) *LocationClient {
	return &LocationClient{cc: cc}
}

// ReportLocation sends one location report.
func (c *LocationClient) ReportLocation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, reportLocationMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchNearbyClient is the client side of a WatchNearby stream.
type WatchNearbyClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type watchNearbyClient struct {
	grpc.ClientStream
}

func (x *watchNearbyClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// WatchNearby opens a nearby stream around the origin in req.
func (c *LocationClient) WatchNearby(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (WatchNearbyClient, error) {
	stream, err := c.cc.NewStream(ctx, &LocationServiceDesc.Streams[0], watchNearbyMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &watchNearbyClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
