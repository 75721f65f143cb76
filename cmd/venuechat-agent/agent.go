package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	grpcserver "github.com/lcalzada-xor/venuechat/internal/core/services/grpc"
	"github.com/lcalzada-xor/venuechat/internal/geo"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Agent reports the provider's location on an interval, the way a client
// re-reports while it stays open.
type Agent struct {
	Client   *grpcserver.LocationClient
	Provider geo.Provider
	Token    string
	Interval time.Duration
	Out      io.Writer
}

type nearbyReply struct {
	Nearby []domain.NearbyUser `json:"nearby"`
}

// Run reports immediately and then every Interval until ctx is done.
// Failed reports are logged and retried on the next tick.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	for {
		if err := a.Report(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("location report failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Report sends one location and prints the nearby users returned.
func (a *Agent) Report(ctx context.Context) error {
	req, err := a.request()
	if err != nil {
		return err
	}
	res, err := a.Client.ReportLocation(a.outgoing(ctx), req)
	if err != nil {
		return err
	}
	reply, err := decodeNearby(res)
	if err != nil {
		return err
	}
	a.print(reply.Nearby)
	return nil
}

// Watch streams nearby changes around the provider's location until ctx is done.
func (a *Agent) Watch(ctx context.Context) error {
	req, err := a.request()
	if err != nil {
		return err
	}
	stream, err := a.Client.WatchNearby(a.outgoing(ctx), req)
	if err != nil {
		return err
	}
	for {
		msg, err := stream.Recv()
		if err != nil {
			return err
		}
		reply, err := decodeNearby(msg)
		if err != nil {
			return err
		}
		a.print(reply.Nearby)
	}
}

func (a *Agent) request() (*structpb.Struct, error) {
	loc := a.Provider.GetLocation()
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]interface{}{
		"latitude":  loc.Latitude,
		"longitude": loc.Longitude,
	})
}

func (a *Agent) outgoing(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+a.Token)
}

func (a *Agent) print(users []domain.NearbyUser) {
	fmt.Fprintf(a.Out, "[%s] %d nearby\n", time.Now().Format(time.TimeOnly), len(users))
	for _, u := range users {
		fmt.Fprintf(a.Out, "  %-24s %6.2f km  last seen %s\n", (&domain.User{DisplayName: u.DisplayName}).Name(), u.DistanceKm, u.LastUpdated.Local().Format(time.TimeOnly))
	}
}

func decodeNearby(msg *structpb.Struct) (nearbyReply, error) {
	var reply nearbyReply
	raw, err := msg.MarshalJSON()
	if err != nil {
		return reply, err
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return reply, fmt.Errorf("decode nearby reply: %w", err)
	}
	return reply, nil
}
