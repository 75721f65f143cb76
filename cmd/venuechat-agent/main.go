package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcserver "github.com/lcalzada-xor/venuechat/internal/core/services/grpc"
	"github.com/lcalzada-xor/venuechat/internal/geo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	serverAddr := flag.String("server", "localhost:9000", "VenueChat gRPC address")
	token := flag.String("token", os.Getenv("VENUECHAT_TOKEN"), "Identity token (defaults to $VENUECHAT_TOKEN)")
	lat := flag.Float64("lat", 0.0, "Latitude")
	lng := flag.Float64("lng", 0.0, "Longitude")
	interval := flag.Duration("interval", 5*time.Minute, "Report interval")
	watch := flag.Bool("watch", false, "Stream nearby changes between reports")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if *token == "" {
		slog.Error("an identity token is required (-token or VENUECHAT_TOKEN)")
		os.Exit(2)
	}
	if *interval <= 0 {
		slog.Error("interval must be positive", "interval", *interval)
		os.Exit(2)
	}

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		slog.Error("did not connect", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agent := &Agent{
		Client:   grpcserver.NewLocationClient(conn),
		Provider: geo.NewStaticProvider(*lat, *lng),
		Token:    *token,
		Interval: *interval,
		Out:      os.Stdout,
	}

	slog.Info("Agent started", "server", *serverAddr, "interval", *interval)

	if *watch {
		go func() {
			if err := agent.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("nearby stream closed", "error", err)
			}
		}()
	}

	if err := agent.Run(ctx); err != nil {
		slog.Error("agent stopped", "error", err)
		os.Exit(1)
	}
}
