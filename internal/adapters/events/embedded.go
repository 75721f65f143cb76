package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer is an in-process NATS broker for single-node deployments
// and tests.
type EmbeddedServer struct {
	server *server.Server
}

// StartEmbedded starts a broker on host:port. Port -1 picks a random free port.
func StartEmbedded(host string, port int) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "venuechat",
		Host:       host,
		Port:       port,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{server: ns}, nil
}

// ClientURL is the URL clients connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.server.ClientURL()
}

// Shutdown stops the broker and waits for it to exit.
func (s *EmbeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}
