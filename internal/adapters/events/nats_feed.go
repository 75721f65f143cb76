// Package events carries change events between service instances over NATS.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"github.com/lcalzada-xor/venuechat/internal/telemetry"
	natsgo "github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix namespaces every subject the feed uses.
const DefaultSubjectPrefix = "venuechat"

// NATSFeed implements ports.ChangeFeed on core NATS subjects. Topics map to
// "<prefix>.<topic>".
type NATSFeed struct {
	conn   *natsgo.Conn
	prefix string
}

var _ ports.ChangeFeed = (*NATSFeed)(nil)

// Connect dials the broker at url.
func Connect(url, prefix string) (*NATSFeed, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	nc, err := natsgo.Connect(url,
		natsgo.Name("venuechat"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				slog.Warn("change feed disconnected", "error", err)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			slog.Info("change feed reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSFeed{conn: nc, prefix: prefix}, nil
}

// Publish encodes ev as JSON and sends it on the subject of ev.Topic.
func (f *NATSFeed) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := f.conn.Publish(f.subject(ev.Topic), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Topic, err)
	}
	telemetry.FeedEvents.WithLabelValues("out", string(ev.Kind)).Inc()
	return nil
}

// Subscribe delivers decoded events matching topic to handler. NATS calls
// handler from one goroutine per subscription, in publish order.
func (f *NATSFeed) Subscribe(topic string, handler func(domain.ChangeEvent)) (func(), error) {
	sub, err := f.conn.Subscribe(f.subject(topic), func(msg *natsgo.Msg) {
		var ev domain.ChangeEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("dropping malformed change event", "subject", msg.Subject, "error", err)
			return
		}
		telemetry.FeedEvents.WithLabelValues("in", string(ev.Kind)).Inc()
		handler(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, natsgo.ErrConnectionClosed) {
			slog.Debug("unsubscribe failed", "topic", topic, "error", err)
		}
	}, nil
}

// Flush waits until the broker has processed everything published so far.
func (f *NATSFeed) Flush() error {
	return f.conn.Flush()
}

// Ping reports an error unless the connection to the broker is up.
func (f *NATSFeed) Ping(ctx context.Context) error {
	if !f.conn.IsConnected() {
		return fmt.Errorf("change feed %s", f.conn.Status())
	}
	return f.conn.FlushWithContext(ctx)
}

// Close drains pending messages and closes the connection.
func (f *NATSFeed) Close() error {
	return f.conn.Drain()
}

func (f *NATSFeed) subject(topic string) string {
	return f.prefix + "." + topic
}
