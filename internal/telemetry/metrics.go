package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LocationUpdates counts accepted location reports by transport.
	LocationUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "venuechat",
			Name:      "location_updates_total",
			Help:      "Total number of accepted location reports",
		},
		[]string{"source"},
	)

	// NearbyEvaluations counts runs of the nearby evaluator.
	NearbyEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "venuechat",
			Name:      "nearby_evaluations_total",
			Help:      "Total number of nearby-set evaluations",
		},
		[]string{"mode"},
	)

	// ActiveWatches tracks live nearby subscriptions.
	ActiveWatches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "venuechat",
			Name:      "nearby_watches_active",
			Help:      "Number of live nearby subscriptions",
		},
	)

	// VenueChanges counts venue lifecycle events.
	VenueChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "venuechat",
			Name:      "venue_changes_total",
			Help:      "Total number of venue creations, updates and deletions",
		},
		[]string{"kind"},
	)

	// ChatMessages counts chat messages accepted.
	ChatMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "venuechat",
			Name:      "chat_messages_total",
			Help:      "Total number of chat messages accepted",
		},
	)

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "venuechat",
			Name:      "websocket_clients",
			Help:      "Number of connected WebSocket clients",
		},
	)

	// FeedEvents counts change-feed traffic.
	FeedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "venuechat",
			Name:      "feed_events_total",
			Help:      "Total number of change-feed events published or received",
		},
		[]string{"direction", "kind"},
	)

	// PersistenceFlushes counts batched location writes.
	PersistenceFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "venuechat",
			Name:      "location_flushes_total",
			Help:      "Total number of batched location writes",
		},
		[]string{"result"},
	)

	// PersistenceDropped counts location records dropped because the queue was full.
	PersistenceDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "venuechat",
			Name:      "location_records_dropped_total",
			Help:      "Total number of location records dropped before persistence",
		},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// It is idempotent.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(LocationUpdates)
		prometheus.DefaultRegisterer.Register(NearbyEvaluations)
		prometheus.DefaultRegisterer.Register(ActiveWatches)
		prometheus.DefaultRegisterer.Register(VenueChanges)
		prometheus.DefaultRegisterer.Register(ChatMessages)
		prometheus.DefaultRegisterer.Register(WebSocketClients)
		prometheus.DefaultRegisterer.Register(FeedEvents)
		prometheus.DefaultRegisterer.Register(PersistenceFlushes)
		prometheus.DefaultRegisterer.Register(PersistenceDropped)
	})
}
