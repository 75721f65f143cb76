// Package websocket pushes venue, chat, presence and nearby updates to
// browsers and accepts their location reports and chat messages.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"github.com/lcalzada-xor/venuechat/internal/telemetry"
	"golang.org/x/time/rate"
)

var (
	ErrUnknownFrame   = errors.New("unknown frame type")
	ErrUnknownChannel = errors.New("unknown channel")
	ErrChatRateLimit  = errors.New("chat rate limit exceeded")
)

// Config tunes the hub.
type Config struct {
	// AllowedOrigins lists the browser origins allowed to connect. Requests
	// without an Origin header are always accepted; "*" accepts any origin.
	AllowedOrigins []string
	ChatRate       rate.Limit
	ChatBurst      int
	HistoryLimit   int
}

// DefaultConfig allows one chat message per second with bursts of five.
func DefaultConfig() Config {
	return Config{
		ChatRate:     rate.Limit(1),
		ChatBurst:    5,
		HistoryLimit: 100,
	}
}

// Hub owns every WebSocket client of this instance and fans change-feed
// events out to the clients subscribed to them.
type Hub struct {
	venues ports.VenueService
	chat   ports.ChatService
	nearby ports.NearbyService
	feed   ports.ChangeFeed
	cfg    Config

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}
	baseCtx context.Context
}

// NewHub creates a hub. Live updates require feed to be set.
func NewHub(venues ports.VenueService, chat ports.ChatService, nearby ports.NearbyService, feed ports.ChangeFeed, cfg Config) *Hub {
	def := DefaultConfig()
	if cfg.ChatRate <= 0 {
		cfg.ChatRate = def.ChatRate
	}
	if cfg.ChatBurst <= 0 {
		cfg.ChatBurst = def.ChatBurst
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}

	h := &Hub{
		venues:  venues,
		chat:    chat,
		nearby:  nearby,
		feed:    feed,
		cfg:     cfg,
		clients: make(map[*Client]struct{}),
		baseCtx: context.Background(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	slog.Warn("websocket origin rejected", "origin", origin)
	return false
}

// Serve follows the change feed until ctx is done, then closes every client.
func (h *Hub) Serve(ctx context.Context) error {
	h.mu.Lock()
	h.baseCtx = ctx
	h.mu.Unlock()

	if h.feed != nil {
		stopVenues, err := h.feed.Subscribe(domain.TopicVenues, h.onVenueEvent)
		if err != nil {
			return fmt.Errorf("subscribe to venues: %w", err)
		}
		defer stopVenues()

		stopMessages, err := h.feed.Subscribe(domain.TopicAllMessages, h.onMessageEvent)
		if err != nil {
			return fmt.Errorf("subscribe to messages: %w", err)
		}
		defer stopMessages()
	}

	<-ctx.Done()

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.close()
	}
	slog.Info("websocket hub stopped", "clients_closed", len(clients))
	return ctx.Err()
}

// HandleWebSocket upgrades an authenticated request and serves the
// connection until it closes.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := domain.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(h, conn, user)
	h.register(c)

	h.mu.RLock()
	base := h.baseCtx
	h.mu.RUnlock()
	ctx := domain.WithActor(base, user)

	go c.writePump()
	c.readPump(ctx)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	telemetry.WebSocketClients.Inc()
	slog.Info("websocket client connected", "client_id", c.id, "user_id", c.user.ID, "total_clients", total)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		c.close()
		return
	}
	delete(h.clients, c)
	venues := make([]string, 0, len(c.venueSubs))
	for id := range c.venueSubs {
		venues = append(venues, id)
	}
	c.venueSubs = map[string]time.Time{}
	total := len(h.clients)
	h.mu.Unlock()

	c.close()
	telemetry.WebSocketClients.Dec()
	for _, id := range venues {
		h.broadcastPresence(id)
	}
	slog.Info("websocket client disconnected", "client_id", c.id, "total_clients", total)
}

func (h *Hub) handleFrame(ctx context.Context, c *Client, f Frame) {
	var err error
	switch f.Type {
	case TypeSubscribe:
		err = h.handleSubscribe(ctx, c, f.Payload)
	case TypeUnsubscribe:
		err = h.handleUnsubscribe(c, f.Payload)
	case TypeLocation:
		err = h.handleLocation(ctx, c, f.Payload)
	case TypeChat:
		err = h.handleChat(ctx, c, f.Payload)
	case TypePing:
		c.enqueue(Message{Type: TypePong})
	default:
		err = ErrUnknownFrame
	}
	if err != nil {
		c.enqueue(errorMessage(f.Type, err))
	}
}

func (h *Hub) handleSubscribe(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p SubscribePayload
	if err := decode(raw, &p); err != nil {
		return err
	}

	switch p.Channel {
	case ChannelVenues:
		venues, err := h.venues.List(ctx)
		if err != nil {
			return err
		}
		h.mu.Lock()
		c.venuesSub = true
		h.mu.Unlock()
		c.enqueue(Message{Type: TypeVenuesSnapshot, Payload: venues})
		return nil

	case ChannelVenue:
		msgs, err := h.chat.History(ctx, p.VenueID, h.cfg.HistoryLimit)
		if err != nil {
			return err
		}
		h.mu.Lock()
		c.venueSubs[p.VenueID] = time.Now().UTC()
		h.mu.Unlock()
		c.enqueue(Message{Type: TypeMessagesSnapshot, Payload: MessagesSnapshot{VenueID: p.VenueID, Messages: msgs}})
		h.broadcastPresence(p.VenueID)
		return nil
	}
	return ErrUnknownChannel
}

func (h *Hub) handleUnsubscribe(c *Client, raw json.RawMessage) error {
	var p SubscribePayload
	if err := decode(raw, &p); err != nil {
		return err
	}

	switch p.Channel {
	case ChannelVenues:
		h.mu.Lock()
		c.venuesSub = false
		h.mu.Unlock()
		return nil

	case ChannelVenue:
		h.mu.Lock()
		_, was := c.venueSubs[p.VenueID]
		delete(c.venueSubs, p.VenueID)
		h.mu.Unlock()
		if was {
			h.broadcastPresence(p.VenueID)
		}
		return nil
	}
	return ErrUnknownChannel
}

func (h *Hub) handleLocation(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p LocationPayload
	if err := decode(raw, &p); err != nil {
		return err
	}

	rec, err := h.nearby.UpdateLocation(ctx, c.user, p.Latitude, p.Longitude)
	if err != nil {
		return err
	}
	telemetry.LocationUpdates.WithLabelValues("websocket").Inc()

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if c.cancelWatch != nil {
		return nil
	}

	cancel, err := h.nearby.Watch(ctx, c.user.ID, rec.Location, func(users []domain.NearbyUser) {
		c.enqueue(Message{Type: TypeNearby, Payload: users})
	})
	if err != nil {
		return err
	}
	c.cancelWatch = cancel

	// The client may have gone away while the watch was being set up.
	select {
	case <-c.done:
		cancel()
		c.cancelWatch = nil
	default:
	}
	return nil
}

func (h *Hub) handleChat(ctx context.Context, c *Client, raw json.RawMessage) error {
	var p ChatPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if !c.limiter.Allow() {
		return ErrChatRateLimit
	}
	_, err := h.chat.Send(ctx, c.user, p.VenueID, p.Message)
	return err
}

func (h *Hub) onVenueEvent(ev domain.ChangeEvent) {
	var msgType string
	switch ev.Kind {
	case domain.EventVenueCreated:
		msgType = TypeVenueCreated
	case domain.EventVenueUpdated:
		msgType = TypeVenueUpdated
	case domain.EventVenueDeleted:
		msgType = TypeVenueDeleted
	default:
		return
	}
	msg := Message{Type: msgType, Payload: ev.Venue}

	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		_, inVenue := c.venueSubs[ev.VenueID]
		if c.venuesSub || inVenue {
			targets = append(targets, c)
		}
		if ev.Kind == domain.EventVenueDeleted {
			delete(c.venueSubs, ev.VenueID)
		}
	}
	h.mu.Unlock()

	sendAll(targets, msg)
}

func (h *Hub) onMessageEvent(ev domain.ChangeEvent) {
	if ev.Kind != domain.EventMessageCreated || ev.Message == nil {
		return
	}
	venueID := ev.VenueID
	if id, ok := domain.VenueIDFromTopic(ev.Topic); ok {
		venueID = id
	}

	sendAll(h.venueSubscribers(venueID), Message{Type: TypeMessageCreated, Payload: ev.Message})
}

// OnlineUsers lists the distinct users subscribed to a venue on this instance.
func (h *Hub) OnlineUsers(venueID string) []domain.OnlineUser {
	h.mu.RLock()
	defer h.mu.RUnlock()

	byID := make(map[string]domain.OnlineUser)
	for c := range h.clients {
		joined, ok := c.venueSubs[venueID]
		if !ok {
			continue
		}
		if prev, seen := byID[c.user.ID]; seen && prev.LastSeen.After(joined) {
			continue
		}
		byID[c.user.ID] = domain.OnlineUser{ID: c.user.ID, DisplayName: c.user.Name(), LastSeen: joined}
	}

	users := make([]domain.OnlineUser, 0, len(byID))
	for _, u := range byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].DisplayName != users[j].DisplayName {
			return users[i].DisplayName < users[j].DisplayName
		}
		return users[i].ID < users[j].ID
	})
	return users
}

func (h *Hub) broadcastPresence(venueID string) {
	msg := Message{Type: TypePresence, Payload: PresencePayload{VenueID: venueID, Users: h.OnlineUsers(venueID)}}
	sendAll(h.venueSubscribers(venueID), msg)
}

func (h *Hub) venueSubscribers(venueID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	targets := make([]*Client, 0)
	for c := range h.clients {
		if _, ok := c.venueSubs[venueID]; ok {
			targets = append(targets, c)
		}
	}
	return targets
}

func sendAll(clients []*Client, msg Message) {
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, c := range clients {
		c.enqueue(msg)
	}
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return domain.NewValidationError("payload", "is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.NewValidationError("payload", "is malformed")
	}
	return nil
}

func (h *Hub) String() string {
	return "websocket-hub"
}
