package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/services/audit"
	"github.com/lcalzada-xor/venuechat/internal/core/services/chat"
	"github.com/lcalzada-xor/venuechat/internal/core/services/nearby"
	"github.com/lcalzada-xor/venuechat/internal/core/services/servicetest"
	"github.com/lcalzada-xor/venuechat/internal/core/services/venue"
	"github.com/lcalzada-xor/venuechat/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	hub    *Hub
	venues *venue.Service
	store  *servicetest.MemoryStore
	server *httptest.Server
}

// withUser stands in for the auth middleware: ?user=<id> authenticates.
func withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("user")
		if id == "" {
			next(w, r)
			return
		}
		u := &domain.User{ID: id, Email: id + "@example.com", DisplayName: strings.ToUpper(id), Role: domain.RoleUser}
		next(w, r.WithContext(domain.WithActor(r.Context(), u)))
	}
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	store := servicetest.NewMemoryStore()
	feed := servicetest.NewMemoryFeed()
	venueSvc := venue.NewService(store, feed, audit.NewAuditService(store))
	chatSvc := chat.NewService(store, store, feed)
	nearbySvc, err := nearby.NewService(servicetest.NewMemoryLocations(), store, nil, nil, nearby.Config{})
	require.NoError(t, err)

	hub := NewHub(venueSvc, chatSvc, nearbySvc, feed, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Serve(ctx)
	}()
	require.Eventually(t, func() bool { return feed.Subscribers() == 2 }, 2*time.Second, 10*time.Millisecond)

	srv := httptest.NewServer(withUser(hub.HandleWebSocket))
	t.Cleanup(func() {
		cancel()
		<-done
		require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
		srv.Close()
	})

	return &harness{hub: hub, venues: venueSvc, store: store, server: srv}
}

func (h *harness) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws?user=" + user
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// expect reads frames until one of msgType arrives and decodes its payload into out.
func expect(t *testing.T, conn *websocket.Conn, msgType string, out interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", msgType)

		var f Frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type != msgType {
			continue
		}
		if out != nil {
			require.NoError(t, json.Unmarshal(f.Payload, out))
		}
		return
	}
}

func testDraft(name string) domain.VenueDraft {
	return domain.VenueDraft{
		Name:        name,
		Description: "Live music",
		Coordinates: &geo.Location{Latitude: 40.4168, Longitude: -3.7038},
	}
}

func TestHub_RejectsUnauthenticated(t *testing.T) {
	h := newHarness(t, Config{})

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	h := newHarness(t, Config{AllowedOrigins: []string{"https://venues.example.com"}})

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws?user=alice"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://venues.example.com")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	_ = conn.Close()
}

func TestHub_VenueFeed(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	actor := &domain.User{ID: "owner", Role: domain.RoleUser}

	existing, err := h.venues.Create(ctx, actor, testDraft("Old Bar"))
	require.NoError(t, err)

	conn := h.dial(t, "alice")
	send(t, conn, TypeSubscribe, SubscribePayload{Channel: ChannelVenues})

	var snapshot []domain.Venue
	expect(t, conn, TypeVenuesSnapshot, &snapshot)
	require.Len(t, snapshot, 1)
	assert.Equal(t, existing.ID, snapshot[0].ID)

	created, err := h.venues.Create(ctx, actor, testDraft("New Club"))
	require.NoError(t, err)
	var got domain.Venue
	expect(t, conn, TypeVenueCreated, &got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "New Club", got.Name)

	require.NoError(t, h.venues.Delete(ctx, actor, existing.ID))
	expect(t, conn, TypeVenueDeleted, &got)
	assert.Equal(t, existing.ID, got.ID)
}

func TestHub_ChatAndPresence(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	v, err := h.venues.Create(ctx, &domain.User{ID: "owner"}, testDraft("Jazz Club"))
	require.NoError(t, err)

	alice := h.dial(t, "alice")
	send(t, alice, TypeSubscribe, SubscribePayload{Channel: ChannelVenue, VenueID: v.ID})

	var history MessagesSnapshot
	expect(t, alice, TypeMessagesSnapshot, &history)
	assert.Equal(t, v.ID, history.VenueID)

	var presence struct {
		VenueID string              `json:"venue_id"`
		Users   []domain.OnlineUser `json:"users"`
	}
	expect(t, alice, TypePresence, &presence)
	require.Len(t, presence.Users, 1)
	assert.Equal(t, "alice", presence.Users[0].ID)

	bob := h.dial(t, "bob")
	send(t, bob, TypeSubscribe, SubscribePayload{Channel: ChannelVenue, VenueID: v.ID})
	expect(t, bob, TypeMessagesSnapshot, nil)

	expect(t, alice, TypePresence, &presence)
	require.Len(t, presence.Users, 2)
	assert.Equal(t, "ALICE", presence.Users[0].DisplayName)
	assert.Equal(t, "BOB", presence.Users[1].DisplayName)

	send(t, bob, TypeChat, ChatPayload{VenueID: v.ID, Message: "  hello  "})

	var msg domain.ChatMessage
	expect(t, alice, TypeMessageCreated, &msg)
	assert.Equal(t, "hello", msg.Message)
	assert.Equal(t, "bob", msg.UserID)
	assert.Equal(t, v.ID, msg.VenueID)

	stored, err := h.store.ListMessages(ctx, v.ID, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	require.NoError(t, bob.Close())
	expect(t, alice, TypePresence, &presence)
	require.Len(t, presence.Users, 1)
	assert.Equal(t, "alice", presence.Users[0].ID)
}

func TestHub_SubscribeUnknownVenue(t *testing.T) {
	h := newHarness(t, Config{})
	conn := h.dial(t, "alice")

	send(t, conn, TypeSubscribe, SubscribePayload{Channel: ChannelVenue, VenueID: "missing"})

	var e ErrorPayload
	expect(t, conn, TypeError, &e)
	assert.Equal(t, TypeSubscribe, e.Request)
	assert.Equal(t, domain.ErrVenueNotFound.Error(), e.Error)
}

func TestHub_ChatRateLimit(t *testing.T) {
	h := newHarness(t, Config{ChatRate: rate.Every(time.Hour), ChatBurst: 1})
	v, err := h.venues.Create(context.Background(), &domain.User{ID: "owner"}, testDraft("Quiet Bar"))
	require.NoError(t, err)

	conn := h.dial(t, "alice")
	send(t, conn, TypeSubscribe, SubscribePayload{Channel: ChannelVenue, VenueID: v.ID})
	expect(t, conn, TypeMessagesSnapshot, nil)

	send(t, conn, TypeChat, ChatPayload{VenueID: v.ID, Message: "first"})
	expect(t, conn, TypeMessageCreated, nil)

	send(t, conn, TypeChat, ChatPayload{VenueID: v.ID, Message: "second"})
	var e ErrorPayload
	expect(t, conn, TypeError, &e)
	assert.Equal(t, ErrChatRateLimit.Error(), e.Error)
}

func TestHub_InvalidChatReportsFields(t *testing.T) {
	h := newHarness(t, Config{})
	v, err := h.venues.Create(context.Background(), &domain.User{ID: "owner"}, testDraft("Loud Bar"))
	require.NoError(t, err)

	conn := h.dial(t, "alice")
	send(t, conn, TypeChat, ChatPayload{VenueID: v.ID, Message: "   "})

	var e ErrorPayload
	expect(t, conn, TypeError, &e)
	assert.Equal(t, domain.ErrValidation.Error(), e.Error)
	assert.Contains(t, e.Fields, "message")
}

func TestHub_NearbyUpdates(t *testing.T) {
	h := newHarness(t, Config{})

	alice := h.dial(t, "alice")
	send(t, alice, TypeLocation, LocationPayload{Latitude: 40.4168, Longitude: -3.7038})

	var users []domain.NearbyUser
	expect(t, alice, TypeNearby, &users)
	assert.Empty(t, users)

	bob := h.dial(t, "bob")
	send(t, bob, TypeLocation, LocationPayload{Latitude: 40.4200, Longitude: -3.7000})

	var bobSees []domain.NearbyUser
	expect(t, bob, TypeNearby, &bobSees)
	require.Len(t, bobSees, 1)
	assert.Equal(t, "alice", bobSees[0].ID)

	expect(t, alice, TypeNearby, &users)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].ID)
	assert.Equal(t, 40.42, users[0].Location.Latitude)
}

func TestHub_PingAndUnknownFrames(t *testing.T) {
	h := newHarness(t, Config{})
	conn := h.dial(t, "alice")

	send(t, conn, TypePing, nil)
	expect(t, conn, TypePong, nil)

	send(t, conn, "teleport", nil)
	var e ErrorPayload
	expect(t, conn, TypeError, &e)
	assert.Equal(t, ErrUnknownFrame.Error(), e.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	expect(t, conn, TypeError, &e)
	assert.Equal(t, "malformed frame", e.Error)
}

func TestHub_ServeClosesClients(t *testing.T) {
	h := newHarness(t, Config{})
	conn := h.dial(t, "alice")

	require.Eventually(t, func() bool { return h.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
