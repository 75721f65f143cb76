package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var clientIDCounter atomic.Uint64

// Client is one authenticated WebSocket connection.
type Client struct {
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	user    *domain.User
	send    chan Message
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter

	// guarded by hub.mu
	venuesSub bool
	venueSubs map[string]time.Time

	watchMu     sync.Mutex
	cancelWatch func()
}

func newClient(hub *Hub, conn *websocket.Conn, user *domain.User) *Client {
	return &Client{
		id:        clientIDCounter.Add(1),
		hub:       hub,
		conn:      conn,
		user:      user,
		send:      make(chan Message, sendBuffer),
		done:      make(chan struct{}),
		limiter:   rate.NewLimiter(hub.cfg.ChatRate, hub.cfg.ChatBurst),
		venueSubs: make(map[string]time.Time),
	}
}

// enqueue hands msg to the write pump. Slow clients lose messages rather
// than stalling the hub.
func (c *Client) enqueue(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	default:
		slog.Warn("websocket client send buffer full, dropping message", "client_id", c.id, "type", msg.Type)
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.stopWatch()
	})
}

func (c *Client) stopWatch() {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if c.cancelWatch != nil {
		c.cancelWatch()
		c.cancelWatch = nil
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Warn("unexpected websocket close", "client_id", c.id, "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.enqueue(errorMessage("", errors.New("malformed frame")))
			continue
		}
		c.hub.handleFrame(ctx, c, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Error("failed to marshal websocket message", "type", msg.Type, "error", err)
				continue
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func errorMessage(request string, err error) Message {
	payload := ErrorPayload{Request: request, Error: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		payload.Error = domain.ErrValidation.Error()
		payload.Fields = verr.Fields
	}
	return Message{Type: TypeError, Payload: payload}
}
