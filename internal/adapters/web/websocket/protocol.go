package websocket

import (
	"github.com/goccy/go-json"
)

// Client to server frame types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeLocation    = "location"
	TypeChat        = "chat"
	TypePing        = "ping"
)

// Server to client frame types.
const (
	TypeVenuesSnapshot   = "venues.snapshot"
	TypeVenueCreated     = "venue.created"
	TypeVenueUpdated     = "venue.updated"
	TypeVenueDeleted     = "venue.deleted"
	TypeMessagesSnapshot = "messages.snapshot"
	TypeMessageCreated   = "message.created"
	TypePresence         = "presence"
	TypeNearby           = "nearby"
	TypeError            = "error"
	TypePong             = "pong"
)

// Subscription channels.
const (
	ChannelVenues = "venues"
	ChannelVenue  = "venue"
)

// Message is a server to client frame.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Frame is a client to server frame. The payload is decoded once the type is known.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload selects a channel for subscribe and unsubscribe frames.
type SubscribePayload struct {
	Channel string `json:"channel"`
	VenueID string `json:"venue_id,omitempty"`
}

// LocationPayload reports the client's current position.
type LocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ChatPayload posts a message to a venue channel.
type ChatPayload struct {
	VenueID string `json:"venue_id"`
	Message string `json:"message"`
}

// ErrorPayload describes a rejected frame.
type ErrorPayload struct {
	Request string            `json:"request,omitempty"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// MessagesSnapshot is the chat history sent on venue subscription.
type MessagesSnapshot struct {
	VenueID  string      `json:"venue_id"`
	Messages interface{} `json:"messages"`
}

// PresencePayload lists the users currently in a venue channel.
type PresencePayload struct {
	VenueID string      `json:"venue_id"`
	Users   interface{} `json:"users"`
}
