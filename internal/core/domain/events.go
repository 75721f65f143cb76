package domain

import (
	"strings"
	"time"
)

// Change feed topics. Message topics are per venue.
const (
	TopicVenues      = "venues"
	TopicLocations   = "locations"
	TopicAllMessages = "venues.*.messages"
)

// EventKind identifies what changed.
type EventKind string

const (
	EventVenueCreated   EventKind = "venue.created"
	EventVenueUpdated   EventKind = "venue.updated"
	EventVenueDeleted   EventKind = "venue.deleted"
	EventMessageCreated EventKind = "message.created"
	EventLocation       EventKind = "location.updated"
)

// ChangeEvent is published on the change feed whenever a venue, a chat
// message or a user location changes. Only the field matching Kind is set.
type ChangeEvent struct {
	Kind     EventKind       `json:"kind"`
	Topic    string          `json:"topic"`
	VenueID  string          `json:"venue_id,omitempty"`
	Venue    *Venue          `json:"venue,omitempty"`
	Message  *ChatMessage    `json:"message,omitempty"`
	Location *LocationRecord `json:"location,omitempty"`
	At       time.Time       `json:"at"`
}

// MessagesTopic returns the topic carrying the chat messages of a venue.
func MessagesTopic(venueID string) string {
	return "venues." + venueID + ".messages"
}

// VenueIDFromTopic extracts the venue ID from a messages topic.
func VenueIDFromTopic(topic string) (string, bool) {
	if !strings.HasPrefix(topic, "venues.") || !strings.HasSuffix(topic, ".messages") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(topic, "venues."), ".messages")
	if id == "" || strings.Contains(id, ".") {
		return "", false
	}
	return id, true
}

// NewVenueEvent builds a venue lifecycle event.
func NewVenueEvent(kind EventKind, v *Venue, now time.Time) ChangeEvent {
	return ChangeEvent{
		Kind:    kind,
		Topic:   TopicVenues,
		VenueID: v.ID,
		Venue:   v,
		At:      now.UTC(),
	}
}

// NewMessageEvent builds a message.created event on the venue's topic.
func NewMessageEvent(m *ChatMessage) ChangeEvent {
	return ChangeEvent{
		Kind:    EventMessageCreated,
		Topic:   MessagesTopic(m.VenueID),
		VenueID: m.VenueID,
		Message: m,
		At:      m.Timestamp,
	}
}

// NewLocationEvent builds a location event.
func NewLocationEvent(rec LocationRecord) ChangeEvent {
	return ChangeEvent{
		Kind:     EventLocation,
		Topic:    TopicLocations,
		Location: &rec,
		At:       rec.UpdatedAt,
	}
}
