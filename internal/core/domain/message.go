package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength is the longest chat message accepted, in characters.
const MaxMessageLength = 2000

var (
	ErrMessageEmpty    = errors.New("message cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds the maximum length")
	ErrUnauthenticated = errors.New("authentication required")
)

// ChatMessage is a single message posted to a venue channel.
type ChatMessage struct {
	ID              string    `json:"id"`
	VenueID         string    `json:"venue_id"`
	UserID          string    `json:"user_id"`
	UserDisplayName string    `json:"user_display_name"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
}

// OnlineUser is a user currently subscribed to a venue channel.
type OnlineUser struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	LastSeen    time.Time `json:"last_seen"`
}

// NewChatMessage builds a message from author in venueID, stamped at now.
// The text is trimmed and must be non-empty and at most MaxMessageLength characters.
func NewChatMessage(venueID string, author *User, text string, now time.Time) (*ChatMessage, error) {
	if author == nil || author.ID == "" {
		return nil, ErrUnauthenticated
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, NewValidationError("message", ErrMessageEmpty.Error())
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, NewValidationError("message", ErrMessageTooLong.Error())
	}

	return &ChatMessage{
		VenueID:         venueID,
		UserID:          author.ID,
		UserDisplayName: author.Name(),
		Message:         text,
		Timestamp:       now.UTC(),
	}, nil
}
