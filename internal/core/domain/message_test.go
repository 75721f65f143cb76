package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatMessage(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	author := &User{ID: "u1", DisplayName: "Ana"}

	m, err := NewChatMessage("v1", author, "  hello  ", now)
	require.NoError(t, err)
	assert.Equal(t, "hello", m.Message)
	assert.Equal(t, "v1", m.VenueID)
	assert.Equal(t, "u1", m.UserID)
	assert.Equal(t, "Ana", m.UserDisplayName)
	assert.Equal(t, now, m.Timestamp)
}

func TestNewChatMessage_AnonymousName(t *testing.T) {
	m, err := NewChatMessage("v1", &User{ID: "u2"}, "hi", time.Now())
	require.NoError(t, err)
	assert.Equal(t, AnonymousDisplayName, m.UserDisplayName)
}

func TestNewChatMessage_Rejects(t *testing.T) {
	_, err := NewChatMessage("v1", nil, "hi", time.Now())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = NewChatMessage("v1", &User{ID: "u"}, "   ", time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewChatMessage("v1", &User{ID: "u"}, strings.Repeat("é", MaxMessageLength+1), time.Now())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewChatMessage("v1", &User{ID: "u"}, strings.Repeat("é", MaxMessageLength), time.Now())
	assert.NoError(t, err)
}
