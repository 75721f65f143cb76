package domain

import (
	"bytes"
	"errors"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/geo"
)

// AnonymousCreator is recorded as the creator of venues saved without an identity.
const AnonymousCreator = "anonymous"

const defaultImageURLBase = "https://source.unsplash.com/800x600/?place,"

// leadingNumber matches the decimal number a price text starts with.
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

var (
	ErrVenueNotFound      = errors.New("venue not found")
	ErrMissingCoordinates = errors.New("venue coordinates are required")
)

// Venue is a user-created point of interest. It also names a chat channel.
type Venue struct {
	ID           string       `json:"id"`
	Name         string       `json:"name" validate:"required,max=120"`
	Description  string       `json:"description" validate:"required,max=2000"`
	Coordinates  geo.Location `json:"coordinates"`
	ImageURL     string       `json:"image_url" validate:"omitempty,url,max=2048"`
	EntryPrice   float64      `json:"entry_price" validate:"gte=0"`
	ActivityType string       `json:"activity_type" validate:"max=60"`
	Activities   []string     `json:"activities" validate:"max=50,dive,max=60"`
	CreatedAt    time.Time    `json:"created_at"`
	CreatedBy    string       `json:"created_by"`
}

// PriceInput accepts an entry price sent either as a JSON number or as the
// raw text of a form field.
type PriceInput string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PriceInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		*p = PriceInput(s)
		return nil
	}
	*p = PriceInput(data)
	return nil
}

// Float parses the number the price starts with, so "12abc" is 12.
// Input with no leading number, or one that is not finite, yields 0.
func (p PriceInput) Float() float64 {
	num := leadingNumber.FindString(strings.TrimSpace(string(p)))
	if num == "" {
		return 0
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

// VenueDraft holds the raw values of a venue form before normalization.
type VenueDraft struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Coordinates  *geo.Location `json:"coordinates"`
	ImageURL     string        `json:"image_url"`
	EntryPrice   PriceInput    `json:"entry_price"`
	ActivityType string        `json:"activity_type"`
	Activities   string        `json:"activities"`
}

// NewVenue normalizes a draft into a validated venue owned by createdBy.
// The ID and CreatedAt are left for the caller to assign.
func NewVenue(draft VenueDraft, createdBy string) (*Venue, error) {
	if draft.Coordinates == nil {
		return nil, NewValidationError("coordinates", ErrMissingCoordinates.Error())
	}
	if err := draft.Coordinates.Validate(); err != nil {
		return nil, NewValidationError("coordinates", err.Error())
	}

	name := strings.TrimSpace(draft.Name)
	imageURL := strings.TrimSpace(draft.ImageURL)
	if imageURL == "" && name != "" {
		imageURL = DefaultImageURL(name)
	}

	if createdBy == "" {
		createdBy = AnonymousCreator
	}

	v := &Venue{
		Name:         name,
		Description:  strings.TrimSpace(draft.Description),
		Coordinates:  *draft.Coordinates,
		ImageURL:     imageURL,
		EntryPrice:   draft.EntryPrice.Float(),
		ActivityType: strings.TrimSpace(draft.ActivityType),
		Activities:   ParseActivities(draft.Activities),
		CreatedBy:    createdBy,
	}

	if err := ValidateStruct(v); err != nil {
		return nil, err
	}
	return v, nil
}

// ApplyDraft replaces the editable fields of v with a normalized draft,
// keeping its identity and creation metadata.
func (v *Venue) ApplyDraft(draft VenueDraft) error {
	updated, err := NewVenue(draft, v.CreatedBy)
	if err != nil {
		return err
	}
	updated.ID = v.ID
	updated.CreatedAt = v.CreatedAt
	*v = *updated
	return nil
}

// ParseActivities splits a comma separated list, trimming entries and
// dropping empty ones.
func ParseActivities(raw string) []string {
	activities := make([]string, 0)
	for _, a := range strings.Split(raw, ",") {
		if a = strings.TrimSpace(a); a != "" {
			activities = append(activities, a)
		}
	}
	return activities
}

// DefaultImageURL is the placeholder picture used when a venue has none.
func DefaultImageURL(name string) string {
	return defaultImageURLBase + strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}
