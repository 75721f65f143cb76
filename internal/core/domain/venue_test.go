package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/lcalzada-xor/venuechat/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() VenueDraft {
	return VenueDraft{
		Name:         "  Central Park  ",
		Description:  " Big green space ",
		Coordinates:  &geo.Location{Latitude: 40.7829, Longitude: -73.9654},
		EntryPrice:   "12.5",
		ActivityType: " outdoor ",
		Activities:   "running, ,picnic,  rowing ",
	}
}

func TestNewVenue_Normalizes(t *testing.T) {
	v, err := NewVenue(validDraft(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "Central Park", v.Name)
	assert.Equal(t, "Big green space", v.Description)
	assert.Equal(t, "outdoor", v.ActivityType)
	assert.Equal(t, 12.5, v.EntryPrice)
	assert.Equal(t, []string{"running", "picnic", "rowing"}, v.Activities)
	assert.Equal(t, "https://source.unsplash.com/800x600/?place,Central%20Park", v.ImageURL)
	assert.Equal(t, "user-1", v.CreatedBy)
}

func TestNewVenue_Defaults(t *testing.T) {
	d := validDraft()
	d.EntryPrice = "free"
	d.ImageURL = "https://example.com/park.jpg"
	d.Activities = ""

	v, err := NewVenue(d, "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.EntryPrice)
	assert.Equal(t, "https://example.com/park.jpg", v.ImageURL)
	assert.Empty(t, v.Activities)
	assert.Equal(t, AnonymousCreator, v.CreatedBy)
}

func TestNewVenue_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *VenueDraft)
		field  string
	}{
		{"missing coordinates", func(d *VenueDraft) { d.Coordinates = nil }, "coordinates"},
		{"bad latitude", func(d *VenueDraft) { d.Coordinates = &geo.Location{Latitude: 95} }, "coordinates"},
		{"blank name", func(d *VenueDraft) { d.Name = "   " }, "name"},
		{"blank description", func(d *VenueDraft) { d.Description = "\t" }, "description"},
		{"negative price", func(d *VenueDraft) { d.EntryPrice = "-3" }, "entry_price"},
		{"long name", func(d *VenueDraft) { d.Name = strings.Repeat("x", 121) }, "name"},
		{"bad image url", func(d *VenueDraft) { d.ImageURL = "not a url" }, "image_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)

			_, err := NewVenue(d, "u")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestVenue_ApplyDraftKeepsIdentity(t *testing.T) {
	v, err := NewVenue(validDraft(), "owner")
	require.NoError(t, err)
	v.ID = "venue-1"
	created := v.CreatedAt

	d := validDraft()
	d.Name = "Renamed"
	require.NoError(t, v.ApplyDraft(d))

	assert.Equal(t, "venue-1", v.ID)
	assert.Equal(t, created, v.CreatedAt)
	assert.Equal(t, "owner", v.CreatedBy)
	assert.Equal(t, "Renamed", v.Name)
}

func TestPriceInput_UnmarshalJSON(t *testing.T) {
	var d VenueDraft
	require.NoError(t, json.Unmarshal([]byte(`{"entry_price": 7.25}`), &d))
	assert.Equal(t, 7.25, d.EntryPrice.Float())

	require.NoError(t, json.Unmarshal([]byte(`{"entry_price": "3"}`), &d))
	assert.Equal(t, 3.0, d.EntryPrice.Float())

	require.NoError(t, json.Unmarshal([]byte(`{"entry_price": null}`), &d))
	assert.Equal(t, 0.0, d.EntryPrice.Float())
}

func TestPriceInput_Float(t *testing.T) {
	tests := []struct {
		in   PriceInput
		want float64
	}{
		{"12.5", 12.5},
		{" 8 ", 8},
		{"12abc", 12},
		{".5 EUR", 0.5},
		{"2e3", 2000},
		{"abc", 0},
		{"", 0},
		{"Inf", 0},
		{"+Inf", 0},
		{"Infinity", 0},
		{"-Infinity", 0},
		{"NaN", 0},
		{"1e400", 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Float())
		})
	}
}

func TestNewVenue_NonFinitePriceIsFree(t *testing.T) {
	for _, price := range []PriceInput{"Inf", "NaN", "1e400"} {
		d := validDraft()
		d.EntryPrice = price

		v, err := NewVenue(d, "u")
		require.NoError(t, err, "price %q", price)
		assert.Equal(t, 0.0, v.EntryPrice)

		_, err = json.Marshal(v)
		assert.NoError(t, err, "price %q", price)
	}
}

func TestParseActivities(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseActivities(" a ,,b,"))
	assert.Equal(t, []string{}, ParseActivities(""))
}
