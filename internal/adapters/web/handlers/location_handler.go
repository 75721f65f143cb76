package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"github.com/lcalzada-xor/venuechat/internal/geo"
	"github.com/lcalzada-xor/venuechat/internal/telemetry"
)

// LocationRequest carries a position reported by, or queried for, the caller.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

// LocationResponse pairs the stored record with the caller's nearby set.
type LocationResponse struct {
	Location domain.LocationRecord `json:"location"`
	Nearby   []domain.NearbyUser   `json:"nearby"`
}

// LocationHandler exposes location reporting and nearby queries.
type LocationHandler struct {
	Service ports.NearbyService
}

// NewLocationHandler creates a new LocationHandler
func NewLocationHandler(service ports.NearbyService) *LocationHandler {
	return &LocationHandler{Service: service}
}

// HandleUpdate stores the caller's location and returns who is nearby.
func (h *LocationHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := domain.ValidateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}

	actor, _ := domain.ActorFromContext(r.Context())
	rec, err := h.Service.UpdateLocation(r.Context(), actor, *req.Latitude, *req.Longitude)
	if err != nil {
		writeError(w, r, err)
		return
	}
	telemetry.LocationUpdates.WithLabelValues("http").Inc()

	nearby, err := h.Service.Nearby(r.Context(), actor.ID, rec.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LocationResponse{Location: rec, Nearby: nearby})
}

// HandleNearby lists users near the lat/lng query parameters.
func (h *LocationHandler) HandleNearby(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		writeError(w, r, err)
		return
	}
	lng, err := queryFloat(r, "lng")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := LocationRequest{Latitude: &lat, Longitude: &lng}
	if err := domain.ValidateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}

	actor, _ := domain.ActorFromContext(r.Context())
	userID := ""
	if actor != nil {
		userID = actor.ID
	}

	nearby, err := h.Service.Nearby(r.Context(), userID, geo.Location{Latitude: lat, Longitude: lng})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nearby": nearby})
}
