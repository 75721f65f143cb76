package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
)

// VenueHandler exposes the venue catalogue.
type VenueHandler struct {
	Service ports.VenueService
}

// NewVenueHandler creates a new VenueHandler
func NewVenueHandler(service ports.VenueService) *VenueHandler {
	return &VenueHandler{Service: service}
}

func (h *VenueHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	venues, err := h.Service.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"venues": venues})
}

func (h *VenueHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *VenueHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var draft domain.VenueDraft
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, r, err)
		return
	}

	actor, _ := domain.ActorFromContext(r.Context())
	v, err := h.Service.Create(r.Context(), actor, draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *VenueHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var draft domain.VenueDraft
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, r, err)
		return
	}

	actor, _ := domain.ActorFromContext(r.Context())
	v, err := h.Service.Update(r.Context(), actor, mux.Vars(r)["id"], draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *VenueHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := domain.ActorFromContext(r.Context())
	if err := h.Service.Delete(r.Context(), actor, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
