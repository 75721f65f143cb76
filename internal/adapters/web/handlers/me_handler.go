package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
)

// MeHandler serves the authenticated user's profile.
type MeHandler struct{}

// NewMeHandler creates a new MeHandler
func NewMeHandler() *MeHandler {
	return &MeHandler{}
}

// HandleMe returns the verified user.
func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := domain.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
