package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
)

// MessageRequest is the body of a chat post.
type MessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// MessageHandler exposes venue chat history and posting.
type MessageHandler struct {
	Service      ports.ChatService
	HistoryLimit int
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(service ports.ChatService) *MessageHandler {
	return &MessageHandler{Service: service, HistoryLimit: 100}
}

func (h *MessageHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", h.HistoryLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	venueID := mux.Vars(r)["id"]
	msgs, err := h.Service.History(r.Context(), venueID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"venue_id": venueID,
		"messages": msgs,
	})
}

func (h *MessageHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := domain.ValidateStruct(req); err != nil {
		writeError(w, r, err)
		return
	}

	actor, _ := domain.ActorFromContext(r.Context())
	msg, err := h.Service.Send(r.Context(), actor, mux.Vars(r)["id"], req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}
