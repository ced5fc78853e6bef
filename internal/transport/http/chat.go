package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mkhalid11/learnbuddy/backend/internal/service/chat"
	"github.com/mkhalid11/learnbuddy/backend/pkg/httputil"
	"github.com/rs/zerolog/log"
)

type ChatHandler struct {
	Chat *chat.Service
}

func NewChatHandler(service *chat.Service) *ChatHandler {
	return &ChatHandler{Chat: service}
}

// Ask is the request/response chat endpoint. The streaming variant lives on
// the websocket transport.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		History []chat.Message `json:"history"`
		Prompt  string         `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid input")
		return
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		httputil.WriteError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	reply, err := h.Chat.Ask(r.Context(), req.History, req.Prompt)
	if err != nil {
		log.Error().Err(err).Msg("[CHAT] completion failed")
		httputil.WriteError(w, http.StatusBadGateway, "tutor is unavailable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reply)
}
