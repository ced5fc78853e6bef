package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mkhalid11/learnbuddy/backend/internal/service/chat"
	"github.com/mkhalid11/learnbuddy/backend/internal/transport/http/middleware"
	"github.com/rs/zerolog/log"
)

// ChatHandler streams tutor conversations over a websocket. The access
// credential is checked at upgrade time from the cookie or the Authorization
// header, same as any other protected endpoint.
type ChatHandler struct {
	Authorizer *middleware.Authorizer
	Chat       *chat.Service
	Upgrader   websocket.Upgrader
}

func NewChatHandler(authorizer *middleware.Authorizer, service *chat.Service, checkOrigin func(r *http.Request) bool) *ChatHandler {
	return &ChatHandler{
		Authorizer: authorizer,
		Chat:       service,
		Upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type clientMessage struct {
	Type    string         `json:"type"`
	History []chat.Message `json:"history,omitempty"`
	Prompt  string         `json:"prompt"`
}

type serverMessage struct {
	Type    string        `json:"type"`
	Message *chat.Message `json:"message,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Handle upgrades the connection and serves the chat loop.
func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Authorizer.Authorize(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("[WS] upgrade error")
		return
	}
	defer conn.Close()

	log.Info().Int64("user_id", claims.UserID).Msg("[WS] chat connection opened")

	// The ping goroutine and the chat loop share the connection; gorilla
	// permits one concurrent writer.
	var writeMu sync.Mutex
	writeJSON := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	// Keep-alive pinger; stale connections are detected via the read deadline.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if msg.Type != "ask" || msg.Prompt == "" {
			writeJSON(serverMessage{Type: "error", Error: "expected an ask message with a prompt"})
			continue
		}

		reply, err := h.Chat.Ask(r.Context(), msg.History, msg.Prompt)
		if err != nil {
			log.Error().Err(err).Int64("user_id", claims.UserID).Msg("[WS] completion failed")
			writeJSON(serverMessage{Type: "error", Error: "tutor is unavailable"})
			continue
		}
		writeJSON(serverMessage{Type: "reply", Message: reply})
	}
}
