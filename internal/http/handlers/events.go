package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pribylovaa/go-weibo-monitor/internal/pkg/log"
)

const (
	eventsBuffer = 16
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
)

// Events — поток событий сессии (session_expired, logged_in, logged_out) по WebSocket.
// Каждое событие — JSON-сообщение {kind, username?, at}. Входящие сообщения клиента игнорируются.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Events"

	l := log.From(r.Context())

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту.
		l.Warn("ws_upgrade_failed", slog.String("op", op), slog.String("err", err.Error()))
		return
	}
	defer conn.Close()

	events, cancel := h.Session.Subscribe(eventsBuffer)
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Читатель нужен, чтобы обрабатывать control-фреймы и заметить закрытие соединения.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					l.Debug("ws_closed_unexpectedly", slog.String("op", op), slog.String("err", err.Error()))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				l.Debug("ws_write_failed", slog.String("op", op), slog.String("err", err.Error()))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
