package handlers

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/pribylovaa/go-weibo-monitor/internal/config"
	"github.com/pribylovaa/go-weibo-monitor/internal/session"
)

// Handlers агрегирует зависимости: сессию и адрес бэкенда для прокси.
type Handlers struct {
	Session  *session.Manager
	Backend  config.BackendConfig
	Upgrader websocket.Upgrader
	// MaxBodyBytes — предел тела проксируемого запроса; 0 — без предела.
	MaxBodyBytes int64
}

// New создаёт обработчики. allowedOrigins — источники, допустимые для /session/events;
// пустой список — только same-origin (проверка gorilla/websocket по умолчанию).
func New(s *session.Manager, backend config.BackendConfig, allowedOrigins []string, maxBodyBytes int64) *Handlers {
	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowedOrigins) > 0 {
		up.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		}
	}

	return &Handlers{Session: s, Backend: backend, Upgrader: up, MaxBodyBytes: maxBodyBytes}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// errInvalidBody — локальная ошибка парсинга тела -> 400/invalid_argument.
func errInvalidBody() error {
	return &session.ValidationError{Violations: []session.Violation{
		{Field: "body", Message: "invalid request body"},
	}}
}
