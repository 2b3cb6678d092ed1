package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-weibo-monitor/internal/config"
	"github.com/pribylovaa/go-weibo-monitor/internal/http/handlers"
	"github.com/pribylovaa/go-weibo-monitor/internal/http/middleware"
	"github.com/pribylovaa/go-weibo-monitor/internal/session"
)

// Options — параметры роутера. Timeout — дедлайн запроса (timeouts.service).
type Options struct {
	Logger         *slog.Logger
	Timeout        time.Duration
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// NewRouter собирает HTTP-поверхность BFF поверх менеджера сессии sm.
func NewRouter(sm *session.Manager, backend config.BackendConfig, opts Options) http.Handler {
	root := chi.NewRouter()

	// Порядок важен: RequestID до Logging, чтобы запись "http" несла request_id.
	// Timeout не трогает апгрейд /session/events: поток живёт, пока открыт сокет.
	root.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
		middleware.Timeout(opts.Timeout),
	)

	registerRoutes(root, handlers.New(sm, backend, opts.AllowedOrigins, opts.MaxBodyBytes))

	return root
}

// registerRoutes регистрирует маршруты /session/* и прокси /api/*.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	r.Get("/session/events", h.Events)

	r.Post("/session/login", h.Login)
	r.Post("/session/register", h.Register)
	r.Post("/session/logout", h.Logout)
	r.Get("/session/check", h.Check)
	r.Get("/session/state", h.State)
	r.Get("/session/user", h.User)
	r.Post("/session/password", h.ChangePassword)

	// Остальное API бэкенда идёт через сессию.
	r.HandleFunc("/api/*", h.Proxy)
}
