package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/go-weibo-monitor/internal/pkg/log"
)

// Logging кладёт в контекст логгер с request_id и пишет одну запись "http" на запрос.
// Уровень зависит от статуса: 5xx — error, 4xx — warn. Заголовки не логируются.
func Logging(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base
			if rid := log.RequestID(r.Context()); rid != "" {
				l = l.With(slog.String("request_id", rid))
			}
			ctx := log.Into(r.Context(), l)

			rec := wrap(w)
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.Status()
			l.LogAttrs(ctx, levelFor(status), "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", rec.written),
			)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
