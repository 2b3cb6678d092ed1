package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/pribylovaa/go-weibo-monitor/internal/errors"
	"github.com/pribylovaa/go-weibo-monitor/internal/pkg/log"
)

var errPanic = errors.New("handler panic")

// Recover превращает панику обработчика в 500/internal с конвертом ошибки.
// http.ErrAbortHandler пробрасывается дальше: это штатный обрыв ответа (например, в прокси).
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.From(r.Context()).Error("panic_recovered",
					slog.String("op", "middleware.Recover"),
					slog.String("path", r.URL.Path),
					slog.Any("reason", rec),
					slog.String("stack", string(debug.Stack())),
				)

				if !isUpgrade(r) {
					apierrors.WriteError(w, r, errPanic)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
