package interceptors

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/go-weibo-monitor/internal/pkg/log"
)

// WithLogging — логирование исходящих запросов.
// Поведение:
//   - добавляет поля request_id/method/host/path, прокладывает обогащённый логгер в контекст;
//   - пишет одну финальную запись msg="upstream": status и dur (Info) либо err (Warn).
//
// Безопасность: не логирует тела и заголовки (в том числе Authorization).
func WithLogging(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()

			l := base.With(
				slog.String("request_id", req.Header.Get(HeaderRequestID)),
				slog.String("method", req.Method),
				slog.String("host", req.URL.Host),
				slog.String("path", req.URL.Path),
			)
			req = req.WithContext(log.Into(req.Context(), l))

			resp, err := next.RoundTrip(req)
			if err != nil {
				l.Warn("upstream",
					slog.String("err", err.Error()),
					slog.Duration("dur", time.Since(start)),
				)
				return nil, err
			}

			l.Info("upstream",
				slog.Int("status", resp.StatusCode),
				slog.Duration("dur", time.Since(start)),
			)

			return resp, nil
		})
	}
}
