package interceptors

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/pribylovaa/go-weibo-monitor/internal/pkg/log"
)

// WithMetadata добавляет в исходящий запрос заголовки:
//   - X-Request-Id (из контекста, иначе новый UUID), если он ещё не задан;
//   - User-Agent (если передан параметром и не задан вызывающим).
//
// Исходный запрос не модифицируется: заголовки пишутся в клон.
func WithMetadata(userAgent string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			out := req.Clone(req.Context())

			if out.Header.Get(HeaderRequestID) == "" {
				rid := log.RequestID(req.Context())
				if rid == "" {
					rid = uuid.NewString()
				}
				out.Header.Set(HeaderRequestID, rid)
			}

			if userAgent != "" && out.Header.Get("User-Agent") == "" {
				out.Header.Set("User-Agent", userAgent)
			}

			return next.RoundTrip(out)
		})
	}
}
