package interceptors

import (
	"net/http"
	"time"

	"github.com/pribylovaa/go-weibo-monitor/internal/metrics"
)

// WithMetrics учитывает каждый исходящий запрос: метод, код ответа, длительность.
// nil-метрики допустимы.
func WithMetrics(m *metrics.Metrics) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next.RoundTrip(req)

			code := 0
			if err == nil {
				code = resp.StatusCode
			}
			m.Upstream(req.Method, code, time.Since(start))

			return resp, err
		})
	}
}
