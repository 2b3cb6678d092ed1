// interceptors предоставляет набор middleware для исходящих HTTP-запросов к бэкенду
// (обёртки над http.RoundTripper).
package interceptors

import "net/http"

// HeaderRequestID — заголовок корреляции запросов.
const HeaderRequestID = "X-Request-Id"

// RoundTripperFunc адаптирует функцию к http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Middleware оборачивает транспорт.
type Middleware func(http.RoundTripper) http.RoundTripper

// Chain собирает цепочку: первый middleware — внешний.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}

	return rt
}
