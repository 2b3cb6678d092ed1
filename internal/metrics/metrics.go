// metrics — prometheus-метрики сессионного слоя и исходящих запросов к бэкенду.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dashboard"

// Итоги обновления токенов (метка result).
const (
	RefreshOK       = "ok"
	RefreshRejected = "rejected"
	RefreshError    = "error"
	RefreshNoToken  = "no_token"
)

// Metrics — набор коллекторов. Нулевой *Metrics допустим: все методы становятся no-op.
type Metrics struct {
	refreshes   *prometheus.CounterVec
	expirations prometheus.Counter
	upstream    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New создаёт коллекторы и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Token refresh attempts by result.",
		}, []string{"result"}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "expired_total",
			Help:      "Sessions terminated after a failed refresh.",
		}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Requests sent to the analysis backend by method and status code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of requests to the analysis backend.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(m.refreshes, m.expirations, m.upstream, m.duration)

	return m
}

// Refresh учитывает попытку обновления токенов.
func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}

	m.refreshes.WithLabelValues(result).Inc()
}

// Expired учитывает завершённую сессию.
func (m *Metrics) Expired() {
	if m == nil {
		return
	}

	m.expirations.Inc()
}

// Upstream учитывает исходящий запрос. code == 0 — транспортная ошибка (метка "error").
func (m *Metrics) Upstream(method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}

	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}

	m.upstream.WithLabelValues(method, label).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}
