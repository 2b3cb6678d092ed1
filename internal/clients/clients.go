package clients

import (
	"log/slog"
	"net/http"

	"github.com/pribylovaa/go-weibo-monitor/internal/clients/interceptors"
	"github.com/pribylovaa/go-weibo-monitor/internal/config"
	"github.com/pribylovaa/go-weibo-monitor/internal/metrics"
)

// New создаёт HTTP-клиент к бэкенду анализа.
// Цепочка транспорта: metadata -> timeout -> logging -> metrics -> http.Transport.
// Редиректы не выполняются: ответ 3xx возвращается вызывающему как есть.
func New(cfg config.Config, log *slog.Logger, m *metrics.Metrics) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()

	return &http.Client{
		Transport: interceptors.Chain(base,
			interceptors.WithMetadata(cfg.Backend.UserAgent),
			interceptors.WithTimeout(cfg.Timeouts.Upstream),
			interceptors.WithLogging(log),
			interceptors.WithMetrics(m),
		),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
