package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/go-weibo-monitor/internal/errors"
	"github.com/pribylovaa/go-weibo-monitor/internal/pkg/log"
)

// Заголовки, которые не проходят через прокси ни в одну сторону.
// Authorization и Cookie клиента не доверяются: учётные данные подставляет сессия.
var skipHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Authorization":       true,
	"Cookie":              true,
	"Set-Cookie":          true,
	"X-Request-Id":        true,
}

// Proxy пересылает запрос к бэкенду от имени сессии (Do): тот же метод, путь (в исходном
// экранировании), query и тело. Тело идёт потоком и ограничено MaxBodyBytes (413 сверх лимита).
// Ответ бэкенда возвращается как есть; отказ обновления токенов — 401/session_expired.
func (h *Handlers) Proxy(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Proxy"

	target := h.Backend.URL(r.URL.EscapedPath())
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	body := r.Body
	if h.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	out.ContentLength = r.ContentLength
	copyHeaders(out.Header, r.Header)

	resp, err := h.Session.Do(out)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		log.From(r.Context()).Warn("proxy_copy_failed",
			slog.String("op", op),
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()),
		)
	}
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		if skipHeaders[http.CanonicalHeaderKey(k)] || strings.HasPrefix(k, "Sec-Websocket") {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
