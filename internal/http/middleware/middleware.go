// middleware — net/http мидлвары BFF. Порядок подключения задаёт internal/http.NewRouter.
package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
)

type Middleware func(http.Handler) http.Handler

// Chain оборачивает h так, что mws[0] выполняется первым.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// isUpgrade — запрос на смену протокола (WebSocket /session/events).
func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// responseRecorder запоминает статус и число байт ответа.
// Flush и Hijack нужны прокси и WebSocket, Unwrap — http.ResponseController.
type responseRecorder struct {
	http.ResponseWriter
	status   int
	written  int
	hijacked bool
}

func wrap(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w}
}

func (w *responseRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(p)
	w.written += n
	return n, err
}

// Status — итоговый статус; 0 означает, что обработчик ничего не записал.
func (w *responseRecorder) Status() int {
	if w.status == 0 && !w.hijacked {
		return http.StatusOK
	}
	return w.status
}

func (w *responseRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("middleware: response writer does not support hijacking")
	}

	conn, rw, err := h.Hijack()
	if err == nil {
		w.hijacked = true
		w.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

func (w *responseRecorder) Unwrap() http.ResponseWriter { return w.ResponseWriter }
