package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-weibo-monitor/internal/pkg/log"
)

// HeaderRequestID — заголовок корреляции UI -> BFF -> бэкенд.
const HeaderRequestID = "X-Request-Id"

// maxRequestIDLen — длиннее не принимаем: id уходит в логи и на бэкенд.
const maxRequestIDLen = 128

// RequestID берёт X-Request-Id клиента, если он приемлем, иначе выдаёт UUID.
// Id попадает в ответ, в заголовок запроса (для errors.WriteError) и в контекст:
// оттуда его читают логгер и metadata-интерсептор клиента бэкенда.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if !validRequestID(id) {
				id = uuid.NewString()
				r.Header.Set(HeaderRequestID, id)
			}
			w.Header().Set(HeaderRequestID, id)

			next.ServeHTTP(w, r.WithContext(log.WithRequestID(r.Context(), id)))
		})
	}
}

// validRequestID — непустой печатный ASCII без пробелов.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}

	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return false
		}
	}

	return true
}
