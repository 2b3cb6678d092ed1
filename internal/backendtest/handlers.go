package backendtest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Handler возвращает HTTP-обработчик бэкенда с каноническими путями.
func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)

	r.Post("/auth/login", b.login)
	r.Post("/auth/register", b.register)
	r.Post("/auth/refresh", b.refreshTokens)
	r.Get("/auth/check", b.check)

	r.Post("/api/logout", b.logout)
	r.Get("/api/user", b.user)
	r.Post("/api/change_password", b.changePassword)
	r.HandleFunc("/api/unauthorized", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, msg("always unauthorized"))
	})
	r.HandleFunc("/api/*", b.echo)
	r.HandleFunc("/public/*", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path})
	})

	return r
}

type message struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

func msg(text string) message { return message{Status: "error", Message: text} }

type pairResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	User         *userJSON `json:"user,omitempty"`
}

type userJSON struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	LastLogin string `json:"last_login,omitempty"`
}

// isoNoZone — формат дат бэкенда (ISO-8601 без зоны).
const isoNoZone = "2006-01-02T15:04:05"

func toJSON(u *User) *userJSON {
	out := &userJSON{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.Format(isoNoZone),
	}
	if !u.LastLogin.IsZero() {
		out.LastLogin = u.LastLogin.Format(isoNoZone)
	}

	return out
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		b.headers[r.URL.Path] = r.Header.Clone()
		b.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		RememberMe bool   `json:"remember_me"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Username == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, msg("username and password are required"))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[in.Username]
	if !ok || !matches(u, in.Password) {
		writeJSON(w, http.StatusUnauthorized, msg("invalid username or password"))
		return
	}

	access, refresh, err := b.issueLocked(u.Username)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, msg(err.Error()))
		return
	}
	u.LastLogin = time.Now().UTC()

	writeJSON(w, http.StatusOK, pairResponse{AccessToken: access, RefreshToken: refresh, User: toJSON(u)})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Username == "" || in.Email == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, msg("username, email and password are required"))
		return
	}

	b.mu.Lock()
	err := b.addUserLocked(in.Username, in.Email, in.Password)
	b.mu.Unlock()

	if err != nil {
		if errors.Is(err, errUserExists) {
			writeJSON(w, http.StatusConflict, msg(err.Error()))
			return
		}
		writeJSON(w, http.StatusInternalServerError, msg(err.Error()))
		return
	}

	writeJSON(w, http.StatusCreated, message{Status: "success", Message: "registration successful"})
}

func (b *Backend) refreshTokens(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	delay, fail := b.refreshDelay, b.failRefresh
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if fail {
		writeJSON(w, http.StatusUnauthorized, msg("refresh token expired"))
		return
	}

	token := bearer(r)

	b.mu.Lock()
	defer b.mu.Unlock()

	username, ok := b.refresh[hashToken(token)]
	if token == "" || !ok {
		writeJSON(w, http.StatusUnauthorized, msg("invalid refresh token"))
		return
	}
	delete(b.refresh, hashToken(token))

	access, refresh, err := b.issueLocked(username)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, msg(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, pairResponse{AccessToken: access, RefreshToken: refresh})
}

func (b *Backend) check(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.authenticate(w, r); !ok {
		return
	}

	writeJSON(w, http.StatusOK, message{Status: "success", Message: "authenticated"})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	u, ok := b.authenticate(w, r)
	if !ok {
		return
	}

	b.mu.Lock()
	b.revokeLocked(u.Username)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, message{Status: "success", Message: "logged out"})
}

func (b *Backend) user(w http.ResponseWriter, r *http.Request) {
	u, ok := b.authenticate(w, r)
	if !ok {
		return
	}

	b.mu.Lock()
	out := toJSON(u)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) changePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := b.authenticate(w, r)
	if !ok {
		return
	}

	var in struct {
		Username    string `json:"username"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.NewPassword == "" {
		writeJSON(w, http.StatusBadRequest, msg("new_password is required"))
		return
	}
	if in.Username != u.Username {
		writeJSON(w, http.StatusForbidden, msg("cannot change password of another user"))
		return
	}

	hash, err := bcryptHash(in.NewPassword)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, msg(err.Error()))
		return
	}

	b.mu.Lock()
	u.PasswordHash = hash
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, message{Status: "success", Message: "password changed"})
}

// echo — произвольный защищённый ресурс: возвращает метод, путь (и в исходном экранировании), query и тело запроса.
func (b *Backend) echo(w http.ResponseWriter, r *http.Request) {
	u, ok := b.authenticate(w, r)
	if !ok {
		return
	}

	body, _ := io.ReadAll(r.Body)

	writeJSON(w, http.StatusOK, map[string]string{
		"method":   r.Method,
		"path":     r.URL.Path,
		"raw_path": r.URL.EscapedPath(),
		"query":    r.URL.RawQuery,
		"body":     string(body),
		"username": u.Username,
	})
}

func (b *Backend) authenticate(w http.ResponseWriter, r *http.Request) (*User, bool) {
	b.mu.Lock()
	u, ok := b.authenticateLocked(bearer(r))
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, msg("token expired or invalid"))
		return nil, false
	}

	return u, true
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}

	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
