// backendtest — поддельный бэкенд анализа с auth-эндпойнтами для тестов и локального запуска.
//
// Access-токены — JWT (HS256) с «поколением»: ExpireAccessTokens делает все выданные
// access-токены недействительными, не трогая refresh-токены. Refresh-токены ротируются
// при каждом обновлении (старый перестаёт действовать). Пароли хранятся bcrypt-хэшами.
package backendtest

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "backendtest"

// User — учётная запись бэкенда.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
	LastLogin    time.Time
}

type accessClaims struct {
	Gen int `json:"gen"`
	jwt.RegisteredClaims
}

// Backend — состояние поддельного бэкенда. Безопасен для конкурентного использования.
type Backend struct {
	mu        sync.Mutex
	secret    []byte
	accessTTL time.Duration
	gen       int
	nextID    int64
	users     map[string]*User
	refresh   map[string]string // sha256(refresh) -> username

	failRefresh  bool
	refreshDelay time.Duration

	calls   map[string]int
	headers map[string]http.Header
}

// New создаёт пустой бэкенд.
func New() *Backend {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)

	return &Backend{
		secret:    secret,
		accessTTL: 15 * time.Minute,
		users:     make(map[string]*User),
		refresh:   make(map[string]string),
		calls:     make(map[string]int),
		headers:   make(map[string]http.Header),
	}
}

// NewServer поднимает бэкенд на httptest.Server и закрывает его по завершении теста.
func NewServer(t testing.TB) (*Backend, *httptest.Server) {
	t.Helper()

	b := New()
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)

	return b, srv
}

// AddUser регистрирует пользователя напрямую, минуя HTTP.
func (b *Backend) AddUser(username, email, password string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.addUserLocked(username, email, password)
}

func (b *Backend) addUserLocked(username, email, password string) error {
	if _, ok := b.users[username]; ok {
		return errUserExists
	}

	hash, err := bcryptHash(password)
	if err != nil {
		return fmt.Errorf("backendtest: hash password: %w", err)
	}

	b.nextID++
	b.users[username] = &User{
		ID:           b.nextID,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	return nil
}

var errUserExists = errors.New("username already exists")

// ExpireAccessTokens делает недействительными все выданные access-токены.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	b.gen++
	b.mu.Unlock()
}

// SetFailRefresh заставляет /auth/refresh отвечать 401.
func (b *Backend) SetFailRefresh(fail bool) {
	b.mu.Lock()
	b.failRefresh = fail
	b.mu.Unlock()
}

// SetRefreshDelay задерживает ответ /auth/refresh.
func (b *Backend) SetRefreshDelay(d time.Duration) {
	b.mu.Lock()
	b.refreshDelay = d
	b.mu.Unlock()
}

// SetAccessTTL задаёт срок жизни новых access-токенов.
func (b *Backend) SetAccessTTL(d time.Duration) {
	b.mu.Lock()
	b.accessTTL = d
	b.mu.Unlock()
}

// Calls — число запросов к path.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.calls[path]
}

// TotalCalls — число всех запросов.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, c := range b.calls {
		n += c
	}

	return n
}

// LastHeader — значение заголовка key в последнем запросе к path.
func (b *Backend) LastHeader(path, key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.headers[path]
	if !ok {
		return ""
	}

	return h.Get(key)
}

// PasswordMatches сообщает, подходит ли password пользователю username.
func (b *Backend) PasswordMatches(username, password string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	u, ok := b.users[username]

	return ok && matches(u, password)
}

func matches(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) == nil
}

func bcryptHash(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
}

// issueLocked выпускает новую пару для username.
func (b *Backend) issueLocked(username string) (access, refresh string, err error) {
	now := time.Now().UTC()

	claims := accessClaims{
		Gen: b.gen,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(b.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   username,
			// ID делает токены одного пользователя, выпущенные в одну секунду, различными.
			ID: randomString(8),
		},
	}

	access, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return "", "", fmt.Errorf("backendtest: sign access: %w", err)
	}

	refresh = randomString(32)
	b.refresh[hashToken(refresh)] = username

	return access, refresh, nil
}

// authenticateLocked проверяет access-токен и возвращает пользователя.
func (b *Backend) authenticateLocked(token string) (*User, bool) {
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{},
		func(*jwt.Token) (interface{}, error) { return b.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, false
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid || claims.Gen != b.gen {
		return nil, false
	}

	u, ok := b.users[claims.Subject]

	return u, ok
}

// revokeLocked отзывает все refresh-токены пользователя.
func (b *Backend) revokeLocked(username string) {
	for h, u := range b.refresh {
		if u == username {
			delete(b.refresh, h)
		}
	}
}

func randomString(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)

	return base64.RawURLEncoding.EncodeToString(buf)
}

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
