package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pribylovaa/go-weibo-monitor/internal/pkg/log"
)

// Kind — тип события сессии.
type Kind string

const (
	KindSessionExpired Kind = "session_expired"
	KindLoggedIn       Kind = "logged_in"
	KindLoggedOut      Kind = "logged_out"
)

// Event — уведомление для UI. На session_expired UI уводит пользователя на страницу входа.
type Event struct {
	Kind     Kind      `json:"kind"`
	Username string    `json:"username,omitempty"`
	At       time.Time `json:"at"`
}

type broker struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

// Subscribe подписывает на события сессии. Возвращённая функция отменяет подписку
// и закрывает канал; повторный вызов безопасен.
//
// Доставка неблокирующая: если буфер подписчика полон, событие для него теряется.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}

	b := &m.events
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

func (m *Manager) emit(ctx context.Context, kind Kind, username string) {
	ev := Event{Kind: kind, Username: username, At: time.Now().UTC()}

	b := &m.events
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.From(ctx).Warn("session_event_dropped",
				slog.String("op", "session.emit"),
				slog.String("kind", string(kind)),
				slog.Int("subscriber", id),
			)
		}
	}
}
