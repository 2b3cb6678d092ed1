// log прокладывает request-scoped *slog.Logger и идентификатор запроса через context.Context.
package log

import (
	"context"
	"log/slog"
)

type (
	loggerKey    struct{}
	requestIDKey struct{}
)

// Into кладёт логгер в контекст.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// From достаёт логгер из контекста (или возвращает slog.Default()).
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(loggerKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}

	return slog.Default()
}

// WithRequestID сохраняет request_id в контексте и обогащает им логгер из контекста.
// Пустой id контекст не меняет.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}

	ctx = context.WithValue(ctx, requestIDKey{}, id)
	return Into(ctx, From(ctx).With(slog.String("request_id", id)))
}

// RequestID возвращает request_id из контекста или "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
