// errors стандартизирует ответы об ошибках HTTP-слоя dashboard-bff.
// На вход он принимает ошибку сессионного слоя, а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей;
//   - для session_expired — адрес страницы входа (redirect).
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/go-weibo-monitor/internal/session"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// LoginPath — куда UI уводит пользователя после session_expired.
const LoginPath = "/login"

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание (сообщение бэкенда, если оно было).
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code       string              `json:"code"`
	Message    string              `json:"message"`
	RequestID  string              `json:"request_id,omitempty"`
	Violations []session.Violation `json:"violations,omitempty"`
	Redirect   string              `json:"redirect,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сессионного слоя в HTTP-статус и ответ для фронта.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500/internal;
//   - *session.ValidationError — 400/invalid_argument со списком нарушений;
//   - session.ErrSessionExpired — 401/session_expired с redirect на страницу входа;
//   - *session.AuthRejectedError — статус и сообщение бэкенда;
//   - тело больше лимита (http.MaxBytesError, ErrBodyNotReplayable) — 413/payload_too_large;
//   - отмена/таймаут — 499/504, прочие сетевые ошибки — 502/unavailable;
//   - остальное — 500/internal (без утечки деталей).
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return internal()
	}

	var verr *session.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, ErrorResponse{Error: APIError{
			Code:       "invalid_argument",
			Message:    verr.First(),
			Violations: verr.Violations,
		}}
	}

	if errors.Is(err, session.ErrSessionExpired) {
		return http.StatusUnauthorized, ErrorResponse{Error: APIError{
			Code:     "session_expired",
			Message:  session.ErrSessionExpired.Error(),
			Redirect: LoginPath,
		}}
	}

	var rejected *session.AuthRejectedError
	if errors.As(err, &rejected) {
		status := rejected.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}

		return status, ErrorResponse{Error: APIError{
			Code:    codeFromStatus(status),
			Message: rejected.Message,
		}}
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, ErrorResponse{Error: APIError{
			Code:    "payload_too_large",
			Message: "request body too large",
		}}
	}

	switch {
	case errors.Is(err, session.ErrBodyNotReplayable):
		return http.StatusRequestEntityTooLarge, ErrorResponse{Error: APIError{
			Code:    "payload_too_large",
			Message: session.ErrBodyNotReplayable.Error(),
		}}
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, ErrorResponse{Error: APIError{Code: "canceled", Message: "canceled"}}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: APIError{
			Code:    "deadline_exceeded",
			Message: session.ErrTransport.Error(),
		}}
	case errors.Is(err, session.ErrTransport):
		return http.StatusBadGateway, ErrorResponse{Error: APIError{
			Code:    "unavailable",
			Message: session.ErrTransport.Error(),
		}}
	case errors.Is(err, session.ErrBadResponse):
		return http.StatusBadGateway, ErrorResponse{Error: APIError{
			Code:    "bad_gateway",
			Message: session.ErrBadResponse.Error(),
		}}
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized, ErrorResponse{Error: APIError{
			Code:     "unauthenticated",
			Message:  session.ErrNoSession.Error(),
			Redirect: LoginPath,
		}}
	}

	return internal()
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func internal() (int, ErrorResponse) {
	return http.StatusInternalServerError, ErrorResponse{Error: APIError{
		Code:    "internal",
		Message: "internal error",
	}}
}

// codeFromStatus — FE-код для отказа бэкенда.
func codeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "permission_denied"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "already_exists"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	}

	if status >= 500 {
		return "upstream_error"
	}

	return "rejected"
}
