// Модели запросов/ответов к auth-эндпойнтам бэкенда и результаты операций сессии.
package models

import "encoding/json"

type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse — успешный ответ логина. User опционален и хранится «сырым»,
// чтобы не терять поля, о которых клиент не знает.
type LoginResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         json.RawMessage `json:"user,omitempty"`
}

func (r LoginResponse) Pair() TokenPair {
	return TokenPair{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

// RegisterInput — данные формы регистрации (ConfirmPassword на бэкенд не уходит).
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"new_password"`
}

// MessageResponse — типовое тело ответов бэкенда ({status?, message?}).
type MessageResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// LoginResult — итог успешного входа.
type LoginResult struct {
	User *User `json:"user,omitempty"`
	// Remembered — имя пользователя сохранено ("remember me").
	Remembered bool `json:"remembered"`
}

// Ack — итог операций без полезной нагрузки (register/logout/change_password).
// Message — сообщение бэкенда, если оно было.
type Ack struct {
	Message string `json:"message,omitempty"`
	// ShowLogin — UI должен показать форму входа (успешная регистрация).
	ShowLogin bool `json:"show_login,omitempty"`
}
