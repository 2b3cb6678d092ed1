package models

import "encoding/json"

// User — профиль пользователя в том виде, в каком его отдаёт бэкенд
// (ответ логина и GET /api/user). Даты приходят строками ISO-8601 без зоны
// и хранятся как есть.
type User struct {
	ID        int64  `json:"id,omitempty"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	LastLogin string `json:"last_login,omitempty"`
}

// UserFromJSON разбирает сохранённый профиль. Пустой ввод — (nil, nil).
func UserFromJSON(raw json.RawMessage) (*User, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}

	return &u, nil
}
