package models

// Формы и ответы HTTP-поверхности dashboard-bff (/session/*).

// RegisterForm — форма регистрации UI. confirm_password проверяется локально.
type RegisterForm struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (f RegisterForm) Input() RegisterInput {
	return RegisterInput{
		Username:        f.Username,
		Email:           f.Email,
		Password:        f.Password,
		ConfirmPassword: f.ConfirmPassword,
	}
}

type CheckResponse struct {
	Authenticated bool `json:"authenticated"`
}

// StateResponse — локальное состояние сессии без сетевых вызовов.
type StateResponse struct {
	Authenticated      bool   `json:"authenticated"`
	RememberedUsername string `json:"remembered_username,omitempty"`
	User               *User  `json:"user,omitempty"`
}
