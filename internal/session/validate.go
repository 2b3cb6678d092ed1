package session

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pribylovaa/go-weibo-monitor/internal/models"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Violation — одно нарушенное правило формы.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError — ввод отклонён до сетевого вызова.
// Violations содержит все нарушения в порядке полей формы.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string { return e.First() }

// First — сообщение первого нарушенного правила.
func (e *ValidationError) First() string {
	if len(e.Violations) == 0 {
		return "invalid input"
	}

	return e.Violations[0].Message
}

type violations []Violation

func (v *violations) add(field, msg string) {
	*v = append(*v, Violation{Field: field, Message: msg})
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}

	return &ValidationError{Violations: v}
}

func validateLogin(username, password string) error {
	var v violations

	if strings.TrimSpace(username) == "" {
		v.add("username", "username is required")
	}
	if password == "" {
		v.add("password", "password is required")
	}

	return v.err()
}

func validateRegister(in models.RegisterInput) error {
	var v violations

	switch {
	case strings.TrimSpace(in.Username) == "":
		v.add("username", "username is required")
	case utf8.RuneCountInString(in.Username) < minUsernameLen:
		v.add("username", "username must be at least 3 characters")
	}

	switch {
	case strings.TrimSpace(in.Email) == "":
		v.add("email", "email is required")
	case !emailRe.MatchString(in.Email):
		v.add("email", "please enter a valid email address")
	}

	v.checkPassword("password", in.Password)

	if in.ConfirmPassword != in.Password {
		v.add("confirm_password", "passwords do not match")
	}

	return v.err()
}

func validateChangePassword(username, newPassword string) error {
	var v violations

	if strings.TrimSpace(username) == "" {
		v.add("username", "username is required")
	}
	v.checkPassword("new_password", newPassword)

	return v.err()
}

func (v *violations) checkPassword(field, pw string) {
	switch {
	case pw == "":
		v.add(field, "password is required")
	case utf8.RuneCountInString(pw) < minPasswordLen:
		v.add(field, "password must be at least 6 characters")
	}
}
