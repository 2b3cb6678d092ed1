// redact маскирует чувствительные значения перед записью в лог.
package redact

import "strings"

// Token оставляет только последние 4 символа токена: "[REDACTED_TOKEN]…abcd".
// Короткие и пустые токены маскируются целиком.
func Token(tok string) string {
	r := []rune(tok)
	if len(r) <= 8 {
		return "[REDACTED_TOKEN]"
	}

	return "[REDACTED_TOKEN]…" + string(r[len(r)-4:])
}

// Username показывает первые два символа имени.
func Username(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= 2 {
		return "***"
	}

	return string(r[:2]) + "***"
}

// Email маскирует локальную часть адреса, домен оставляет как есть.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	return Username(parts[0]) + "@" + parts[1]
}

func Password() string { return "[REDACTED_PASSWORD]" }
