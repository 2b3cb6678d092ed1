package models

// TokenPair — текущая пара учётных данных сессии.
//
// Описание:
//   - AccessToken — короткоживущий bearer-токен для запросов к API;
//   - RefreshToken — долгоживущий токен, пригодный только для выпуска новой пары.
//
// Структура токенов слою не важна: строки непрозрачны и никогда не разбираются локально.
// Пара существует только целиком: либо оба токена есть, либо нет ни одного.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Complete сообщает, что оба токена непустые.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}
