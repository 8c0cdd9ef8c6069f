package vault

import "time"

// Token is the record stored for a user after a successful authorization.
type Token struct {
	User          string `json:"user"`
	Authenticated bool   `json:"authenticated"`
	Timestamp     string `json:"timestamp"` // RFC 3339
}

// NewToken returns an authenticated token for user stamped with now.
func NewToken(user string, now time.Time) Token {
	return Token{
		User:          user,
		Authenticated: true,
		Timestamp:     now.Format(time.RFC3339),
	}
}

// UserState describes a known user directory.
type UserState struct {
	Name          string `json:"name"`
	Authenticated bool   `json:"authenticated"`
}
