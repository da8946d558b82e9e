package models

import "time"

// Session is the logged-in principal. The token is opaque to the backend,
// which never checks it: identity is asserted, not verified.
type Session struct {
	User     User      `json:"user"`
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

func (s Session) Valid() bool {
	return s.User.Username != "" && s.Token != ""
}
