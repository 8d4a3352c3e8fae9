package models

import "time"

// Identity is an authenticated requester resolved from a bearer token.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Session binds an opaque token to an identity until ExpiresAt.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Session) Identity() Identity {
	return Identity{UserID: s.UserID, Email: s.Email}
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// User is a login account configured for the service.
type User struct {
	ID           string `yaml:"id"`
	Username     string `yaml:"username"`
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
}
