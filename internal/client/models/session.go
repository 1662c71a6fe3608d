// Package models defines the client-side identity, session and profile
// types shared by the coordinator, its adapters and the CLI.
package models

import (
	"maps"
	"time"
)

// User is the identity provider's record of an account.
type User struct {
	ID        string
	Email     string
	Metadata  map[string]any
	CreatedAt time.Time
}

// MetadataString returns metadata[key] when it is a non-empty string.
func (u *User) MetadataString(key string) string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	s, _ := u.Metadata[key].(string)
	return s
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Metadata = maps.Clone(u.Metadata)
	return &c
}

// Session is an opaque identity handle: who is signed in and the tokens that
// prove it. Holders replace sessions wholesale and never edit one in place.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *User
}

// UserID is nil-safe; it returns "" when there is no session or no user.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// Clone returns a deep copy so that callers cannot mutate shared state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.User = s.User.Clone()
	return &c
}

// ExpiresWithin reports whether the access token expires before now+d.
// A zero ExpiresAt never expires.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(s.ExpiresAt)
}

// AuthResponse is the data half of an identity-provider call result.
type AuthResponse struct {
	User    *User
	Session *Session
}
