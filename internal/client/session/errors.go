package session

import "errors"

var (
	ErrNotConfigured   = errors.New("identity provider not configured")
	ErrInvalidUsername = errors.New("invalid username or email")
	ErrProviderPanic   = errors.New("identity provider panicked")
)
