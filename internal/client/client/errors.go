package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cofind/internal/common"
)

var (
	ErrUnavailable  = errors.New("identity service unavailable")
	ErrUnauthorized = common.ErrUnauthorized
	ErrUserExists   = errors.New("user already registered")
	ErrNoSession    = errors.New("no active session")
)

// APIError is a non-2xx answer from the identity service. It unwraps to one
// of the sentinel errors above when the status or code is recognised.
type APIError struct {
	Status  int
	Code    string
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity service: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity service: %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }
