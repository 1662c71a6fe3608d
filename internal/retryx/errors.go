package retryx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrTimeout is produced when an attempt outlives Policy.Timeout.
	ErrTimeout = errors.New("operation timed out")

	// ErrPanic wraps a panic recovered from an operation.
	ErrPanic = errors.New("operation panicked")
)

// Class is the retry-relevant category of a failure.
type Class int

const (
	ClassNone Class = iota
	ClassTimeout
	ClassNetwork
	ClassOther
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTimeout:
		return "timeout"
	case ClassNetwork:
		return "network"
	default:
		return "other"
	}
}

// transport-failure vocabulary matched against lower-cased messages.
var networkVocabulary = []string{
	"network",
	"fetch",
	"eof",
	"connection refused",
	"connection reset",
	"no such host",
	"broken pipe",
	"server misbehaving",
}

// Classify sorts err into timeout, network or other.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	// url.Error carries the request URL in its message; judge the cause only,
	// so TLS and bad-scheme failures stay permanent.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		if urlErr.Timeout() {
			return ClassTimeout
		}
		return Classify(urlErr.Err)
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTimeout
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return ClassTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return ClassNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ClassNetwork
	}
	for _, word := range networkVocabulary {
		if strings.Contains(msg, word) {
			return ClassNetwork
		}
	}
	return ClassOther
}

// Error is the failure returned once Execute gives up.
type Error struct {
	Class    Class
	Attempts int
	Duration time.Duration
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failure after %d attempt(s) in %s: %v", e.Class, e.Attempts, e.Duration.Round(time.Millisecond), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
