package models

// EventKind names an authentication notification.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
	EventUserUpdated    EventKind = "USER_UPDATED"
	EventInitialSession EventKind = "INITIAL_SESSION"
)

// Known reports whether k is one of the kinds above.
func (k EventKind) Known() bool {
	switch k {
	case EventSignedIn, EventSignedOut, EventTokenRefreshed, EventUserUpdated, EventInitialSession:
		return true
	}
	return false
}

// Event is a push notification about authentication state. Session may be
// nil. Build events with NewEvent so the session is copied.
type Event struct {
	Kind    EventKind
	Session *Session
}

func NewEvent(kind EventKind, s *Session) Event {
	return Event{Kind: kind, Session: s.Clone()}
}
