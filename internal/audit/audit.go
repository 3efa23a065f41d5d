// Package audit records the append-only compliance trail. Flows collect
// events into a Trail while they run and flush the whole trail once at the
// end; a failed flush is logged but never aborts the flow that produced it.
package audit

import (
	"context"
	"log/slog"
)

const (
	EventLoginSuccess           = "LOGIN_SUCCESS"
	EventLoginFailed            = "LOGIN_FAILED"
	EventLoginFailedLocked      = "LOGIN_FAILED_LOCKED"
	EventRegistrationSuccess    = "REGISTRATION_SUCCESS"
	EventRegistrationFailed     = "REGISTRATION_FAILED"
	EventTokenRefreshSuccess    = "TOKEN_REFRESH_SUCCESS"
	EventTokenRefreshFailed     = "TOKEN_REFRESH_FAILED"
	EventLogoutSuccess          = "LOGOUT_SUCCESS"
	EventPasswordResetInitiated = "PASSWORD_RESET_INITIATED"
	EventAccountLocked          = "ACCOUNT_LOCKED"
)

// Event is a single audit entry before persistence.
type Event struct {
	EventType   string
	Username    string // username or email of the actor
	IP          string
	Description string
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Trail buffers the events emitted by one request flow.
type Trail struct {
	events []Event
}

func NewTrail() *Trail {
	return &Trail{}
}

func (t *Trail) Add(eventType, username, ip, description string) {
	t.events = append(t.events, Event{
		EventType:   eventType,
		Username:    username,
		IP:          ip,
		Description: description,
	})
}

// Events returns the collected events in emission order.
func (t *Trail) Events() []Event {
	return t.events
}

// Flush writes all collected events through the recorder. Persistence
// failures are logged and skipped; the authentication decision that
// produced the trail stands regardless.
func (t *Trail) Flush(ctx context.Context, recorder Recorder) {
	for _, event := range t.events {
		if err := recorder.Record(ctx, event); err != nil {
			slog.Error("Failed to persist audit event",
				"eventType", event.EventType, "username", event.Username, "error", err)
		}
	}
	t.events = nil
}
