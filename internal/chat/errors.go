// Package chat defines the error taxonomy surfaced to requesters. Invalid
// requests are rejected with an explicit error rather than silently dropped,
// and no error here is ever fatal to the process or visible to other
// connections.
package chat

import "fmt"

// ErrNotAuthenticated rejects events arriving before a successful "auth".
var ErrNotAuthenticated = &ValidationError{Field: "auth", Reason: "connection is not authenticated"}

// ValidationError reports a missing or malformed field in an inbound request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation against an unknown message id.
type NotFoundError struct {
	MessageID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("message %q not found", e.MessageID)
}
