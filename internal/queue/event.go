// Package queue defines message payloads exchanged over the message broker
// plus the publisher and audit consumer for the user-event stream.
package queue

// QueueName is the durable queue carrying user domain events.
const QueueName = "user.events"

// Event types carried in the Type field.
const (
	TypeUserCreated     = "user.created"
	TypePasswordChanged = "user.password_changed"
)

// UserEvent is published when a user account changes in a way external
// subscribers care about. It carries enough information for downstream
// consumers to log, notify, or trigger analytics without querying the
// primary database.
type UserEvent struct {
	Type       string  `json:"type"`
	UserID     uint64  `json:"user_id"`
	Email      string  `json:"email,omitempty"`
	Username   *string `json:"username,omitempty"`
	OccurredAt string  `json:"occurred_at"`
}
