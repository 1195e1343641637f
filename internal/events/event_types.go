package events

import (
	"time"

	"github.com/campushub/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated     EventType = "issue_created"
	EventIssueReplied     EventType = "issue_replied"
	EventIssueAccepted    EventType = "issue_accepted"
	EventIssueSolved      EventType = "issue_solved"
	EventIssueFailed      EventType = "issue_failed"
	EventPerformanceReset EventType = "performance_reset"
	EventDirectMessage    EventType = "direct_message"
)

// AllEventTypes lists every type a subscriber may want to mirror. Direct
// messages are private and stay off the broker.
var AllEventTypes = []EventType{
	EventIssueCreated,
	EventIssueReplied,
	EventIssueAccepted,
	EventIssueSolved,
	EventIssueFailed,
	EventPerformanceReset,
}

// Actor identifies who caused an event. A nil UserID means the expiry sweep.
type Actor struct {
	UserID *string     `json:"userId,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	IssueID    string            `json:"issueId,omitempty"`
	Department domain.Department `json:"department,omitempty"`
	Actor      Actor             `json:"actor"`
	Timestamp  time.Time         `json:"timestamp"`
	Payload    interface{}       `json:"payload"`
}

// IssuePayload carries the issue snapshot after a create or accept.
type IssuePayload struct {
	Issue domain.Issue `json:"issue"`
}

// ReplyPayload carries a new thread line and the issue it belongs to.
type ReplyPayload struct {
	Issue   domain.Issue         `json:"issue"`
	Message domain.ThreadMessage `json:"message"`
}

// ResolutionPayload carries a terminal issue and the staff member's refreshed metrics.
type ResolutionPayload struct {
	Issue   domain.Issue              `json:"issue"`
	Metrics domain.PerformanceMetrics `json:"metrics"`
	Expired bool                      `json:"expired"`
}

// PerformanceResetPayload describes a bulk metrics reset.
type PerformanceResetPayload struct {
	Roles    []domain.Role `json:"roles"`
	Affected int64         `json:"affected"`
}

// DirectMessagePayload carries a private message for its receiver.
type DirectMessagePayload struct {
	Message domain.DirectMessage `json:"message"`
}
