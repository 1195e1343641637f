package domain

import "time"

// TransitionReason records why a status change happened.
type TransitionReason string

const (
	ReasonAccepted TransitionReason = "accepted"
	ReasonSolved   TransitionReason = "solved"
	ReasonFailed   TransitionReason = "failed"
	ReasonExpired  TransitionReason = "expired"
)

// IssueHistory is an immutable audit entry for one status transition.
// ActorID is nil for transitions driven by the expiry sweep.
type IssueHistory struct {
	ID         string           `json:"id"`
	IssueID    string           `json:"issueId"`
	ActorID    *string          `json:"actorId"`
	FromStatus IssueStatus      `json:"fromStatus"`
	ToStatus   IssueStatus      `json:"toStatus"`
	Reason     TransitionReason `json:"reason"`
	CreatedAt  time.Time        `json:"createdAt"`
}
