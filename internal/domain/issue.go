package domain

import "time"

// IssueStatus enumerates lifecycle states for department issues.
type IssueStatus string

const (
	IssueStatusOpen      IssueStatus = "open"
	IssueStatusAssigned  IssueStatus = "assigned"
	IssueStatusSolved    IssueStatus = "solved"
	IssueStatusNotSolved IssueStatus = "not_solved"
)

// ActiveStatuses are the states that occupy a sender's single issue slot.
var ActiveStatuses = []IssueStatus{IssueStatusOpen, IssueStatusAssigned}

var allowedTransitions = map[IssueStatus][]IssueStatus{
	IssueStatusOpen:      {IssueStatusAssigned},
	IssueStatusAssigned:  {IssueStatusSolved, IssueStatusNotSolved},
	IssueStatusSolved:    {},
	IssueStatusNotSolved: {},
}

// Valid reports whether s is a known status.
func (s IssueStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Active reports whether the issue is still open or assigned.
func (s IssueStatus) Active() bool {
	switch s {
	case IssueStatusOpen, IssueStatusAssigned:
		return true
	case IssueStatusSolved, IssueStatusNotSolved:
		return false
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s IssueStatus) Terminal() bool {
	switch s {
	case IssueStatusSolved, IssueStatusNotSolved:
		return true
	case IssueStatusOpen, IssueStatusAssigned:
		return false
	}
	return false
}

// CanTransition reports whether next is reachable from s in one step.
func (s IssueStatus) CanTransition(next IssueStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// SenderType records who opened an issue or wrote a thread message.
type SenderType string

const (
	SenderStudent SenderType = "student"
	SenderStaff   SenderType = "staff"
)

// Issue is one help request in a department portal.
type Issue struct {
	ID                string      `json:"id"`
	Department        Department  `json:"department"`
	SenderID          string      `json:"senderId"`
	SenderName        string      `json:"senderName"`
	SenderType        SenderType  `json:"senderType"`
	Text              string      `json:"text"`
	Status            IssueStatus `json:"status"`
	AssignedStaff     *string     `json:"assignedStaff"`
	AssignedStaffName string      `json:"assignedStaffName,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	AcceptedAt        *time.Time  `json:"acceptedAt"`
	SolvedAt          *time.Time  `json:"solvedAt"`
	FailedAt          *time.Time  `json:"failedAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// AssignedTo reports whether staffID holds the issue.
func (i *Issue) AssignedTo(staffID string) bool {
	return i.AssignedStaff != nil && *i.AssignedStaff == staffID
}

// Deadline returns the instant the resolution window closes, if accepted.
func (i *Issue) Deadline(window time.Duration) (time.Time, bool) {
	if i.AcceptedAt == nil {
		return time.Time{}, false
	}
	return i.AcceptedAt.Add(window), true
}

// Overdue reports whether an assigned issue has outlived the resolution window.
func (i *Issue) Overdue(now time.Time, window time.Duration) bool {
	if i.Status != IssueStatusAssigned {
		return false
	}
	deadline, ok := i.Deadline(window)
	return ok && !now.Before(deadline)
}

// ResolvedAt returns the terminal transition instant.
func (i *Issue) ResolvedAt() *time.Time {
	switch i.Status {
	case IssueStatusSolved:
		return i.SolvedAt
	case IssueStatusNotSolved:
		return i.FailedAt
	case IssueStatusOpen, IssueStatusAssigned:
		return nil
	}
	return nil
}

// ThreadMessage is a chat line appended to an assigned issue.
type ThreadMessage struct {
	ID         string     `json:"id"`
	IssueID    string     `json:"issueId"`
	SenderID   string     `json:"senderId"`
	SenderName string     `json:"senderName"`
	SenderType SenderType `json:"senderType"`
	Text       string     `json:"text"`
	CreatedAt  time.Time  `json:"createdAt"`
}
