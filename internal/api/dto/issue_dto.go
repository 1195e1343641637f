package dto

import (
	"github.com/campushub/helpdesk-service/internal/domain"
)

// SendMessageRequest is a department message from any role.
type SendMessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// SendMessageResponse reports whether the message opened an issue or replied to one.
type SendMessageResponse struct {
	Issue   domain.Issue          `json:"issue"`
	Message *domain.ThreadMessage `json:"message,omitempty"`
	Created bool                  `json:"created"`
}

// FeedResponse is the role-filtered department feed.
type FeedResponse struct {
	Department        domain.Department `json:"department"`
	Issues            []domain.Issue    `json:"issues"`
	ResolutionSeconds int               `json:"resolutionWindowSeconds"`
}

// ResetPerformanceRequest optionally narrows which roles are reset.
type ResetPerformanceRequest struct {
	Roles []string `json:"roles" validate:"omitempty,dive,role"`
}

// ResetPerformanceResponse reports how many users were reset.
type ResetPerformanceResponse struct {
	Affected int64 `json:"affected"`
}

// ReconcileResponse reports how many staff members were recomputed.
type ReconcileResponse struct {
	Examined int `json:"examined"`
}

// RoleList converts the request roles.
func (r ResetPerformanceRequest) RoleList() []domain.Role {
	roles := make([]domain.Role, 0, len(r.Roles))
	for _, role := range r.Roles {
		roles = append(roles, domain.Role(role))
	}
	return roles
}
