package dto

import (
	"time"

	"github.com/campushub/helpdesk-service/internal/domain"
)

// SendDirectMessageRequest carries a private message; the image is a hosted URL.
type SendDirectMessageRequest struct {
	Text  string `json:"text" validate:"max=4000"`
	Image string `json:"image" validate:"omitempty,url"`
}

// UpdateProfileRequest changes display fields only.
type UpdateProfileRequest struct {
	FullName   *string `json:"fullName" validate:"omitempty,min=2,max=120"`
	ProfilePic *string `json:"profilePic" validate:"omitempty,url"`
}

// ChangePasswordRequest requires the current password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

type DirectMessageResponse struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewDirectMessageResponse(m *domain.DirectMessage) DirectMessageResponse {
	return DirectMessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		CreatedAt:  m.CreatedAt,
	}
}

func NewDirectMessageResponses(msgs []domain.DirectMessage) []DirectMessageResponse {
	out := make([]DirectMessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, NewDirectMessageResponse(&msgs[i]))
	}
	return out
}

// NewUserResponses maps a directory listing.
func NewUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}
