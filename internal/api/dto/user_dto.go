package dto

import (
	"time"

	"github.com/campushub/helpdesk-service/internal/domain"
)

// SignupRequest payload for new directory entries.
type SignupRequest struct {
	FullName   string  `json:"fullName" validate:"required,min=2,max=120"`
	Email      string  `json:"email" validate:"required,email"`
	Password   string  `json:"password" validate:"required,min=6,max=72"`
	Role       string  `json:"role" validate:"omitempty,role"`
	Department *string `json:"department" validate:"omitempty,department"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the public view of a directory entry.
type UserResponse struct {
	ID                 string                    `json:"id"`
	Email              string                    `json:"email"`
	FullName           string                    `json:"fullName"`
	ProfilePic         string                    `json:"profilePic"`
	Role               domain.Role               `json:"role"`
	Department         *domain.Department        `json:"department,omitempty"`
	PerformanceMetrics domain.PerformanceMetrics `json:"performanceMetrics"`
	IsOnline           bool                      `json:"isOnline"`
	LastSeen           time.Time                 `json:"lastSeen"`
	CreatedAt          time.Time                 `json:"createdAt"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// OnlineUsersResponse lists connected user ids.
type OnlineUsersResponse struct {
	Users []string `json:"users"`
}

// NewUserResponse strips private fields from u.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		FullName:           u.FullName,
		ProfilePic:         u.ProfilePic,
		Role:               u.Role,
		Department:         u.Department,
		PerformanceMetrics: u.PerformanceMetrics,
		IsOnline:           u.IsOnline,
		LastSeen:           u.LastSeen,
		CreatedAt:          u.CreatedAt,
	}
}

// ParsedDepartment resolves the optional department field, accepting long titles.
func (r SignupRequest) ParsedDepartment() *domain.Department {
	if r.Department == nil {
		return nil
	}
	dept, ok := domain.ParseDepartment(*r.Department)
	if !ok {
		return nil
	}
	return &dept
}
