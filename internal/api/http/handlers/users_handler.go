package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/campushub/helpdesk-service/internal/api/dto"
	apperrors "github.com/campushub/helpdesk-service/pkg/util/errorutil"
)

// OnlineLister reports connected user ids; realtime.Notifier satisfies it.
type OnlineLister interface {
	Online(ctx context.Context) ([]string, error)
}

// UsersHandler serves directory lookups.
type UsersHandler struct {
	presence OnlineLister
}

// NewUsersHandler constructs handler.
func NewUsersHandler(presence OnlineLister) *UsersHandler {
	return &UsersHandler{presence: presence}
}

// Online GET /users/online.
func (h *UsersHandler) Online(c *fiber.Ctx) error {
	ids, err := h.presence.Online(c.UserContext())
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(fiber.Map{"data": dto.OnlineUsersResponse{Users: ids}})
}
