package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/campushub/helpdesk-service/internal/auth"
	"github.com/campushub/helpdesk-service/internal/domain"
	apperrors "github.com/campushub/helpdesk-service/pkg/util/errorutil"
)

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	user := auth.UserFromContext(c)
	if user == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return user, nil
}

// departmentParam accepts the short code or the URL-encoded portal title.
func departmentParam(c *fiber.Ctx) (domain.Department, error) {
	raw := c.Params("department")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	dept, ok := domain.ParseDepartment(raw)
	if !ok {
		return "", apperrors.NewValidationError("unknown department", map[string]any{"department": raw})
	}
	return dept, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}
