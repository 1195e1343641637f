package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/campushub/helpdesk-service/internal/api/dto"
	"github.com/campushub/helpdesk-service/internal/auth"
	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/service"
)

// AuthHandler exposes signup, login and session endpoints.
type AuthHandler struct {
	service      *service.AuthService
	validator    *dto.Validator
	secureCookie bool
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, validator *dto.Validator, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: authService, validator: validator, secureCookie: secureCookie}
}

// Signup POST /auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}
	result, err := h.service.Signup(c.UserContext(), service.SignupInput{
		FullName:   req.FullName,
		Email:      req.Email,
		Password:   req.Password,
		Role:       domain.Role(req.Role),
		Department: req.ParsedDepartment(),
	})
	if err != nil {
		return err
	}
	h.setCookie(c, result.Token, result.ExpiresAt)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": authResponse(result)})
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}
	result, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	h.setCookie(c, result.Token, result.ExpiresAt)
	return c.JSON(fiber.Map{"data": authResponse(result)})
}

// Logout POST /auth/logout clears the session cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.ClearCookie(auth.TokenCookie)
	return c.SendStatus(fiber.StatusNoContent)
}

// Check GET /auth/check.
func (h *AuthHandler) Check(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	fresh, err := h.service.Check(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(fresh)})
}

// UpdateProfile PUT /auth/update-profile.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}
	updated, err := h.service.UpdateProfile(c.UserContext(), user.ID, service.ProfileInput{
		FullName:   req.FullName,
		ProfilePic: req.ProfilePic,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(updated)})
}

// ChangePassword PUT /auth/change-password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}
	if err := h.service.ChangePassword(c.UserContext(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func authResponse(result *service.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      dto.NewUserResponse(result.User),
	}
}
