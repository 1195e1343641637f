package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campushub/helpdesk-service/internal/api/dto"
	"github.com/campushub/helpdesk-service/internal/service"
)

// DepartmentMessagesHandler serves the issue lifecycle endpoints.
type DepartmentMessagesHandler struct {
	lifecycle   *service.LifecycleService
	performance *service.PerformanceService
	validator   *dto.Validator
}

// NewDepartmentMessagesHandler constructs handler.
func NewDepartmentMessagesHandler(lifecycle *service.LifecycleService, performance *service.PerformanceService, validator *dto.Validator) *DepartmentMessagesHandler {
	return &DepartmentMessagesHandler{lifecycle: lifecycle, performance: performance, validator: validator}
}

// Feed GET /department-messages/:department.
func (h *DepartmentMessagesHandler) Feed(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	dept, err := departmentParam(c)
	if err != nil {
		return err
	}
	issues, err := h.lifecycle.Feed(c.UserContext(), user, dept)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FeedResponse{
		Department:        dept,
		Issues:            issues,
		ResolutionSeconds: int(h.lifecycle.ResolutionWindow().Seconds()),
	}})
}

// Send POST /department-messages/send/:department.
func (h *DepartmentMessagesHandler) Send(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	dept, err := departmentParam(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}
	result, err := h.lifecycle.Send(c.UserContext(), user, dept, req.Text)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.SendMessageResponse{
		Issue:   *result.Issue,
		Message: result.Message,
		Created: result.Created,
	}})
}

// Accept POST /department-messages/accept/:messageId.
func (h *DepartmentMessagesHandler) Accept(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	issue, err := h.lifecycle.Accept(c.UserContext(), user, c.Params("messageId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issue})
}

// Solve POST /department-messages/solve/:messageId.
func (h *DepartmentMessagesHandler) Solve(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	issue, err := h.lifecycle.Solve(c.UserContext(), user, c.Params("messageId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issue})
}

// NotSolved POST /department-messages/not-solved/:messageId.
func (h *DepartmentMessagesHandler) NotSolved(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	issue, err := h.lifecycle.MarkNotSolved(c.UserContext(), user, c.Params("messageId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issue})
}

// Thread GET /department-messages/thread/:messageId.
func (h *DepartmentMessagesHandler) Thread(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	thread, err := h.lifecycle.Thread(c.UserContext(), user, c.Params("messageId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": thread})
}

// ResetPerformance POST /department-messages/reset-performance.
func (h *DepartmentMessagesHandler) ResetPerformance(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ResetPerformanceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}
	affected, err := h.performance.ResetAll(c.UserContext(), user, req.RoleList())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ResetPerformanceResponse{Affected: affected}})
}
