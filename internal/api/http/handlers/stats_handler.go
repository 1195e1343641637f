package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/campushub/helpdesk-service/internal/api/dto"
	"github.com/campushub/helpdesk-service/internal/report"
	"github.com/campushub/helpdesk-service/internal/service"
	apperrors "github.com/campushub/helpdesk-service/pkg/util/errorutil"
)

// StatsHandler serves the manager dashboard.
type StatsHandler struct {
	performance *service.PerformanceService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(performance *service.PerformanceService) *StatsHandler {
	return &StatsHandler{performance: performance}
}

// Department GET /stats/department/:department.
func (h *StatsHandler) Department(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	dept, err := departmentParam(c)
	if err != nil {
		return err
	}
	rollup, err := h.performance.DepartmentRollup(c.UserContext(), user, dept)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rollup})
}

// Export GET /stats/department/:department/export.
func (h *StatsHandler) Export(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	dept, err := departmentParam(c)
	if err != nil {
		return err
	}
	rollup, err := h.performance.DepartmentRollup(c.UserContext(), user, dept)
	if err != nil {
		return err
	}
	body, err := report.RollupWorkbook(rollup)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Set(fiber.HeaderContentType, report.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, report.Filename(rollup)))
	return c.Send(body)
}

// Reconcile POST /stats/reconcile.
func (h *StatsHandler) Reconcile(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	examined, err := h.performance.ReconcileAll(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ReconcileResponse{Examined: examined}})
}
