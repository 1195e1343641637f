package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/events"
	"github.com/campushub/helpdesk-service/internal/repository"
	apperrors "github.com/campushub/helpdesk-service/pkg/util/errorutil"
)

const rollupDays = 7

// staffRoles are the roles that carry performance metrics.
var staffRoles = []domain.Role{domain.RoleStaff, domain.RoleManager}

// PerformanceService maintains the cached per-staff metrics and the dashboard roll-up.
type PerformanceService struct {
	users      repository.UserRepository
	issues     repository.IssueRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// PerformanceDependencies bundles collaborators for the performance service.
type PerformanceDependencies struct {
	UserRepo   repository.UserRepository
	IssueRepo  repository.IssueRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// DailyPerformance is one point of the 7-day series.
type DailyPerformance struct {
	Date        string `json:"date"`
	Total       int    `json:"total"`
	Solved      int    `json:"solved"`
	Performance int    `json:"performance"`
}

// StaffPerformance is one row of the per-staff breakdown.
type StaffPerformance struct {
	ID                 string                    `json:"id"`
	FullName           string                    `json:"fullName"`
	Email              string                    `json:"email"`
	Role               domain.Role               `json:"role"`
	IsOnline           bool                      `json:"isOnline"`
	PerformanceMetrics domain.PerformanceMetrics `json:"performanceMetrics"`
}

// DepartmentRollup is the manager dashboard view of one department.
type DepartmentRollup struct {
	Department         domain.Department  `json:"department"`
	TotalStaff         int                `json:"totalStaff"`
	TotalIssues        int                `json:"totalIssues"`
	SolvedIssues       int                `json:"solvedIssues"`
	UnsolvedIssues     int                `json:"unsolvedIssues"`
	ActiveIssues       int                `json:"activeIssues"`
	PerformanceHistory []DailyPerformance `json:"performanceHistory"`
	StaffList          []StaffPerformance `json:"staffList"`
	GeneratedAt        time.Time          `json:"generatedAt"`
}

// NewPerformanceService constructs the service.
func NewPerformanceService(deps PerformanceDependencies) *PerformanceService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &PerformanceService{
		users:      deps.UserRepo,
		issues:     deps.IssueRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// OnResolved records one terminal issue against the staff member's cached metrics.
func (s *PerformanceService) OnResolved(ctx context.Context, staffID string, solved bool) (domain.PerformanceMetrics, error) {
	metrics, err := s.users.RecordResolution(ctx, staffID, solved)
	if err != nil {
		return domain.PerformanceMetrics{}, apperrors.MapError(err)
	}
	s.logger.Info("performance recorded",
		zap.String("staff_id", staffID),
		zap.Bool("solved", solved),
		zap.Int("total", metrics.TotalIssues),
		zap.Int("percentage", metrics.Percentage))
	return metrics, nil
}

// ResetAll zeroes metrics for every user holding one of roles (staff and managers by default).
func (s *PerformanceService) ResetAll(ctx context.Context, actor *domain.User, roles []domain.Role) (int64, error) {
	if err := requireManager(actor); err != nil {
		return 0, err
	}
	if len(roles) == 0 {
		roles = staffRoles
	}
	for _, role := range roles {
		if !role.Valid() {
			return 0, apperrors.NewValidationError("invalid role", map[string]any{"role": role})
		}
	}

	affected, err := s.users.ResetMetrics(ctx, roles, s.now().UTC())
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	s.logger.Info("performance reset", zap.String("actor_id", actor.ID), zap.Int64("affected", affected))
	publish(ctx, s.dispatcher, events.Event{
		Type:    events.EventPerformanceReset,
		Actor:   actorOf(actor),
		Payload: events.PerformanceResetPayload{Roles: roles, Affected: affected},
	}, s.now)
	return affected, nil
}

// DepartmentRollup builds the dashboard aggregate for dept.
func (s *PerformanceService) DepartmentRollup(ctx context.Context, actor *domain.User, dept domain.Department) (*DepartmentRollup, error) {
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if !dept.Valid() {
		return nil, apperrors.NewValidationError("unknown department", map[string]any{"department": dept})
	}

	counts, err := s.issues.CountByDepartment(ctx, dept)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -(rollupDays - 1))
	daily, err := s.issues.DailyCounts(ctx, dept, from, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	staff, err := s.users.List(ctx, repository.UserFilter{Department: &dept, Roles: staffRoles})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	return &DepartmentRollup{
		Department:         dept,
		TotalStaff:         len(staff),
		TotalIssues:        counts.Total,
		SolvedIssues:       counts.Solved,
		UnsolvedIssues:     counts.NotSolved,
		ActiveIssues:       counts.Open + counts.Assigned,
		PerformanceHistory: fillSeries(from, daily),
		StaffList:          rankStaff(staff),
		GeneratedAt:        now,
	}, nil
}

// RecomputeFromLedger rebuilds one staff member's cached metrics from terminal
// issues resolved after their last reset.
func (s *PerformanceService) RecomputeFromLedger(ctx context.Context, staffID string) (domain.PerformanceMetrics, error) {
	user, err := s.users.GetByID(ctx, staffID)
	if err != nil {
		return domain.PerformanceMetrics{}, apperrors.MapError(err)
	}
	total, solved, err := s.issues.CountResolvedForStaff(ctx, staffID, user.MetricsResetAt)
	if err != nil {
		return domain.PerformanceMetrics{}, apperrors.MapError(err)
	}
	metrics := domain.NewPerformanceMetrics(total, solved)
	if metrics == user.PerformanceMetrics {
		return metrics, nil
	}
	if err := s.users.SetMetrics(ctx, staffID, metrics); err != nil {
		return domain.PerformanceMetrics{}, apperrors.MapError(err)
	}
	s.logger.Warn("performance metrics drift corrected",
		zap.String("staff_id", staffID),
		zap.Any("cached", user.PerformanceMetrics),
		zap.Any("ledger", metrics))
	return metrics, nil
}

// ReconcileAll recomputes every staff member and reports how many were examined.
func (s *PerformanceService) ReconcileAll(ctx context.Context, actor *domain.User) (int, error) {
	if err := requireManager(actor); err != nil {
		return 0, err
	}
	staff, err := s.users.List(ctx, repository.UserFilter{Roles: staffRoles})
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	for _, member := range staff {
		if _, err := s.RecomputeFromLedger(ctx, member.ID); err != nil {
			return 0, err
		}
	}
	return len(staff), nil
}

func fillSeries(from time.Time, daily []repository.DailyCount) []DailyPerformance {
	byDay := make(map[string]repository.DailyCount, len(daily))
	for _, day := range daily {
		byDay[day.Day.Format(time.DateOnly)] = day
	}
	series := make([]DailyPerformance, 0, rollupDays)
	for i := 0; i < rollupDays; i++ {
		date := from.AddDate(0, 0, i).Format(time.DateOnly)
		day := byDay[date]
		series = append(series, DailyPerformance{
			Date:        date,
			Total:       day.Total,
			Solved:      day.Solved,
			Performance: domain.Percentage(day.Solved, day.Total),
		})
	}
	return series
}

func rankStaff(staff []domain.User) []StaffPerformance {
	ranked := make([]StaffPerformance, 0, len(staff))
	for _, member := range staff {
		ranked = append(ranked, StaffPerformance{
			ID:                 member.ID,
			FullName:           member.FullName,
			Email:              member.Email,
			Role:               member.Role,
			IsOnline:           member.IsOnline,
			PerformanceMetrics: member.PerformanceMetrics,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PerformanceMetrics.Percentage > ranked[j].PerformanceMetrics.Percentage
	})
	return ranked
}

func requireManager(actor *domain.User) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if actor.Role != domain.RoleManager {
		return apperrors.NewForbidden("manager role required")
	}
	return nil
}
