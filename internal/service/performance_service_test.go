package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/helpdesk-service/internal/domain"
	apperrors "github.com/campushub/helpdesk-service/pkg/util/errorutil"
)

func TestResetAllRequiresManager(t *testing.T) {
	h := newHarness(t)
	staff := h.staff(t, "b", domain.DepartmentIT)

	_, err := h.performance.ResetAll(context.Background(), staff, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.performance.ResetAll(context.Background(), nil, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	manager := h.manager(t, "m", domain.DepartmentIT)
	_, err = h.performance.ResetAll(context.Background(), manager, []domain.Role{"janitor"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestDepartmentRollup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	it := domain.DepartmentIT
	manager := h.manager(t, "m", domain.DepartmentEU)
	strong := h.staff(t, "strong", it)
	weak := h.staff(t, "weak", it)
	h.staff(t, "elsewhere", domain.DepartmentEU)

	// two days ago: one solved by strong
	h.clock.Advance(-48 * time.Hour)
	first := h.open(t, h.student(t, "a"), it, "one")
	_, err := h.lifecycle.Accept(ctx, strong, first.ID)
	require.NoError(t, err)
	_, err = h.lifecycle.Solve(ctx, strong, first.ID)
	require.NoError(t, err)

	// today: one failed by weak, one still open
	h.clock.Advance(48 * time.Hour)
	second := h.open(t, h.student(t, "b"), it, "two")
	_, err = h.lifecycle.Accept(ctx, weak, second.ID)
	require.NoError(t, err)
	_, err = h.lifecycle.MarkNotSolved(ctx, weak, second.ID)
	require.NoError(t, err)
	h.open(t, h.student(t, "c"), it, "three")

	rollup, err := h.performance.DepartmentRollup(ctx, manager, it)
	require.NoError(t, err)

	assert.Equal(t, it, rollup.Department)
	assert.Equal(t, 2, rollup.TotalStaff)
	assert.Equal(t, 3, rollup.TotalIssues)
	assert.Equal(t, 1, rollup.SolvedIssues)
	assert.Equal(t, 1, rollup.UnsolvedIssues)
	assert.Equal(t, 1, rollup.ActiveIssues)

	require.Len(t, rollup.PerformanceHistory, 7)
	assert.Equal(t, "2024-04-26", rollup.PerformanceHistory[0].Date)
	today := rollup.PerformanceHistory[6]
	assert.Equal(t, "2024-05-02", today.Date)
	assert.Equal(t, 2, today.Total)
	assert.Equal(t, 0, today.Solved)
	twoDaysAgo := rollup.PerformanceHistory[4]
	assert.Equal(t, DailyPerformance{Date: "2024-04-30", Total: 1, Solved: 1, Performance: 100}, twoDaysAgo)

	require.Len(t, rollup.StaffList, 2)
	assert.Equal(t, strong.ID, rollup.StaffList[0].ID)
	assert.Equal(t, 100, rollup.StaffList[0].PerformanceMetrics.Percentage)
	assert.Equal(t, weak.ID, rollup.StaffList[1].ID)

	_, err = h.performance.DepartmentRollup(ctx, strong, it)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestRecomputeFromLedgerCorrectsDrift(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := h.staff(t, "b", domain.DepartmentIT)
	manager := h.manager(t, "m", domain.DepartmentIT)

	issue := h.open(t, h.student(t, "a"), domain.DepartmentIT, "one")
	_, err := h.lifecycle.Accept(ctx, staff, issue.ID)
	require.NoError(t, err)
	_, err = h.lifecycle.Solve(ctx, staff, issue.ID)
	require.NoError(t, err)

	require.NoError(t, h.users.SetMetrics(ctx, staff.ID, domain.PerformanceMetrics{TotalIssues: 9, SolvedIssues: 1, Percentage: 11}))

	examined, err := h.performance.ReconcileAll(ctx, manager)
	require.NoError(t, err)
	assert.Equal(t, 2, examined)
	assert.Equal(t, domain.PerformanceMetrics{TotalIssues: 1, SolvedIssues: 1, Percentage: 100}, h.metrics(t, staff.ID))

	// resolutions before a reset no longer count
	h.clock.Advance(time.Minute)
	_, err = h.performance.ResetAll(ctx, manager, nil)
	require.NoError(t, err)
	metrics, err := h.performance.RecomputeFromLedger(ctx, staff.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PerformanceMetrics{}, metrics)
}
