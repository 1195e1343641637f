package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/events"
	"github.com/campushub/helpdesk-service/internal/repository"
	apperrors "github.com/campushub/helpdesk-service/pkg/util/errorutil"
)

func TestLifecycleEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	it := domain.DepartmentIT

	studentA := h.student(t, "a")
	studentD := h.student(t, "d")
	studentE := h.student(t, "e")
	staffB := h.staff(t, "b", it)
	staffC := h.staff(t, "c", it)
	manager := h.manager(t, "m", it)

	// a student gets one active issue per department
	res, err := h.lifecycle.Send(ctx, studentA, it, "printer broken")
	require.NoError(t, err)
	require.True(t, res.Created)
	issueA := res.Issue
	assert.Equal(t, domain.IssueStatusOpen, issueA.Status)

	_, err = h.lifecycle.Send(ctx, studentA, it, "still broken")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyActive))

	// first accept wins, the second sees the issue already taken
	accepted, err := h.lifecycle.Accept(ctx, staffB, issueA.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusAssigned, accepted.Status)
	require.NotNil(t, accepted.AssignedStaff)
	assert.Equal(t, staffB.ID, *accepted.AssignedStaff)

	_, err = h.lifecycle.Accept(ctx, staffC, issueA.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	// solving records the outcome on the staff member
	h.clock.Advance(30 * time.Second)
	solved, err := h.lifecycle.Solve(ctx, staffB, issueA.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusSolved, solved.Status)
	assert.Equal(t, domain.PerformanceMetrics{TotalIssues: 1, SolvedIssues: 1, Percentage: 100}, h.metrics(t, staffB.ID))

	// a terminal assignment frees the slot, an active one does not
	issueD := h.open(t, studentD, it, "wifi down")
	issueE := h.open(t, studentE, it, "vpn")
	_, err = h.lifecycle.Accept(ctx, staffB, issueD.ID)
	require.NoError(t, err)
	_, err = h.lifecycle.Accept(ctx, staffB, issueE.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAlreadyAssigned))

	// the window elapses with no solve
	h.clock.Advance(DefaultResolutionWindow)
	feed, err := h.lifecycle.Feed(ctx, manager, it)
	require.NoError(t, err)
	var expired domain.Issue
	for _, issue := range feed {
		if issue.ID == issueD.ID {
			expired = issue
		}
	}
	assert.Equal(t, domain.IssueStatusNotSolved, expired.Status)
	assert.Equal(t, domain.PerformanceMetrics{TotalIssues: 2, SolvedIssues: 1, Percentage: 50}, h.metrics(t, staffB.ID))

	// a manager resets everyone
	affected, err := h.performance.ResetAll(ctx, manager, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	for _, id := range []string{staffB.ID, staffC.ID, manager.ID} {
		assert.Equal(t, domain.PerformanceMetrics{}, h.metrics(t, id))
	}
}

func TestCreateRequiresTextAndDepartment(t *testing.T) {
	h := newHarness(t)
	student := h.student(t, "a")

	_, err := h.lifecycle.Create(context.Background(), student, domain.DepartmentIT, "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = h.lifecycle.Create(context.Background(), student, domain.Department("Cafeteria"), "hi")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	staff := h.staff(t, "b", domain.DepartmentIT)
	_, err = h.lifecycle.Create(context.Background(), staff, domain.DepartmentIT, "hi")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestSeparateDepartmentsAreSeparateSlots(t *testing.T) {
	h := newHarness(t)
	student := h.student(t, "a")
	h.open(t, student, domain.DepartmentIT, "printer")
	h.open(t, student, domain.DepartmentEU, "exam timetable")
}

func TestAcceptAuthorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.student(t, "a")
	issue := h.open(t, student, domain.DepartmentIT, "printer")

	_, err := h.lifecycle.Accept(ctx, student, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	outsider := h.staff(t, "x", domain.DepartmentEU)
	_, err = h.lifecycle.Accept(ctx, outsider, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	manager := h.manager(t, "m", domain.DepartmentIT)
	_, err = h.lifecycle.Accept(ctx, manager, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.lifecycle.Accept(ctx, h.staff(t, "b", domain.DepartmentIT), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	h := newHarness(t)
	student := h.student(t, "a")
	issue := h.open(t, student, domain.DepartmentIT, "printer")

	const contenders = 6
	staff := make([]*domain.User, contenders)
	for i := range staff {
		staff[i] = h.staff(t, string(rune('b'+i)), domain.DepartmentIT)
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := range staff {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.lifecycle.Accept(context.Background(), staff[i], issue.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState), err.Error())
	}
	assert.Equal(t, 1, wins)
}

func TestSolveRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.student(t, "a")
	staffB := h.staff(t, "b", domain.DepartmentIT)
	staffC := h.staff(t, "c", domain.DepartmentIT)
	issue := h.open(t, student, domain.DepartmentIT, "printer")

	_, err := h.lifecycle.Solve(ctx, staffB, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.lifecycle.Accept(ctx, staffB, issue.ID)
	require.NoError(t, err)

	_, err = h.lifecycle.Solve(ctx, staffC, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.lifecycle.Solve(ctx, staffB, issue.ID)
	require.NoError(t, err)

	_, err = h.lifecycle.Solve(ctx, staffB, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
	assert.Equal(t, 1, h.metrics(t, staffB.ID).TotalIssues)
}

func TestSolveAfterWindowExpiresInstead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.student(t, "a")
	staff := h.staff(t, "b", domain.DepartmentIT)
	issue := h.open(t, student, domain.DepartmentIT, "printer")
	_, err := h.lifecycle.Accept(ctx, staff, issue.ID)
	require.NoError(t, err)

	h.clock.Advance(DefaultResolutionWindow)
	_, err = h.lifecycle.Solve(ctx, staff, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	stored, err := h.store.Issues().GetByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusNotSolved, stored.Status)
	assert.Equal(t, domain.PerformanceMetrics{TotalIssues: 1, SolvedIssues: 0, Percentage: 0}, h.metrics(t, staff.ID))
}

func TestSolveJustBeforeDeadline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.student(t, "a")
	staff := h.staff(t, "b", domain.DepartmentIT)
	issue := h.open(t, student, domain.DepartmentIT, "printer")
	_, err := h.lifecycle.Accept(ctx, staff, issue.ID)
	require.NoError(t, err)

	h.clock.Advance(DefaultResolutionWindow - time.Second)
	solved, err := h.lifecycle.Solve(ctx, staff, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusSolved, solved.Status)
}

func TestMarkNotSolvedActors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.student(t, "a")
	other := h.student(t, "z")
	staff := h.staff(t, "b", domain.DepartmentIT)
	manager := h.manager(t, "m", domain.DepartmentIT)

	issue := h.open(t, student, domain.DepartmentIT, "printer")
	_, err := h.lifecycle.MarkNotSolved(ctx, staff, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.lifecycle.Accept(ctx, staff, issue.ID)
	require.NoError(t, err)

	_, err = h.lifecycle.MarkNotSolved(ctx, other, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	// the owner must wait for the window
	_, err = h.lifecycle.MarkNotSolved(ctx, student, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	failed, err := h.lifecycle.MarkNotSolved(ctx, manager, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusNotSolved, failed.Status)
	assert.Equal(t, domain.PerformanceMetrics{TotalIssues: 1}, h.metrics(t, staff.ID))

	_, err = h.lifecycle.MarkNotSolved(ctx, manager, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
}

func TestOwnerMarksNotSolvedAfterWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.student(t, "a")
	staff := h.staff(t, "b", domain.DepartmentIT)
	issue := h.open(t, student, domain.DepartmentIT, "printer")
	_, err := h.lifecycle.Accept(ctx, staff, issue.ID)
	require.NoError(t, err)

	h.clock.Advance(DefaultResolutionWindow)
	failed, err := h.lifecycle.MarkNotSolved(ctx, student, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusNotSolved, failed.Status)
	assert.Equal(t, 1, h.metrics(t, staff.ID).TotalIssues)

	// a second caller racing the timer does not count twice
	_, err = h.lifecycle.MarkNotSolved(ctx, staff, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
	assert.Equal(t, 1, h.metrics(t, staff.ID).TotalIssues)
}

func TestReplyRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.student(t, "a")
	staff := h.staff(t, "b", domain.DepartmentIT)
	manager := h.manager(t, "m", domain.DepartmentIT)

	_, err := h.lifecycle.Reply(ctx, staff, domain.DepartmentIT, "hello?")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	issue := h.open(t, student, domain.DepartmentIT, "printer")
	_, err = h.lifecycle.Reply(ctx, student, domain.DepartmentIT, "anyone?")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.lifecycle.Accept(ctx, staff, issue.ID)
	require.NoError(t, err)

	res, err := h.lifecycle.Send(ctx, staff, domain.DepartmentIT, "try turning it off and on")
	require.NoError(t, err)
	assert.False(t, res.Created)
	require.NotNil(t, res.Message)
	assert.Equal(t, domain.SenderStaff, res.Message.SenderType)

	res, err = h.lifecycle.Send(ctx, student, domain.DepartmentIT, "that worked")
	require.NoError(t, err)
	assert.Equal(t, issue.ID, res.Issue.ID)

	_, err = h.lifecycle.Send(ctx, manager, domain.DepartmentIT, "hi")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	thread, err := h.lifecycle.Thread(ctx, student, issue.ID)
	require.NoError(t, err)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, "that worked", thread.Messages[1].Text)
}

func TestFeedViewsAndIdempotence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	it := domain.DepartmentIT
	a := h.student(t, "a")
	b := h.student(t, "b")
	staff := h.staff(t, "s", it)
	otherStaff := h.staff(t, "o", it)
	outsider := h.staff(t, "x", domain.DepartmentEU)
	manager := h.manager(t, "m", domain.DepartmentEU)

	issueA := h.open(t, a, it, "one")
	h.clock.Advance(time.Second)
	issueB := h.open(t, b, it, "two")
	_, err := h.lifecycle.Accept(ctx, otherStaff, issueB.ID)
	require.NoError(t, err)

	mine, err := h.lifecycle.Feed(ctx, a, it)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, issueA.ID, mine[0].ID)

	queue, err := h.lifecycle.Feed(ctx, staff, it)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, issueA.ID, queue[0].ID)

	_, err = h.lifecycle.Feed(ctx, outsider, it)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	first, err := h.lifecycle.Feed(ctx, manager, it)
	require.NoError(t, err)
	second, err := h.lifecycle.Feed(ctx, manager, it)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, issueA.ID, first[0].ID)

	empty, err := h.lifecycle.Feed(ctx, manager, domain.DepartmentCR)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestExpireOverdueIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.student(t, "a")
	staff := h.staff(t, "b", domain.DepartmentIT)
	issue := h.open(t, student, domain.DepartmentIT, "printer")
	_, err := h.lifecycle.Accept(ctx, staff, issue.ID)
	require.NoError(t, err)

	n, err := h.lifecycle.ExpireOverdue(ctx, repository.ExpireFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(DefaultResolutionWindow)
	n, err = h.lifecycle.ExpireOverdue(ctx, repository.ExpireFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = h.lifecycle.ExpireOverdue(ctx, repository.ExpireFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, h.metrics(t, staff.ID).TotalIssues)

	thread, err := h.lifecycle.Thread(ctx, student, issue.ID)
	require.NoError(t, err)
	require.Len(t, thread.History, 2)
	assert.Equal(t, domain.ReasonAccepted, thread.History[0].Reason)
	assert.Equal(t, domain.ReasonExpired, thread.History[1].Reason)
	assert.Nil(t, thread.History[1].ActorID)
	assert.Nil(t, thread.Deadline)
}

func TestExpiredStaffCanAcceptAgain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	staff := h.staff(t, "b", domain.DepartmentIT)
	first := h.open(t, h.student(t, "a"), domain.DepartmentIT, "one")
	second := h.open(t, h.student(t, "c"), domain.DepartmentIT, "two")

	_, err := h.lifecycle.Accept(ctx, staff, first.ID)
	require.NoError(t, err)
	h.clock.Advance(DefaultResolutionWindow)

	accepted, err := h.lifecycle.Accept(ctx, staff, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusAssigned, accepted.Status)

	stored, err := h.store.Issues().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusNotSolved, stored.Status)
}

func TestThreadVisibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.student(t, "a")
	staff := h.staff(t, "b", domain.DepartmentIT)
	stranger := h.staff(t, "c", domain.DepartmentIT)
	manager := h.manager(t, "m", domain.DepartmentEU)
	issue := h.open(t, student, domain.DepartmentIT, "printer")
	_, err := h.lifecycle.Accept(ctx, staff, issue.ID)
	require.NoError(t, err)

	thread, err := h.lifecycle.Thread(ctx, staff, issue.ID)
	require.NoError(t, err)
	require.NotNil(t, thread.Deadline)
	assert.Equal(t, h.clock.Now().Add(DefaultResolutionWindow), *thread.Deadline)

	_, err = h.lifecycle.Thread(ctx, manager, issue.ID)
	require.NoError(t, err)

	_, err = h.lifecycle.Thread(ctx, stranger, issue.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestEventsAndTransitionsRecorded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	student := h.student(t, "a")
	staff := h.staff(t, "b", domain.DepartmentIT)
	issue := h.open(t, student, domain.DepartmentIT, "printer")
	_, err := h.lifecycle.Accept(ctx, staff, issue.ID)
	require.NoError(t, err)
	_, err = h.lifecycle.Send(ctx, student, domain.DepartmentIT, "thanks")
	require.NoError(t, err)
	_, err = h.lifecycle.Solve(ctx, staff, issue.ID)
	require.NoError(t, err)

	assert.Equal(t, []events.EventType{
		events.EventIssueCreated,
		events.EventIssueAccepted,
		events.EventIssueReplied,
		events.EventIssueSolved,
	}, h.captured.types())
	assert.Equal(t, []string{"create/IT", "accept/IT", "solved/IT"}, h.recorder.transitions)

	last := h.captured.events[len(h.captured.events)-1]
	payload, ok := last.Payload.(events.ResolutionPayload)
	require.True(t, ok)
	assert.Equal(t, 100, payload.Metrics.Percentage)
	assert.False(t, payload.Expired)
}
