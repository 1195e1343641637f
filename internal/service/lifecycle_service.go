package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/events"
	"github.com/campushub/helpdesk-service/internal/repository"
	apperrors "github.com/campushub/helpdesk-service/pkg/util/errorutil"
)

// DefaultResolutionWindow is how long an accepted issue may stay assigned.
const DefaultResolutionWindow = 120 * time.Second

// LifecycleService runs the department issue state machine and its admission rules.
type LifecycleService struct {
	issues      repository.IssueRepository
	messages    repository.MessageRepository
	history     repository.HistoryRepository
	performance *PerformanceService
	dispatcher  events.Dispatcher
	recorder    TransitionRecorder
	logger      *zap.Logger
	window      time.Duration
	now         func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	IssueRepo        repository.IssueRepository
	MessageRepo      repository.MessageRepository
	HistoryRepo      repository.HistoryRepository
	Performance      *PerformanceService
	Dispatcher       events.Dispatcher
	Recorder         TransitionRecorder
	Logger           *zap.Logger
	ResolutionWindow time.Duration
	Clock            func() time.Time
}

// SendResult reports what a send request turned into.
type SendResult struct {
	Issue   *domain.Issue
	Message *domain.ThreadMessage
	Created bool
}

// Thread is an issue with its reply log and transition history.
type Thread struct {
	Issue    domain.Issue           `json:"issue"`
	Messages []domain.ThreadMessage `json:"messages"`
	History  []domain.IssueHistory  `json:"history"`
	Deadline *time.Time             `json:"deadline,omitempty"`
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	window := deps.ResolutionWindow
	if window <= 0 {
		window = DefaultResolutionWindow
	}
	return &LifecycleService{
		issues:      deps.IssueRepo,
		messages:    deps.MessageRepo,
		history:     deps.HistoryRepo,
		performance: deps.Performance,
		dispatcher:  deps.Dispatcher,
		recorder:    deps.Recorder,
		logger:      logger,
		window:      window,
		now:         clock,
	}
}

// ResolutionWindow returns the configured window.
func (s *LifecycleService) ResolutionWindow() time.Duration {
	return s.window
}

// Send opens a new issue for a student without one, or appends a reply to the
// caller's assigned thread.
func (s *LifecycleService) Send(ctx context.Context, actor *domain.User, dept domain.Department, text string) (*SendResult, error) {
	text, err := validateSend(actor, dept, text)
	if err != nil {
		return nil, err
	}
	if _, err := s.ExpireOverdue(ctx, repository.ExpireFilter{Department: &dept}); err != nil {
		return nil, err
	}

	if actor.Role != domain.RoleStudent {
		return s.Reply(ctx, actor, dept, text)
	}

	active, err := s.issues.FindActiveForSender(ctx, dept, actor.ID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		issue, err := s.Create(ctx, actor, dept, text)
		if err != nil {
			return nil, err
		}
		return &SendResult{Issue: issue, Created: true}, nil
	case err != nil:
		return nil, apperrors.MapError(err)
	case active.Status == domain.IssueStatusOpen:
		return nil, apperrors.NewAlreadyActive(map[string]any{"issueId": active.ID})
	}
	msg, err := s.appendReply(ctx, actor, active, text)
	if err != nil {
		return nil, err
	}
	return &SendResult{Issue: active, Message: msg}, nil
}

// Create opens a new issue for a student.
func (s *LifecycleService) Create(ctx context.Context, actor *domain.User, dept domain.Department, text string) (*domain.Issue, error) {
	text, err := validateSend(actor, dept, text)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleStudent {
		return nil, apperrors.NewForbidden("only students can open issues")
	}

	issue := &domain.Issue{
		Department: dept,
		SenderID:   actor.ID,
		SenderName: actor.FullName,
		SenderType: actor.SenderType(),
		Text:       text,
		Status:     domain.IssueStatusOpen,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		if errors.Is(err, repository.ErrActiveIssueExists) {
			return nil, apperrors.NewAlreadyActive(nil)
		}
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("issue created", zap.String("issue_id", issue.ID), zap.String("department", string(dept)))
	s.record("create", dept)
	publish(ctx, s.dispatcher, events.Event{
		Type:       events.EventIssueCreated,
		IssueID:    issue.ID,
		Department: dept,
		Actor:      actorOf(actor),
		Payload:    events.IssuePayload{Issue: *issue},
	}, s.now)
	return issue, nil
}

// Reply appends a message to the caller's assigned thread in dept.
func (s *LifecycleService) Reply(ctx context.Context, actor *domain.User, dept domain.Department, text string) (*SendResult, error) {
	text, err := validateSend(actor, dept, text)
	if err != nil {
		return nil, err
	}

	var issue *domain.Issue
	switch actor.Role {
	case domain.RoleStudent:
		issue, err = s.issues.FindActiveForSender(ctx, dept, actor.ID)
		if err == nil && issue.Status != domain.IssueStatusAssigned {
			return nil, apperrors.NewForbidden("your issue has not been accepted yet")
		}
	case domain.RoleStaff:
		if !actor.InDepartment(dept) {
			return nil, apperrors.NewForbidden("not a member of this department")
		}
		issue, err = s.issues.FindAssignedForStaff(ctx, dept, actor.ID)
	case domain.RoleManager:
		return nil, apperrors.NewForbidden("managers cannot reply to issues")
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewForbidden("no active conversation in this department")
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	msg, err := s.appendReply(ctx, actor, issue, text)
	if err != nil {
		return nil, err
	}
	return &SendResult{Issue: issue, Message: msg}, nil
}

// Accept assigns an open issue to the calling staff member.
func (s *LifecycleService) Accept(ctx context.Context, actor *domain.User, issueID string) (*domain.Issue, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if actor.Role != domain.RoleStaff {
		return nil, apperrors.NewForbidden("only department staff can accept issues")
	}

	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !actor.InDepartment(issue.Department) {
		return nil, apperrors.NewForbidden("issue belongs to another department")
	}
	if issue.Status != domain.IssueStatusOpen {
		return nil, invalidState(issue, "issue is no longer open")
	}

	dept := issue.Department
	staffID := actor.ID
	if _, err := s.ExpireOverdue(ctx, repository.ExpireFilter{Department: &dept, StaffID: &staffID}); err != nil {
		return nil, err
	}
	if held, err := s.issues.FindAssignedForStaff(ctx, dept, actor.ID); err == nil {
		return nil, apperrors.NewAlreadyAssigned(map[string]any{"issueId": held.ID})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	now := s.now().UTC()
	updated, err := s.issues.Accept(ctx, issue.ID, actor.ID, actor.FullName, now)
	switch {
	case errors.Is(err, repository.ErrTransitionRejected):
		return nil, invalidState(issue, "issue is no longer open")
	case errors.Is(err, repository.ErrStaffAlreadyAssigned):
		return nil, apperrors.NewAlreadyAssigned(nil)
	case err != nil:
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("issue accepted",
		zap.String("issue_id", updated.ID),
		zap.String("department", string(dept)),
		zap.String("staff_id", actor.ID))
	s.audit(ctx, actor, updated.ID, domain.IssueStatusOpen, domain.IssueStatusAssigned, domain.ReasonAccepted)
	s.record("accept", dept)
	publish(ctx, s.dispatcher, events.Event{
		Type:       events.EventIssueAccepted,
		IssueID:    updated.ID,
		Department: dept,
		Actor:      actorOf(actor),
		Payload:    events.IssuePayload{Issue: *updated},
	}, s.now)
	return updated, nil
}

// Solve closes the caller's assigned issue as solved while the window is open.
func (s *LifecycleService) Solve(ctx context.Context, actor *domain.User, issueID string) (*domain.Issue, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !issue.AssignedTo(actor.ID) {
		return nil, apperrors.NewForbidden("only the assigned staff member can solve this issue")
	}
	if issue.Status != domain.IssueStatusAssigned {
		return nil, invalidState(issue, "issue is not assigned")
	}

	now := s.now().UTC()
	if issue.Overdue(now, s.window) {
		if _, err := s.ExpireOverdue(ctx, repository.ExpireFilter{IssueID: &issue.ID}); err != nil {
			return nil, err
		}
		return nil, apperrors.NewInvalidState("resolution window has elapsed", map[string]any{"issueId": issue.ID})
	}

	updated, err := s.issues.Solve(ctx, issue.ID, actor.ID, now, now.Add(-s.window))
	if errors.Is(err, repository.ErrTransitionRejected) {
		current, loadErr := s.loadIssue(ctx, issue.ID)
		if loadErr != nil {
			return nil, loadErr
		}
		return nil, invalidState(current, "issue is not assigned")
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.finishResolution(ctx, actor, updated, domain.ReasonSolved)
	return updated, nil
}

// MarkNotSolved fails an assigned issue. The assigned staff member or a manager
// may do so at any time; the student who opened it only once the window has elapsed.
func (s *LifecycleService) MarkNotSolved(ctx context.Context, actor *domain.User, issueID string) (*domain.Issue, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	privileged := issue.AssignedTo(actor.ID) || actor.Role == domain.RoleManager
	owner := issue.SenderID == actor.ID
	if !privileged && !owner {
		return nil, apperrors.NewForbidden("not a participant of this issue")
	}
	if issue.Status != domain.IssueStatusAssigned {
		return nil, invalidState(issue, "issue is not assigned")
	}

	now := s.now().UTC()
	if issue.Overdue(now, s.window) {
		expired, err := s.expire(ctx, actor, repository.ExpireFilter{IssueID: &issue.ID})
		if err != nil {
			return nil, err
		}
		if len(expired) == 0 {
			return nil, s.reloadInvalid(ctx, issue.ID)
		}
		return &expired[0], nil
	}
	if !privileged {
		return nil, apperrors.NewForbidden("resolution window is still running")
	}

	updated, err := s.issues.MarkNotSolved(ctx, issue.ID, now)
	if errors.Is(err, repository.ErrTransitionRejected) {
		return nil, s.reloadInvalid(ctx, issue.ID)
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.finishResolution(ctx, actor, updated, domain.ReasonFailed)
	return updated, nil
}

// ExpireOverdue fails every assigned issue matching filter whose window has
// elapsed and returns how many were expired.
func (s *LifecycleService) ExpireOverdue(ctx context.Context, filter repository.ExpireFilter) (int, error) {
	expired, err := s.expire(ctx, nil, filter)
	return len(expired), err
}

// Feed returns the role-filtered department feed.
func (s *LifecycleService) Feed(ctx context.Context, actor *domain.User, dept domain.Department) ([]domain.Issue, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !dept.Valid() {
		return nil, apperrors.NewValidationError("unknown department", map[string]any{"department": dept})
	}

	filter := repository.IssueFilter{Department: dept, ViewerID: actor.ID}
	switch actor.Role {
	case domain.RoleStudent:
		filter.View = repository.FeedSender
	case domain.RoleStaff:
		if !actor.InDepartment(dept) {
			return nil, apperrors.NewForbidden("not a member of this department")
		}
		filter.View = repository.FeedStaffQueue
	case domain.RoleManager:
		filter.View = repository.FeedFull
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}

	if _, err := s.ExpireOverdue(ctx, repository.ExpireFilter{Department: &dept}); err != nil {
		return nil, err
	}
	issues, err := s.issues.ListByDepartment(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if issues == nil {
		issues = []domain.Issue{}
	}
	return issues, nil
}

// Thread returns an issue with its replies for a participant or a manager.
func (s *LifecycleService) Thread(ctx context.Context, actor *domain.User, issueID string) (*Thread, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if _, err := s.ExpireOverdue(ctx, repository.ExpireFilter{IssueID: &issueID}); err != nil {
		return nil, err
	}
	issue, err := s.loadIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.SenderID != actor.ID && !issue.AssignedTo(actor.ID) && actor.Role != domain.RoleManager {
		return nil, apperrors.NewForbidden("not a participant of this issue")
	}

	msgs, err := s.messages.ListByIssue(ctx, issue.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	thread := &Thread{Issue: *issue, Messages: msgs, History: []domain.IssueHistory{}}
	if thread.Messages == nil {
		thread.Messages = []domain.ThreadMessage{}
	}
	if s.history != nil {
		entries, err := s.history.ListByIssue(ctx, issue.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if entries != nil {
			thread.History = entries
		}
	}
	if issue.Status == domain.IssueStatusAssigned {
		if deadline, ok := issue.Deadline(s.window); ok {
			thread.Deadline = &deadline
		}
	}
	return thread, nil
}

func (s *LifecycleService) expire(ctx context.Context, actor *domain.User, filter repository.ExpireFilter) ([]domain.Issue, error) {
	now := s.now().UTC()
	expired, err := s.issues.ExpireAssigned(ctx, filter, now.Add(-s.window), now)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range expired {
		s.finishResolution(ctx, actor, &expired[i], domain.ReasonExpired)
	}
	return expired, nil
}

func (s *LifecycleService) appendReply(ctx context.Context, actor *domain.User, issue *domain.Issue, text string) (*domain.ThreadMessage, error) {
	msg := &domain.ThreadMessage{
		IssueID:    issue.ID,
		SenderID:   actor.ID,
		SenderName: actor.FullName,
		SenderType: actor.SenderType(),
		Text:       text,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Debug("issue reply", zap.String("issue_id", issue.ID), zap.String("sender_id", actor.ID))
	publish(ctx, s.dispatcher, events.Event{
		Type:       events.EventIssueReplied,
		IssueID:    issue.ID,
		Department: issue.Department,
		Actor:      actorOf(actor),
		Payload:    events.ReplyPayload{Issue: *issue, Message: *msg},
	}, s.now)
	return msg, nil
}

// finishResolution runs the side effects of a committed terminal transition.
// The transition itself is already durable, so failures here are logged and
// left for ReconcileAll to repair.
func (s *LifecycleService) finishResolution(ctx context.Context, actor *domain.User, issue *domain.Issue, reason domain.TransitionReason) {
	solved := issue.Status == domain.IssueStatusSolved
	fields := []zap.Field{
		zap.String("issue_id", issue.ID),
		zap.String("department", string(issue.Department)),
		zap.String("reason", string(reason)),
	}
	if issue.AssignedStaff != nil {
		fields = append(fields, zap.String("staff_id", *issue.AssignedStaff))
	}
	s.logger.Info("issue resolved", fields...)

	var metrics domain.PerformanceMetrics
	if s.performance != nil && issue.AssignedStaff != nil {
		var err error
		metrics, err = s.performance.OnResolved(ctx, *issue.AssignedStaff, solved)
		if err != nil {
			s.logger.Error("performance update failed", append(fields, zap.Error(err))...)
		}
	}

	s.audit(ctx, actor, issue.ID, domain.IssueStatusAssigned, issue.Status, reason)
	s.record(string(reason), issue.Department)

	eventType := events.EventIssueFailed
	if solved {
		eventType = events.EventIssueSolved
	}
	publish(ctx, s.dispatcher, events.Event{
		Type:       eventType,
		IssueID:    issue.ID,
		Department: issue.Department,
		Actor:      actorOf(actor),
		Payload: events.ResolutionPayload{
			Issue:   *issue,
			Metrics: metrics,
			Expired: reason == domain.ReasonExpired,
		},
	}, s.now)
}

func (s *LifecycleService) audit(ctx context.Context, actor *domain.User, issueID string, from, to domain.IssueStatus, reason domain.TransitionReason) {
	if s.history == nil {
		return
	}
	entry := &domain.IssueHistory{
		IssueID:    issueID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		CreatedAt:  s.now().UTC(),
	}
	if actor != nil {
		id := actor.ID
		entry.ActorID = &id
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Error("history write failed", zap.String("issue_id", issueID), zap.Error(err))
	}
}

func (s *LifecycleService) record(transition string, dept domain.Department) {
	if s.recorder != nil {
		s.recorder.RecordTransition(transition, string(dept))
	}
}

func (s *LifecycleService) loadIssue(ctx context.Context, id string) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("issue", map[string]any{"issueId": id})
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return issue, nil
}

func (s *LifecycleService) reloadInvalid(ctx context.Context, id string) error {
	current, err := s.loadIssue(ctx, id)
	if err != nil {
		return err
	}
	return invalidState(current, "issue is not assigned")
}

func invalidState(issue *domain.Issue, message string) error {
	return apperrors.NewInvalidState(message, map[string]any{
		"issueId": issue.ID,
		"status":  issue.Status,
	})
}

func validateSend(actor *domain.User, dept domain.Department, text string) (string, error) {
	if actor == nil {
		return "", apperrors.NewUnauthorized("authentication required")
	}
	if !dept.Valid() {
		return "", apperrors.NewValidationError("unknown department", map[string]any{"department": dept})
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewValidationError("text is required", map[string]any{"field": "text"})
	}
	return text, nil
}
