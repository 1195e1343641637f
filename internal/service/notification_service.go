package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/events"
	"github.com/campushub/helpdesk-service/internal/realtime"
	"github.com/campushub/helpdesk-service/internal/repository"
)

// RealtimeNotifier pushes frames to connected users; realtime.Notifier satisfies it.
type RealtimeNotifier interface {
	Notify(ctx context.Context, userID, event string, payload any) bool
	BroadcastDepartmentStaff(ctx context.Context, dept domain.Department, event string, payload any) []string
}

// EventExporter ships events to an external broker; messaging.Publisher satisfies it.
type EventExporter interface {
	Export(ctx context.Context, event events.Event) error
}

// ResolutionMailer emails a student about a terminal issue; mail.Mailer satisfies it.
type ResolutionMailer interface {
	SendResolutionNotice(ctx context.Context, student *domain.User, issue domain.Issue) error
}

// PrivateChatStart is the payload sent to the two parties of a newly accepted issue.
type PrivateChatStart struct {
	IssueID    string            `json:"issueId"`
	StudentID  string            `json:"studentId"`
	StaffID    string            `json:"staffId"`
	Department domain.Department `json:"department"`
}

// IssueUpdate is the affected issue document with the thread line that
// changed it. Message is absent for a newly opened issue.
type IssueUpdate struct {
	domain.Issue
	Message *domain.ThreadMessage `json:"message,omitempty"`
}

// NotificationService fans lifecycle events out to sockets, the broker and email.
// Every channel is best-effort; failures are logged and swallowed.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   RealtimeNotifier
	exporter   EventExporter
	mailer     ResolutionMailer
	users      repository.UserRepository
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators; nil channels are skipped.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Notifier   RealtimeNotifier
	Exporter   EventExporter
	Mailer     ResolutionMailer
	UserRepo   repository.UserRepository
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		notifier:   deps.Notifier,
		exporter:   deps.Exporter,
		mailer:     deps.Mailer,
		users:      deps.UserRepo,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventIssueCreated, n.handleIssueCreated)
	n.dispatcher.Subscribe(events.EventIssueReplied, n.handleIssueReplied)
	n.dispatcher.Subscribe(events.EventIssueAccepted, n.handleIssueAccepted)
	n.dispatcher.Subscribe(events.EventIssueSolved, n.handleIssueResolved)
	n.dispatcher.Subscribe(events.EventIssueFailed, n.handleIssueResolved)
	n.dispatcher.Subscribe(events.EventDirectMessage, n.handleDirectMessage)
	if n.exporter != nil {
		for _, eventType := range events.AllEventTypes {
			n.dispatcher.Subscribe(eventType, n.export)
		}
	}
}

func (n *NotificationService) handleIssueCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.IssuePayload)
	if !ok {
		return nil
	}
	n.toDepartmentAndStudent(ctx, payload.Issue, realtime.EventNew, payload.Issue)
	return nil
}

func (n *NotificationService) handleIssueReplied(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ReplyPayload)
	if !ok {
		return nil
	}
	message := payload.Message
	update := IssueUpdate{Issue: payload.Issue, Message: &message}
	n.notify(ctx, payload.Issue.SenderID, realtime.EventNew, update)
	if payload.Issue.AssignedStaff != nil {
		n.notify(ctx, *payload.Issue.AssignedStaff, realtime.EventNew, update)
	}
	return nil
}

func (n *NotificationService) handleDirectMessage(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.DirectMessagePayload)
	if !ok {
		return nil
	}
	n.notify(ctx, payload.Message.ReceiverID, realtime.EventDirectMessage, payload.Message)
	return nil
}

func (n *NotificationService) handleIssueAccepted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.IssuePayload)
	if !ok || payload.Issue.AssignedStaff == nil {
		return nil
	}
	issue := payload.Issue
	start := PrivateChatStart{
		IssueID:    issue.ID,
		StudentID:  issue.SenderID,
		StaffID:    *issue.AssignedStaff,
		Department: issue.Department,
	}
	n.notify(ctx, start.StudentID, realtime.EventPrivateChatStart, start)
	n.notify(ctx, start.StaffID, realtime.EventPrivateChatStart, start)
	n.toDepartmentAndStudent(ctx, issue, realtime.EventAccepted, issue)
	return nil
}

func (n *NotificationService) handleIssueResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ResolutionPayload)
	if !ok {
		return nil
	}
	name := realtime.EventFailed
	if payload.Issue.Status == domain.IssueStatusSolved {
		name = realtime.EventSolved
	}
	n.toDepartmentAndStudent(ctx, payload.Issue, name, payload.Issue)
	n.mailStudent(ctx, payload.Issue)
	return nil
}

func (n *NotificationService) export(ctx context.Context, event events.Event) error {
	if err := n.exporter.Export(ctx, event); err != nil {
		n.logger.Debug("export skipped", zap.String("event_id", event.ID), zap.Error(err))
	}
	return nil
}

func (n *NotificationService) toDepartmentAndStudent(ctx context.Context, issue domain.Issue, name string, payload any) {
	if n.notifier == nil {
		return
	}
	n.notifier.BroadcastDepartmentStaff(ctx, issue.Department, name, payload)
	n.notifier.Notify(ctx, issue.SenderID, name, payload)
}

func (n *NotificationService) notify(ctx context.Context, userID, name string, payload any) {
	if n.notifier == nil {
		return
	}
	n.notifier.Notify(ctx, userID, name, payload)
}

func (n *NotificationService) mailStudent(ctx context.Context, issue domain.Issue) {
	if n.mailer == nil || n.users == nil {
		return
	}
	student, err := n.users.GetByID(ctx, issue.SenderID)
	if err != nil {
		n.logger.Debug("mail recipient lookup failed", zap.String("issue_id", issue.ID), zap.Error(err))
		return
	}
	if student.Email == "" {
		return
	}
	if err := n.mailer.SendResolutionNotice(ctx, student, issue); err != nil {
		n.logger.Debug("resolution notice skipped", zap.String("issue_id", issue.ID), zap.Error(err))
	}
}
