package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/service"
)

// ErrMailQueueFull is returned when a notice is dropped because the queue is saturated.
var ErrMailQueueFull = errors.New("mail queue full")

type mailJob struct {
	student domain.User
	issue   domain.Issue
}

// MailQueue moves SMTP delivery off the request path. It satisfies
// service.ResolutionMailer by enqueueing, and Run drains the queue into the
// wrapped mailer.
type MailQueue struct {
	mailer service.ResolutionMailer
	jobs   chan mailJob
	logger *zap.Logger
}

// NewMailQueue builds a queue holding at most size pending notices.
func NewMailQueue(mailer service.ResolutionMailer, size int, logger *zap.Logger) *MailQueue {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailQueue{mailer: mailer, jobs: make(chan mailJob, size), logger: logger}
}

// SendResolutionNotice enqueues a notice without blocking.
func (q *MailQueue) SendResolutionNotice(_ context.Context, student *domain.User, issue domain.Issue) error {
	select {
	case q.jobs <- mailJob{student: *student, issue: issue}:
		return nil
	default:
		return ErrMailQueueFull
	}
}

// Run delivers queued notices until ctx is cancelled.
func (q *MailQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.mailer.SendResolutionNotice(ctx, &job.student, job.issue); err != nil {
				q.logger.Warn("resolution notice failed",
					zap.String("issue_id", job.issue.ID),
					zap.String("student_id", job.student.ID),
					zap.Error(err))
			}
		}
	}
}
