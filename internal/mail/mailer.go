package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/messaging"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type deliverer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// Mailer sends resolution notices to students.
type Mailer struct {
	client deliverer
	from   string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewMailer builds an SMTP-backed mailer.
func NewMailer(cfg Config, logger *zap.Logger) (*Mailer, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(10 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, err
	}
	return newMailer(client, cfg.From, logger), nil
}

func newMailer(client deliverer, from string, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		client: client,
		from:   from,
		cb:     messaging.NewCircuitBreaker("SMTP", 30*time.Second, logger),
		logger: logger,
	}
}

// SendResolutionNotice tells the student how their issue ended.
func (m *Mailer) SendResolutionNotice(ctx context.Context, student *domain.User, issue domain.Issue) error {
	msg, err := BuildResolutionNotice(m.from, student, issue)
	if err != nil {
		return err
	}
	_, err = m.cb.Execute(func() (interface{}, error) {
		return nil, m.client.DialAndSendWithContext(ctx, msg)
	})
	if err != nil {
		m.logger.Warn("resolution notice failed", zap.String("issue_id", issue.ID), zap.Error(err))
	}
	return err
}

// BuildResolutionNotice renders the plain-text notice for a terminal issue.
func BuildResolutionNotice(from string, student *domain.User, issue domain.Issue) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, err
	}
	if err := msg.To(student.Email); err != nil {
		return nil, err
	}

	outcome := "was marked as not solved"
	if issue.Status == domain.IssueStatusSolved {
		outcome = "has been solved"
	}
	msg.Subject(fmt.Sprintf("[%s] Your issue %s", issue.Department, outcome))

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\n", student.FullName)
	fmt.Fprintf(&body, "Your request to %s %s.\n\n", issue.Department.Title(), outcome)
	fmt.Fprintf(&body, "Issue: %s\n", issue.Text)
	if issue.AssignedStaffName != "" {
		fmt.Fprintf(&body, "Handled by: %s\n", issue.AssignedStaffName)
	}
	if issue.Status == domain.IssueStatusNotSolved {
		body.WriteString("\nYou can open a new request from the portal at any time.\n")
	}
	msg.SetBodyString(gomail.TypeTextPlain, body.String())
	return msg, nil
}
