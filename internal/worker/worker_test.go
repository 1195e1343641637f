package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/events"
	"github.com/campushub/helpdesk-service/internal/repository"
	"github.com/campushub/helpdesk-service/internal/service"
)

type fakeExpirer struct {
	mu    sync.Mutex
	calls int
	n     int
	err   error
}

func (f *fakeExpirer) ExpireOverdue(_ context.Context, filter repository.ExpireFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.n, f.err
}

func (f *fakeExpirer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSweepReportsExpired(t *testing.T) {
	sweeper := NewExpirySweeper(&fakeExpirer{n: 2}, time.Second, nil)
	assert.Equal(t, 2, sweeper.Sweep(context.Background()))

	failing := NewExpirySweeper(&fakeExpirer{err: errors.New("db down")}, time.Second, nil)
	assert.Equal(t, 0, failing.Sweep(context.Background()))
}

func TestRunTicksUntilCancelled(t *testing.T) {
	expirer := &fakeExpirer{}
	sweeper := NewExpirySweeper(expirer, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return expirer.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRunDisabledReturnsImmediately(t *testing.T) {
	expirer := &fakeExpirer{}
	NewExpirySweeper(expirer, 0, nil).Run(context.Background())
	assert.Equal(t, 0, expirer.Calls())
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) SendResolutionNotice(_ context.Context, student *domain.User, issue domain.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, student.Email+":"+issue.ID)
	return nil
}

func (m *recordingMailer) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func TestMailQueueDeliversInBackground(t *testing.T) {
	mailer := &recordingMailer{}
	queue := NewMailQueue(mailer, 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go queue.Run(ctx)

	student := &domain.User{ID: "s1", Email: "s1@campus.edu"}
	require.NoError(t, queue.SendResolutionNotice(ctx, student, domain.Issue{ID: "i1"}))

	require.Eventually(t, func() bool { return len(mailer.Sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"s1@campus.edu:i1"}, mailer.Sent())
}

func TestMailQueueRejectsWhenFull(t *testing.T) {
	queue := NewMailQueue(&recordingMailer{}, 1, nil)
	student := &domain.User{ID: "s1"}
	require.NoError(t, queue.SendResolutionNotice(context.Background(), student, domain.Issue{ID: "i1"}))
	assert.ErrorIs(t, queue.SendResolutionNotice(context.Background(), student, domain.Issue{ID: "i2"}), ErrMailQueueFull)
}

type countingNotifier struct {
	notified []string
}

func (n *countingNotifier) Notify(_ context.Context, userID, _ string, _ any) bool {
	n.notified = append(n.notified, userID)
	return true
}

func (n *countingNotifier) BroadcastDepartmentStaff(context.Context, domain.Department, string, any) []string {
	return nil
}

func TestStartNotificationWorkerSubscribes(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	notifier := &countingNotifier{}
	StartNotificationWorker(service.NotificationDependencies{Dispatcher: dispatcher, Notifier: notifier})

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventIssueCreated,
		Payload: events.IssuePayload{Issue: domain.Issue{ID: "i-1", SenderID: "student-1", Department: domain.DepartmentIT}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"student-1"}, notifier.notified)
}
