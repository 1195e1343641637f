package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/events"
	"github.com/campushub/helpdesk-service/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeRecorder struct {
	mu          sync.Mutex
	transitions []string
}

func (r *fakeRecorder) RecordTransition(transition, department string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, transition+"/"+department)
}

type capturedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturedEvents) handle(_ context.Context, event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturedEvents) types() []events.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.EventType, 0, len(c.events))
	for _, event := range c.events {
		out = append(out, event.Type)
	}
	return out
}

type harness struct {
	store       *repository.MemoryStore
	users       repository.UserRepository
	clock       *fakeClock
	dispatcher  events.Dispatcher
	recorder    *fakeRecorder
	captured    *capturedEvents
	lifecycle   *LifecycleService
	performance *PerformanceService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := &fakeClock{now: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)}
	dispatcher := events.NewInMemoryDispatcher()
	captured := &capturedEvents{}
	for _, eventType := range events.AllEventTypes {
		dispatcher.Subscribe(eventType, captured.handle)
	}
	recorder := &fakeRecorder{}

	performance := NewPerformanceService(PerformanceDependencies{
		UserRepo:   store.Users(),
		IssueRepo:  store.Issues(),
		Dispatcher: dispatcher,
		Clock:      clock.Now,
	})
	lifecycle := NewLifecycleService(LifecycleDependencies{
		IssueRepo:   store.Issues(),
		MessageRepo: store.Messages(),
		HistoryRepo: store.History(),
		Performance: performance,
		Dispatcher:  dispatcher,
		Recorder:    recorder,
		Clock:       clock.Now,
	})
	return &harness{
		store:       store,
		users:       store.Users(),
		clock:       clock,
		dispatcher:  dispatcher,
		recorder:    recorder,
		captured:    captured,
		lifecycle:   lifecycle,
		performance: performance,
	}
}

func (h *harness) user(t *testing.T, name string, role domain.Role, dept *domain.Department) *domain.User {
	t.Helper()
	user := &domain.User{
		Email:    name + "@campus.edu",
		FullName: name,
		Role:     role,
	}
	if dept != nil {
		d := *dept
		user.Department = &d
	}
	require.NoError(t, h.users.Create(context.Background(), user))
	return user
}

func (h *harness) student(t *testing.T, name string) *domain.User {
	return h.user(t, name, domain.RoleStudent, nil)
}

func (h *harness) staff(t *testing.T, name string, dept domain.Department) *domain.User {
	return h.user(t, name, domain.RoleStaff, &dept)
}

func (h *harness) manager(t *testing.T, name string, dept domain.Department) *domain.User {
	return h.user(t, name, domain.RoleManager, &dept)
}

func (h *harness) metrics(t *testing.T, id string) domain.PerformanceMetrics {
	t.Helper()
	user, err := h.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return user.PerformanceMetrics
}

func (h *harness) open(t *testing.T, student *domain.User, dept domain.Department, text string) *domain.Issue {
	t.Helper()
	issue, err := h.lifecycle.Create(context.Background(), student, dept, text)
	require.NoError(t, err)
	return issue
}
