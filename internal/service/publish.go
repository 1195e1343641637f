package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/events"
)

// TransitionRecorder counts lifecycle transitions; observability.Metrics satisfies it.
type TransitionRecorder interface {
	RecordTransition(transition string, department string)
}

// publish stamps and dispatches an event. Subscriber failures never fail the
// operation that produced the event.
func publish(ctx context.Context, dispatcher events.Dispatcher, event events.Event, now func() time.Time) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now().UTC()
	}
	_ = dispatcher.Publish(ctx, event)
}

func actorOf(user *domain.User) events.Actor {
	if user == nil {
		return events.Actor{}
	}
	id := user.ID
	return events.Actor{UserID: &id, Role: user.Role}
}
