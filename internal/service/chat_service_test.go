package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/helpdesk-service/internal/domain"
	"github.com/campushub/helpdesk-service/internal/realtime"
	apperrors "github.com/campushub/helpdesk-service/pkg/util/errorutil"
)

func newChat(h *harness) *ChatService {
	return NewChatService(ChatDependencies{
		UserRepo:    h.users,
		MessageRepo: h.store.DirectMessages(),
		Dispatcher:  h.dispatcher,
		Clock:       h.clock.Now,
	})
}

func userIDs(users []domain.User) []string {
	ids := make([]string, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	return ids
}

func TestChatConversation(t *testing.T) {
	h := newHarness(t)
	chat := newChat(h)
	ctx := context.Background()
	notifier := &fakeNotifier{}
	NewNotificationService(NotificationDependencies{Dispatcher: h.dispatcher, Notifier: notifier}).RegisterHandlers()

	ada := h.student(t, "ada")
	bob := h.staff(t, "bob", domain.DepartmentIT)
	cyd := h.student(t, "cyd")

	first, err := chat.Send(ctx, ada, bob.ID, " hi bob ", "")
	require.NoError(t, err)
	assert.Equal(t, "hi bob", first.Text)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, []sentFrame{{target: bob.ID, event: realtime.EventDirectMessage}}, notifier.frames())

	h.clock.Advance(time.Minute)
	_, err = chat.Send(ctx, bob, ada.ID, "", "https://cdn.example.com/screen.png")
	require.NoError(t, err)

	history, err := chat.History(ctx, bob, ada.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hi bob", history[0].Text)
	assert.Equal(t, "https://cdn.example.com/screen.png", history[1].Image)

	empty, err := chat.History(ctx, cyd, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)

	partners, err := chat.Conversations(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, userIDs(partners))

	none, err := chat.Conversations(ctx, cyd)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChatSendRules(t *testing.T) {
	h := newHarness(t)
	chat := newChat(h)
	ctx := context.Background()
	ada := h.student(t, "ada")

	_, err := chat.Send(ctx, ada, ada.ID, "me", "")
	requireCode(t, err, apperrors.CodeValidation)

	_, err = chat.Send(ctx, ada, "missing", "hello", "")
	requireCode(t, err, apperrors.CodeNotFound)

	bob := h.student(t, "bob")
	_, err = chat.Send(ctx, ada, bob.ID, "   ", "")
	requireCode(t, err, apperrors.CodeValidation)

	_, err = chat.Send(ctx, nil, bob.ID, "hello", "")
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestChatDirectory(t *testing.T) {
	h := newHarness(t)
	chat := newChat(h)
	ctx := context.Background()
	ada := h.student(t, "ada")
	bob := h.staff(t, "bobby", domain.DepartmentIT)
	cyd := h.student(t, "cyd")

	contacts, err := chat.Contacts(ctx, ada)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{bob.ID, cyd.ID}, userIDs(contacts))

	found, err := chat.Search(ctx, ada, "BOB")
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, userIDs(found))

	byEmail, err := chat.Search(ctx, ada, "cyd@campus")
	require.NoError(t, err)
	assert.Equal(t, []string{cyd.ID}, userIDs(byEmail))

	self, err := chat.Search(ctx, ada, "ada")
	require.NoError(t, err)
	assert.Empty(t, self)
}
