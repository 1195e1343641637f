package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/helpdesk-service/internal/domain"
)

func decode(t *testing.T, raw []byte) Frame {
	t.Helper()
	var frame Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func TestNotifierTargetsConnectedUsers(t *testing.T) {
	ctx := context.Background()
	it := domain.DepartmentIT
	hub := NewHub(8, nil)
	registry := NewMemoryRegistry()
	notifier := NewNotifier(registry, hub, nil)

	student := hub.Attach("student")
	staff := hub.Attach("staff")
	require.NoError(t, registry.Register(ctx, presenceOf("student", student.ID, domain.RoleStudent, nil)))
	require.NoError(t, registry.Register(ctx, presenceOf("staff", staff.ID, domain.RoleStaff, &it)))

	assert.True(t, notifier.Notify(ctx, "student", EventAccepted, map[string]string{"issueId": "i1"}))
	assert.False(t, notifier.Notify(ctx, "offline", EventAccepted, nil))

	frame := decode(t, <-student.Outbound())
	assert.Equal(t, EventAccepted, frame.Event)
	assert.Equal(t, map[string]any{"issueId": "i1"}, frame.Payload)

	delivered := notifier.BroadcastDepartmentStaff(ctx, it, EventNew, "hello")
	assert.Equal(t, []string{"staff"}, delivered)
	assert.Equal(t, EventNew, decode(t, <-staff.Outbound()).Event)

	assert.Empty(t, notifier.BroadcastDepartmentStaff(ctx, domain.DepartmentEU, EventNew, "hello"))
}

func TestNotifierBroadcastOnlineUsers(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(8, nil)
	registry := NewMemoryRegistry()
	notifier := NewNotifier(registry, hub, nil)

	a := hub.Attach("a")
	b := hub.Attach("b")
	require.NoError(t, registry.Register(ctx, presenceOf("a", a.ID, domain.RoleStudent, nil)))
	require.NoError(t, registry.Register(ctx, presenceOf("b", b.ID, domain.RoleStudent, nil)))

	notifier.BroadcastOnlineUsers(ctx)
	for _, client := range []*Client{a, b} {
		frame := decode(t, <-client.Outbound())
		assert.Equal(t, EventOnlineUsers, frame.Event)
		assert.Equal(t, []any{"a", "b"}, frame.Payload)
	}
}
