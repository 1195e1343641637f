package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/domain"
)

// Event names pushed to clients.
const (
	EventNew              = "departmentMessage:new"
	EventAccepted         = "departmentMessage:accepted"
	EventPrivateChatStart = "departmentMessage:privateChatStart"
	EventSolved           = "departmentMessage:solved"
	EventFailed           = "departmentMessage:failed"
	EventOnlineUsers      = "getOnlineUsers"
	EventDirectMessage    = "newMessage"
)

// Frame is the JSON envelope written to a socket.
type Frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Notifier resolves users to connections and hands frames to a Sender.
// Delivery is at-most-once: offline users and send failures are skipped.
type Notifier struct {
	registry Registry
	sender   Sender
	logger   *zap.Logger
}

// NewNotifier builds a notifier.
func NewNotifier(registry Registry, sender Sender, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{registry: registry, sender: sender, logger: logger}
}

// Notify sends event to userID if connected and reports whether a frame was handed off.
func (n *Notifier) Notify(ctx context.Context, userID, event string, payload any) bool {
	presence, ok, err := n.registry.Lookup(ctx, userID)
	if err != nil {
		n.logger.Debug("presence lookup failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	frame, err := encodeFrame(event, payload)
	if err != nil {
		n.logger.Warn("encode frame", zap.String("event", event), zap.Error(err))
		return false
	}
	return n.send(ctx, presence, frame)
}

// BroadcastDepartmentStaff sends event to every connected staff member or manager of dept.
func (n *Notifier) BroadcastDepartmentStaff(ctx context.Context, dept domain.Department, event string, payload any) []string {
	return n.broadcast(ctx, func(p Presence) bool { return p.IsDepartmentStaff(dept) }, event, payload)
}

// BroadcastAll sends event to every connected user.
func (n *Notifier) BroadcastAll(ctx context.Context, event string, payload any) []string {
	return n.broadcast(ctx, nil, event, payload)
}

// BroadcastOnlineUsers pushes the current presence list to everyone.
func (n *Notifier) BroadcastOnlineUsers(ctx context.Context) {
	ids, err := n.registry.Online(ctx)
	if err != nil {
		n.logger.Debug("presence list failed", zap.Error(err))
		return
	}
	n.BroadcastAll(ctx, EventOnlineUsers, ids)
}

// Online returns the ids of connected users.
func (n *Notifier) Online(ctx context.Context) ([]string, error) {
	return n.registry.Online(ctx)
}

func (n *Notifier) broadcast(ctx context.Context, predicate func(Presence) bool, event string, payload any) []string {
	targets, err := n.registry.BroadcastTo(ctx, predicate)
	if err != nil {
		n.logger.Debug("presence scan failed", zap.String("event", event), zap.Error(err))
		return nil
	}
	if len(targets) == 0 {
		return nil
	}
	frame, err := encodeFrame(event, payload)
	if err != nil {
		n.logger.Warn("encode frame", zap.String("event", event), zap.Error(err))
		return nil
	}
	delivered := make([]string, 0, len(targets))
	for _, presence := range targets {
		if n.send(ctx, presence, frame) {
			delivered = append(delivered, presence.UserID)
		}
	}
	return delivered
}

func (n *Notifier) send(ctx context.Context, presence Presence, frame []byte) bool {
	if err := n.sender.Send(ctx, presence.ConnID, frame); err != nil {
		n.logger.Debug("realtime send failed", zap.String("user_id", presence.UserID), zap.Error(err))
		return false
	}
	return true
}

func encodeFrame(event string, payload any) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Payload: payload})
}
