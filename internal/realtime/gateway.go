package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/domain"
)

// PresenceStore persists isOnline/lastSeen in the user directory.
type PresenceStore interface {
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
}

// ConnectionGauge tracks local socket count.
type ConnectionGauge interface {
	SetConnections(n int)
}

// Gateway ties socket lifecycle to the registry, the hub and the directory.
type Gateway struct {
	hub      *Hub
	registry Registry
	notifier *Notifier
	users    PresenceStore
	gauge    ConnectionGauge
	logger   *zap.Logger
	now      func() time.Time
}

// GatewayDependencies bundles collaborators for the gateway.
type GatewayDependencies struct {
	Hub      *Hub
	Registry Registry
	Notifier *Notifier
	Users    PresenceStore
	Gauge    ConnectionGauge
	Logger   *zap.Logger
	Clock    func() time.Time
}

// NewGateway constructs the gateway.
func NewGateway(deps GatewayDependencies) *Gateway {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Gateway{
		hub:      deps.Hub,
		registry: deps.Registry,
		notifier: deps.Notifier,
		users:    deps.Users,
		gauge:    deps.Gauge,
		logger:   logger,
		now:      clock,
	}
}

// Connect attaches a socket for user, marks them online and announces the new presence list.
func (g *Gateway) Connect(ctx context.Context, user *domain.User) (*Client, error) {
	client := g.hub.Attach(user.ID)
	now := g.now().UTC()
	presence := Presence{
		UserID:      user.ID,
		ConnID:      client.ID,
		Role:        user.Role,
		Department:  user.Department,
		ConnectedAt: now,
	}
	if err := g.registry.Register(ctx, presence); err != nil {
		g.hub.Detach(client.ID)
		return nil, err
	}
	if err := g.users.SetPresence(ctx, user.ID, true, now); err != nil {
		g.logger.Warn("presence update failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	g.observe()
	g.logger.Info("socket connected", zap.String("user_id", user.ID), zap.String("conn_id", client.ID))
	g.notifier.BroadcastOnlineUsers(ctx)
	return client, nil
}

// Disconnect detaches client. The user is only marked offline if this was
// still their registered connection.
func (g *Gateway) Disconnect(ctx context.Context, client *Client) {
	g.hub.Detach(client.ID)
	g.observe()

	removed, err := g.registry.Unregister(ctx, client.UserID, client.ID)
	if err != nil {
		g.logger.Warn("presence unregister failed", zap.String("user_id", client.UserID), zap.Error(err))
		return
	}
	if !removed {
		return
	}
	if err := g.users.SetPresence(ctx, client.UserID, false, g.now().UTC()); err != nil {
		g.logger.Warn("presence update failed", zap.String("user_id", client.UserID), zap.Error(err))
	}
	g.logger.Info("socket disconnected", zap.String("user_id", client.UserID), zap.String("conn_id", client.ID))
	g.notifier.BroadcastOnlineUsers(ctx)
}

func (g *Gateway) observe() {
	if g.gauge != nil {
		g.gauge.SetConnections(g.hub.Len())
	}
}
