package realtime

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/domain"
)

const socketUserKey = "realtime_user"

// Upgrade rejects non-websocket requests and stashes the authenticated user
// for the socket handler. resolve returns nil when the caller is anonymous.
func Upgrade(resolve func(*fiber.Ctx) *domain.User) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		user := resolve(c)
		if user == nil {
			return fiber.ErrUnauthorized
		}
		c.Locals(socketUserKey, user)
		return c.Next()
	}
}

// Handler serves one socket: outbound frames are pumped from the hub queue and
// inbound frames are read only to detect the close.
func (g *Gateway) Handler(writeTimeout time.Duration) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		user, ok := conn.Locals(socketUserKey).(*domain.User)
		if !ok || user == nil {
			_ = conn.Close()
			return
		}

		ctx := context.Background()
		client, err := g.Connect(ctx, user)
		if err != nil {
			g.logger.Warn("socket connect failed", zap.String("user_id", user.ID), zap.Error(err))
			_ = conn.Close()
			return
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

	pump:
		for {
			select {
			case <-done:
				break pump
			case frame, ok := <-client.Outbound():
				if !ok {
					break pump
				}
				if writeTimeout > 0 {
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				}
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					break pump
				}
			}
		}

		g.Disconnect(ctx, client)
		_ = conn.Close()
	})
}
