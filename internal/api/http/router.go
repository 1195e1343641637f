package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campushub/helpdesk-service/internal/api/http/handlers"
	"github.com/campushub/helpdesk-service/internal/auth"
	"github.com/campushub/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health             *handlers.HealthHandler
	Auth               *handlers.AuthHandler
	DepartmentMessages *handlers.DepartmentMessagesHandler
	Stats              *handlers.StatsHandler
	Users              *handlers.UsersHandler
	Messages           *handlers.MessagesHandler
	AuthMiddleware     *auth.AuthMiddleware
	Metrics            fiber.Handler
	// Socket is the already upgraded websocket handler; nil disables /ws.
	Socket fiber.Handler
	// SocketUpgrade runs before Socket and must reject anonymous callers.
	SocketUpgrade fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/check", cfg.AuthMiddleware.Handle, cfg.Auth.Check)
	authGroup.Put("/update-profile", cfg.AuthMiddleware.Handle, cfg.Auth.UpdateProfile)
	authGroup.Put("/change-password", cfg.AuthMiddleware.Handle, cfg.Auth.ChangePassword)

	managerOnly := auth.RequireRole(domain.RoleManager)

	messages := app.Group("/department-messages", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	messages.Post("/reset-performance", managerOnly, cfg.DepartmentMessages.ResetPerformance)
	messages.Post("/send/:department", cfg.DepartmentMessages.Send)
	messages.Post("/accept/:messageId", cfg.DepartmentMessages.Accept)
	messages.Post("/solve/:messageId", cfg.DepartmentMessages.Solve)
	messages.Post("/not-solved/:messageId", cfg.DepartmentMessages.NotSolved)
	messages.Get("/thread/:messageId", cfg.DepartmentMessages.Thread)
	messages.Get("/:department", cfg.DepartmentMessages.Feed)

	stats := app.Group("/stats", cfg.AuthMiddleware.Handle, managerOnly)
	stats.Get("/department/:department", cfg.Stats.Department)
	stats.Get("/department/:department/export", cfg.Stats.Export)
	stats.Post("/reconcile", cfg.Stats.Reconcile)

	if cfg.Messages != nil {
		direct := app.Group("/messages", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
		direct.Get("/users/sidebar", cfg.Messages.Sidebar)
		direct.Get("/users/chats", cfg.Messages.Chats)
		direct.Get("/users/search", cfg.Messages.Search)
		direct.Post("/send/:id", cfg.Messages.Send)
		direct.Get("/:id", cfg.Messages.History)
	}

	app.Get("/users/online", cfg.AuthMiddleware.Handle, cfg.Users.Online)

	if cfg.Socket != nil && cfg.SocketUpgrade != nil {
		app.Get("/ws", cfg.AuthMiddleware.Handle, cfg.SocketUpgrade, cfg.Socket)
	}
}
