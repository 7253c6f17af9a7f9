package admin

import (
	"kooperatif-backend/internal/audit"
	"kooperatif-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// Register mounts /admin on a group already behind JWTMiddleware.
func Register(r fiber.Router) {
	g := r.Group("/admin", auth.RequireAdmin())

	g.Get("/users", ListUsersHandler())
	g.Post("/users", CreateUserHandler())
	g.Post("/users/import", ImportUsersHandler())
	g.Get("/users/:id", GetUserHandler())
	g.Put("/users/:id", UpdateUserHandler())
	g.Patch("/users/:id/toggle-active", ToggleUserActiveHandler())
	g.Post("/users/:id/reset-password", ResetPasswordHandler())
	g.Delete("/users/:id", DeleteUserHandler())

	g.Get("/audit-logs", audit.ListAuditLogsHandler())
}
