package routes

import (
	"github.com/dancehub/marketplace/handlers"
	"github.com/dancehub/marketplace/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(api fiber.Router, h *handlers.Handler, protected fiber.Handler) {
	admin := api.Group("/admin", protected, middleware.AdminRequired())
	admin.Put("/settings/stripe-key", h.SetStripeSecretKey)
}
