package routes

import (
	"github.com/dancehub/marketplace/handlers"
	"github.com/gofiber/fiber/v2"
)

func AuthRoutes(api fiber.Router, h *handlers.Handler, protected fiber.Handler) {
	auth := api.Group("/auth")
	auth.Post("/register", h.RegisterUser)
	auth.Post("/login", h.LoginUser)
	auth.Get("/me", protected, h.GetMe)
}
