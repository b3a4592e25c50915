package routes

import (
	"github.com/dancehub/marketplace/handlers"
	"github.com/dancehub/marketplace/middleware"
	"github.com/gofiber/fiber/v2"
)

func TokenRoutes(api fiber.Router, h *handlers.Handler, protected fiber.Handler) {
	tokens := api.Group("/tokens", protected)
	tokens.Get("/me", h.GetMyTokens)
	tokens.Get("/me/transactions", h.GetMyTokenTransactions)
	tokens.Post("/packages/:id/purchase", h.PurchaseTokenPackage)
	tokens.Post("/packages", middleware.CoachRequired(), h.CreateTokenPackage)
}
