package routes

import (
	"github.com/dancehub/marketplace/handlers"
	"github.com/dancehub/marketplace/middleware"
	"github.com/gofiber/fiber/v2"
)

func OfferRoutes(api fiber.Router, h *handlers.Handler, protected fiber.Handler) {
	offers := api.Group("/offers", protected)
	offers.Get("/purchases/me", h.ListMyOfferPurchases)
	offers.Post("/:id/purchase", h.PurchaseOffer)
	offers.Post("", middleware.CoachRequired(), h.CreateOffer)
}
