package routes

import (
	"github.com/dancehub/marketplace/handlers"
	"github.com/dancehub/marketplace/middleware"
	"github.com/gofiber/fiber/v2"
)

func CardRoutes(api fiber.Router, h *handlers.Handler, protected fiber.Handler) {
	gift := api.Group("/gift-cards", protected)
	gift.Post("/use", h.UseGiftCard)
	gift.Get("/code/:code", h.LookupGiftCard)
	gift.Post("/purchase", h.PurchaseGiftCard)

	issuer := gift.Group("/issued", middleware.CoachRequired())
	issuer.Get("", h.ListMyGiftCards)
	issuer.Post("", h.CreateGiftCard)
	issuer.Put("/:id", h.UpdateGiftCard)
	issuer.Delete("/:id", h.DeleteGiftCard)
	issuer.Get("/:id/transactions", h.GiftCardTransactions)

	discount := api.Group("/discount-cards", protected)
	discount.Post("/validate", h.ValidateDiscountCard)

	coach := middleware.CoachRequired()
	discount.Get("/mine", coach, h.ListMyDiscountCards)
	discount.Post("", coach, h.CreateDiscountCard)
	discount.Post("/redeem", coach, h.RedeemDiscountCard)
	discount.Put("/:id", coach, h.UpdateDiscountCard)
	discount.Delete("/:id", coach, h.DeleteDiscountCard)
}
