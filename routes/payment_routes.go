package routes

import (
	"github.com/dancehub/marketplace/handlers"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(api fiber.Router, h *handlers.Handler, protected fiber.Handler) {
	api.Post("/payments/stripe/webhook", h.StripeWebhook)
	api.Post("/payments/checkout", protected, h.CreateCheckoutSession)
}
