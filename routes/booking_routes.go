package routes

import (
	"github.com/dancehub/marketplace/handlers"
	"github.com/gofiber/fiber/v2"
)

func BookingRoutes(api fiber.Router, h *handlers.Handler, protected fiber.Handler) {
	booking := api.Group("/bookings", protected)
	booking.Get("/me", h.GetMyBookings)
	booking.Post("", h.CreateBooking)
	booking.Post("/:id/cancel", h.CancelBooking)
}
