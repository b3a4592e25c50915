package routes

import (
	"github.com/dancehub/marketplace/handlers"
	"github.com/dancehub/marketplace/middleware"
	"github.com/gofiber/fiber/v2"
)

func ReservationRoutes(api fiber.Router, h *handlers.Handler, protected fiber.Handler) {
	reservations := api.Group("/reservations", protected)
	reservations.Post("", h.CreateReservation)
	reservations.Get("/me", h.ListMyReservations)
	reservations.Post("/:id/cancel", h.CancelReservation)

	coach := api.Group("/coach/schedules/:scheduleId", protected, middleware.CoachRequired())
	coach.Get("/reservations", h.ListScheduleReservations)
	coach.Post("/check-in", h.CheckInReservation)
}
