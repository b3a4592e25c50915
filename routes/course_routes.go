package routes

import (
	"github.com/dancehub/marketplace/handlers"
	"github.com/dancehub/marketplace/middleware"
	"github.com/gofiber/fiber/v2"
)

func CourseRoutes(api fiber.Router, h *handlers.Handler, protected fiber.Handler) {
	api.Get("/courses/:id/booking-mode", protected, h.GetBookingMode)

	coach := api.Group("/coach/courses", protected, middleware.CoachRequired())
	coach.Post("", h.CreateCourse)
	coach.Put("/:id", h.UpdateCourse)
	coach.Post("/:id/schedules", h.AddCourseSchedule)
	coach.Post("/:id/boost", h.BoostCourse)
}
