package routes

import (
	"github.com/dancehub/marketplace/handlers"
	"github.com/gofiber/fiber/v2"
)

func PublicRoutes(api fiber.Router, h *handlers.Handler) {
	api.Get("/courses", h.ListCourses)
	api.Get("/courses/:id", h.GetCourse)
	api.Get("/coaches/:coachId/offers", h.ListCoachOffers)
	api.Get("/coaches/:coachId/token-packages", h.ListCoachTokenPackages)
	api.Get("/offers/:id", h.GetOffer)
}
