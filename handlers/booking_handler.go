package handlers

import (
	"github.com/dancehub/marketplace/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	CourseID         string `json:"courseId" validate:"required,uuid"`
	ScheduledDate    string `json:"scheduledDate" validate:"required"`
	PaymentMethod    string `json:"paymentMethod,omitempty" validate:"omitempty,oneof=stripe credit"`
	StripeMethod     string `json:"stripePaymentMethod,omitempty" validate:"omitempty,oneof=twint card both"`
	GiftCardCode     string `json:"giftCardCode,omitempty"`
	DiscountCardCode string `json:"discountCardCode,omitempty"`
	ReferralCode     string `json:"referralCode,omitempty"`
}

func (h *Handler) CreateBooking(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	var req CreateBookingRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	scheduled, err := parseDate(req.ScheduledDate)
	if err != nil {
		return h.respondError(c, err)
	}

	result, err := h.Bookings.Book(c.UserContext(), services.BookInput{
		StudentID:        studentID,
		CourseID:         uuid.MustParse(req.CourseID),
		ScheduledDate:    *scheduled,
		PaymentMethod:    req.PaymentMethod,
		StripeMethod:     req.StripeMethod,
		GiftCardCode:     req.GiftCardCode,
		DiscountCardCode: req.DiscountCardCode,
		ReferralCode:     req.ReferralCode,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	status := fiber.StatusCreated
	if result.Checkout != nil {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(result)
}

func (h *Handler) CancelBooking(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	bookingID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	booking, err := h.Bookings.Cancel(c.UserContext(), studentID, bookingID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(booking)
}

func (h *Handler) GetMyBookings(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	bookings, err := h.Bookings.ListMine(c.UserContext(), studentID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(bookings)
}

// GetBookingMode reports how the current user would pay for a course right now.
func (h *Handler) GetBookingMode(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	courseID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	user, err := h.Auth.Me(c.UserContext(), userID.String())
	if err != nil {
		return h.respondError(c, err)
	}
	course, err := h.Courses.Get(c.UserContext(), courseID)
	if err != nil {
		return h.respondError(c, err)
	}

	mode, err := h.Resolver.Resolve(c.UserContext(), user, course)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(mode)
}
