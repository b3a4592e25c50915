package handlers

import (
	"github.com/dancehub/marketplace/apperrors"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreateReservationRequest struct {
	UserID     string `json:"userId,omitempty" validate:"omitempty,uuid"`
	ScheduleID string `json:"scheduleId" validate:"required,uuid"`
}

type CheckInRequest struct {
	QRCodeData string `json:"qrCodeData" validate:"required"`
}

func (h *Handler) CreateReservation(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	var req CreateReservationRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	if req.UserID != "" && req.UserID != userID.String() {
		return h.respondError(c, apperrors.Forbidden("You can only reserve for yourself"))
	}

	result, err := h.Reservations.Create(c.UserContext(), userID, uuid.MustParse(req.ScheduleID))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *Handler) CancelReservation(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	reservationID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.Reservations.Cancel(c.UserContext(), userID, reservationID); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Reservation cancelled"})
}

func (h *Handler) ListMyReservations(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	reservations, err := h.Reservations.ListMine(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(reservations)
}

func (h *Handler) ListScheduleReservations(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	scheduleID, err := paramID(c, "scheduleId")
	if err != nil {
		return h.respondError(c, err)
	}
	reservations, err := h.Reservations.ListForSchedule(c.UserContext(), coachID, scheduleID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(reservations)
}

func (h *Handler) CheckInReservation(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	scheduleID, err := paramID(c, "scheduleId")
	if err != nil {
		return h.respondError(c, err)
	}
	var req CheckInRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	reservation, err := h.Reservations.CheckIn(c.UserContext(), coachID, scheduleID, req.QRCodeData)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(reservation)
}
