package handlers

import (
	"github.com/dancehub/marketplace/middleware"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreateDiscountCardRequest struct {
	CoachID            string  `json:"coachId,omitempty" validate:"omitempty,uuid"`
	AdvantageType      string  `json:"advantageType,omitempty" validate:"omitempty,oneof=free special_price percentage_discount"`
	DiscountPercentage float64 `json:"discountPercentage" validate:"gte=0,lte=100"`
	Value              float64 `json:"value" validate:"gte=0"`
	Title              string  `json:"title,omitempty" validate:"max=255"`
	Description        string  `json:"description,omitempty"`
	UserEmail          string  `json:"userEmail,omitempty" validate:"omitempty,email"`
	CourseID           string  `json:"courseId,omitempty" validate:"omitempty,uuid"`
	ExpirationDate     string  `json:"expirationDate,omitempty"`
	MaxUsage           *int    `json:"maxUsage,omitempty" validate:"omitempty,gte=0"`
	Code               string  `json:"code,omitempty" validate:"omitempty,alphanum,max=40"`
	QRCodeImage        string  `json:"qrCodeImage,omitempty"`
}

type UpdateDiscountCardRequest struct {
	Title              *string  `json:"title,omitempty"`
	Description        *string  `json:"description,omitempty"`
	IsActive           *bool    `json:"isActive,omitempty"`
	DiscountPercentage *float64 `json:"discountPercentage,omitempty" validate:"omitempty,gt=0,lte=100"`
	Value              *float64 `json:"value,omitempty" validate:"omitempty,gte=0"`
	ExpirationDate     string   `json:"expirationDate,omitempty"`
	MaxUsage           *int     `json:"maxUsage,omitempty" validate:"omitempty,gte=0"`
}

type ValidateDiscountRequest struct {
	Code        string  `json:"code" validate:"required"`
	CoachID     string  `json:"coachId" validate:"required,uuid"`
	CourseID    string  `json:"courseId,omitempty" validate:"omitempty,uuid"`
	OrderAmount float64 `json:"orderAmount" validate:"gte=0"`
}

type RedeemDiscountRequest struct {
	Code          string  `json:"code" validate:"required"`
	CustomerID    string  `json:"customerId" validate:"required"`
	CustomerName  string  `json:"customerName" validate:"required"`
	CustomerEmail string  `json:"customerEmail,omitempty" validate:"omitempty,email"`
	CourseID      string  `json:"courseId,omitempty" validate:"omitempty,uuid"`
	OrderAmount   float64 `json:"orderAmount" validate:"gte=0"`
}

func (h *Handler) CreateDiscountCard(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	var req CreateDiscountCardRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	coachID := userID
	if req.CoachID != "" && middleware.Role(c) == models.RoleAdmin {
		coachID = uuid.MustParse(req.CoachID)
	}
	coach, err := h.Auth.Me(c.UserContext(), coachID.String())
	if err != nil {
		return h.respondError(c, err)
	}
	courseID, err := optionalID(req.CourseID)
	if err != nil {
		return h.respondError(c, err)
	}
	expires, err := parseDate(req.ExpirationDate)
	if err != nil {
		return h.respondError(c, err)
	}

	card, err := h.Discounts.Create(c.UserContext(), services.CreateDiscountCardInput{
		CoachID:            coachID,
		CoachName:          coach.FullName,
		Title:              req.Title,
		Description:        req.Description,
		AdvantageType:      req.AdvantageType,
		DiscountPercentage: req.DiscountPercentage,
		Value:              req.Value,
		UserEmail:          req.UserEmail,
		CourseID:           courseID,
		ExpirationDate:     expires,
		MaxUsage:           req.MaxUsage,
		Code:               req.Code,
		QRCodeImage:        req.QRCodeImage,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(card)
}

func (h *Handler) UpdateDiscountCard(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	cardID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req UpdateDiscountCardRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	expires, err := parseDate(req.ExpirationDate)
	if err != nil {
		return h.respondError(c, err)
	}

	card, err := h.Discounts.Update(c.UserContext(), coachID, cardID, services.UpdateDiscountCardInput{
		Title:              req.Title,
		Description:        req.Description,
		IsActive:           req.IsActive,
		DiscountPercentage: req.DiscountPercentage,
		Value:              req.Value,
		ExpirationDate:     expires,
		MaxUsage:           req.MaxUsage,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(card)
}

func (h *Handler) DeleteDiscountCard(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	cardID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.Discounts.Delete(c.UserContext(), coachID, cardID); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ListMyDiscountCards(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	cards, err := h.Discounts.ListByCoach(c.UserContext(), coachID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(cards)
}

func (h *Handler) ValidateDiscountCard(c *fiber.Ctx) error {
	var req ValidateDiscountRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	courseID, err := optionalID(req.CourseID)
	if err != nil {
		return h.respondError(c, err)
	}

	result, err := h.Discounts.Validate(c.UserContext(), req.Code, uuid.MustParse(req.CoachID), courseID, req.OrderAmount)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{"valid": true, "result": result})
}

// RedeemDiscountCard is called by the coach's scanner; the coach is the
// authenticated user.
func (h *Handler) RedeemDiscountCard(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	var req RedeemDiscountRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	courseID, err := optionalID(req.CourseID)
	if err != nil {
		return h.respondError(c, err)
	}

	result, err := h.Discounts.Redeem(c.UserContext(), services.RedeemDiscountInput{
		Code:          req.Code,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CoachID:       coachID,
		CourseID:      courseID,
		OrderAmount:   req.OrderAmount,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "result": result})
}
