package handlers

import (
	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type CreateTokenPackageRequest struct {
	Name         string  `json:"name" validate:"required,max=255"`
	Tokens       int     `json:"tokens" validate:"required,gt=0"`
	Price        float64 `json:"price" validate:"gte=0"`
	ValidityDays int     `json:"validityDays" validate:"gte=0"`
}

type PurchaseRequest struct {
	PaymentMethod string `json:"paymentMethod,omitempty" validate:"omitempty,oneof=stripe credit"`
	StripeMethod  string `json:"stripePaymentMethod,omitempty" validate:"omitempty,oneof=twint card both"`
	OptionID      string `json:"optionId,omitempty" validate:"omitempty,uuid"`
	ReferralCode  string `json:"referralCode,omitempty"`
}

func (h *Handler) CreateTokenPackage(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	var req CreateTokenPackageRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	pkg, err := h.Tokens.CreatePackage(c.UserContext(), services.CreateTokenPackageInput{
		CoachID:      coachID,
		Name:         req.Name,
		Tokens:       req.Tokens,
		Price:        req.Price,
		ValidityDays: req.ValidityDays,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pkg)
}

func (h *Handler) ListCoachTokenPackages(c *fiber.Ctx) error {
	coachID, err := paramID(c, "coachId")
	if err != nil {
		return h.respondError(c, err)
	}
	packages, err := h.Tokens.ListPackages(c.UserContext(), coachID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(packages)
}

func (h *Handler) PurchaseTokenPackage(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	packageID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req PurchaseRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	result, err := h.Tokens.Purchase(c.UserContext(), services.TokenPurchaseInput{
		StudentID:     studentID,
		PackageID:     packageID,
		PaymentMethod: req.PaymentMethod,
		StripeMethod:  req.StripeMethod,
		ReferralCode:  req.ReferralCode,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	if result.Checkout != nil {
		return c.Status(fiber.StatusAccepted).JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetMyTokens lists the student's usable packages for one coach.
func (h *Handler) GetMyTokens(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	coachID, err := uuid.Parse(c.Query("coachId"))
	if err != nil {
		return h.respondError(c, apperrors.Validation("coachId query parameter is required"))
	}
	packages, err := h.Tokens.GetByStudentAndCoach(c.UserContext(), studentID, coachID)
	if err != nil {
		return h.respondError(c, err)
	}

	balance := 0
	for _, p := range packages {
		balance += p.RemainingTokens
	}
	return c.JSON(fiber.Map{"balance": balance, "packages": packages})
}

func (h *Handler) GetMyTokenTransactions(c *fiber.Ctx) error {
	studentID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	txns, err := h.Tokens.Transactions(c.UserContext(), studentID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(txns)
}
