package handlers

import (
	"time"

	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/services"
	"github.com/gofiber/fiber/v2"
)

type RegisterRequest struct {
	FullName       string `json:"fullName" validate:"required,min=2"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6"`
	Role           string `json:"role" validate:"omitempty,oneof=student coach"`
	ReferredByCode string `json:"referredByCode,omitempty"`
}

type UserResponse struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	ReferralCode string    `json:"referralCode,omitempty"`
	Credit       float64   `json:"creditBalance"`
	CreatedAt    time.Time `json:"createdAt"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func toUserResponse(u *models.User) UserResponse {
	resp := UserResponse{
		ID:        u.ID.String(),
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      u.Role,
		Credit:    u.CreditBalance,
		CreatedAt: u.CreatedAt,
	}
	if u.ReferralCode != nil {
		resp.ReferralCode = *u.ReferralCode
	}
	return resp
}

func (h *Handler) RegisterUser(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	user, err := h.Auth.Register(c.UserContext(), services.RegisterInput{
		FullName:       req.FullName,
		Email:          req.Email,
		Password:       req.Password,
		Role:           req.Role,
		ReferredByCode: req.ReferredByCode,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
}

func (h *Handler) LoginUser(c *fiber.Ctx) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	token, user, err := h.Auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{"token": token, "user": toUserResponse(user)})
}

func (h *Handler) GetMe(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	user, err := h.Auth.Me(c.UserContext(), userID.String())
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(toUserResponse(user))
}
