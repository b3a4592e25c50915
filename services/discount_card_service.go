package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/events"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/repository"
	"github.com/dancehub/marketplace/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ValidateDiscountCard applies the discount card rule chain. A nil
// courseID skips the course check, which is how coach-wide validation works.
func ValidateDiscountCard(card *models.DiscountCard, courseID *uuid.UUID, now time.Time) error {
	if !card.IsActive {
		return apperrors.ErrCardInactive
	}
	if card.ExpirationDate != nil && card.ExpirationDate.Before(now) {
		return apperrors.ErrCardExpired
	}
	if card.UsageLimit != models.UnlimitedUsage && card.UsageCount >= card.UsageLimit {
		return apperrors.ErrUsageLimitReached
	}
	if card.CourseID != nil && courseID != nil && *card.CourseID != *courseID {
		return apperrors.ErrCourseMismatch
	}
	return nil
}

func IsDiscountCardValid(card *models.DiscountCard, courseID *uuid.UUID, now time.Time) bool {
	return ValidateDiscountCard(card, courseID, now) == nil
}

// ComputeAdvantage returns the discount and the amount left to pay, both
// rounded to cents.
func ComputeAdvantage(card *models.DiscountCard, orderAmount float64) (discount, final float64) {
	order := decimal.NewFromFloat(orderAmount)
	var finalAmount decimal.Decimal

	switch card.AdvantageType {
	case models.AdvantageFree:
		finalAmount = decimal.Zero
	case models.AdvantageSpecialPrice:
		finalAmount = decimal.Min(decimal.NewFromFloat(card.Value), order)
	default:
		pct := card.DiscountPercentage
		if pct == 0 {
			pct = card.Value
		}
		p := decimal.Min(decimal.Max(decimal.NewFromFloat(pct), decimal.Zero), decimal.NewFromInt(100))
		finalAmount = order.Mul(decimal.NewFromInt(100).Sub(p)).Div(decimal.NewFromInt(100))
	}
	if finalAmount.IsNegative() {
		finalAmount = decimal.Zero
	}
	finalAmount = finalAmount.Round(2)
	return order.Sub(finalAmount).Round(2).InexactFloat64(), finalAmount.InexactFloat64()
}

type CreateDiscountCardInput struct {
	CoachID            uuid.UUID
	CoachName          string
	Title              string
	Description        string
	AdvantageType      string
	DiscountPercentage float64
	Value              float64
	UserEmail          string
	CourseID           *uuid.UUID
	ExpirationDate     *time.Time
	MaxUsage           *int
	Code               string
	QRCodeImage        string
}

type UpdateDiscountCardInput struct {
	Title              *string
	Description        *string
	IsActive           *bool
	DiscountPercentage *float64
	Value              *float64
	ExpirationDate     *time.Time
	MaxUsage           *int
}

type RedeemDiscountInput struct {
	Code          string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CoachID       uuid.UUID
	CourseID      *uuid.UUID
	OrderAmount   float64
}

type DiscountResult struct {
	Card           *models.DiscountCard `json:"card"`
	DiscountAmount float64              `json:"discountAmount"`
	FinalAmount    float64              `json:"finalAmount"`
	PaymentMethod  string               `json:"paymentMethod"`
}

const PaymentMethodDiscountCard = "discount-card"

type DiscountCardService struct {
	repo   repository.DiscountCardRepository
	qr     QRHost
	events events.Emitter
	log    *logrus.Logger
	now    Clock
}

func NewDiscountCardService(repo repository.DiscountCardRepository, qr QRHost, emitter events.Emitter, log *logrus.Logger) *DiscountCardService {
	return &DiscountCardService{repo: repo, qr: qr, events: emitter, log: log, now: time.Now}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *DiscountCardService) Create(ctx context.Context, in CreateDiscountCardInput) (*models.DiscountCard, error) {
	advantage := in.AdvantageType
	if advantage == "" {
		advantage = models.AdvantagePercentageDiscount
	}
	switch advantage {
	case models.AdvantagePercentageDiscount:
		if in.DiscountPercentage <= 0 || in.DiscountPercentage > 100 {
			return nil, apperrors.Validation("Discount percentage must be between 0 and 100")
		}
	case models.AdvantageSpecialPrice:
		if in.Value < 0 {
			return nil, apperrors.Validation("Special price cannot be negative")
		}
	case models.AdvantageFree:
	default:
		return nil, apperrors.Validation("Unknown advantage type")
	}

	code := normalizeCode(in.Code)
	if code == "" {
		generated, err := utils.GenerateDiscountCode(ctx, in.CoachName, in.DiscountPercentage, s.now(), s.repo.CodeExists)
		if err != nil {
			return nil, err
		}
		code = generated
	} else if taken, err := s.repo.CodeExists(ctx, code); err != nil {
		return nil, err
	} else if taken {
		return nil, apperrors.New(apperrors.KindConflict, "code_taken", "Discount code already exists")
	}

	usageLimit := models.UnlimitedUsage
	if in.MaxUsage != nil && *in.MaxUsage > 0 {
		usageLimit = *in.MaxUsage
	}

	card := &models.DiscountCard{
		Code:               code,
		CoachID:            in.CoachID,
		Title:              in.Title,
		Description:        in.Description,
		AdvantageType:      advantage,
		DiscountPercentage: in.DiscountPercentage,
		Value:              in.Value,
		UsageLimit:         usageLimit,
		IsActive:           true,
		ExpirationDate:     in.ExpirationDate,
		CourseID:           in.CourseID,
		QRCodeImage:        in.QRCodeImage,
	}
	if email := strings.TrimSpace(in.UserEmail); email != "" {
		card.UserEmail = &email
	}
	if card.QRCodeImage == "" {
		img, err := s.qr.HostedQR(ctx, code, "discount-cards/"+code)
		if err != nil {
			s.log.WithFields(logrus.Fields{"code": code, "error": err}).Warn("discount card QR upload failed")
		}
		card.QRCodeImage = img
	}

	if err := s.repo.Create(ctx, card); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.New(apperrors.KindConflict, "code_taken", "Discount code already exists")
		}
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"cardId": card.ID, "coachId": in.CoachID, "code": code}).Info("discount card created")
	return card, nil
}

func (s *DiscountCardService) owned(ctx context.Context, coachID, cardID uuid.UUID) (*models.DiscountCard, error) {
	card, err := s.repo.FindByID(ctx, cardID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrCardNotFound.Message)
	}
	if card.CoachID != coachID {
		return nil, apperrors.Forbidden("You can only manage your own discount cards")
	}
	return card, nil
}

func (s *DiscountCardService) Update(ctx context.Context, coachID, cardID uuid.UUID, in UpdateDiscountCardInput) (*models.DiscountCard, error) {
	card, err := s.owned(ctx, coachID, cardID)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		card.Title = *in.Title
	}
	if in.Description != nil {
		card.Description = *in.Description
	}
	if in.IsActive != nil {
		card.IsActive = *in.IsActive
	}
	if in.DiscountPercentage != nil {
		if *in.DiscountPercentage < 0 || *in.DiscountPercentage > 100 {
			return nil, apperrors.Validation("Discount percentage must be between 0 and 100")
		}
		card.DiscountPercentage = *in.DiscountPercentage
	}
	if in.Value != nil {
		card.Value = *in.Value
	}
	if in.ExpirationDate != nil {
		card.ExpirationDate = in.ExpirationDate
	}
	if in.MaxUsage != nil {
		card.UsageLimit = *in.MaxUsage
		if card.UsageLimit <= 0 {
			card.UsageLimit = models.UnlimitedUsage
		}
	}
	if err := s.repo.Update(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *DiscountCardService) Delete(ctx context.Context, coachID, cardID uuid.UUID) error {
	if _, err := s.owned(ctx, coachID, cardID); err != nil {
		return err
	}
	return notFound(s.repo.Delete(ctx, cardID), apperrors.ErrCardNotFound.Message)
}

func (s *DiscountCardService) ListByCoach(ctx context.Context, coachID uuid.UUID) ([]models.DiscountCard, error) {
	return s.repo.ListByCoach(ctx, coachID)
}

func (s *DiscountCardService) find(ctx context.Context, code string) (*models.DiscountCard, error) {
	card, err := s.repo.FindByCode(ctx, normalizeCode(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

func checkScope(card *models.DiscountCard, coachID uuid.UUID, email string) error {
	if card.CoachID != coachID {
		return apperrors.ErrCoachMismatch
	}
	if card.UserEmail != nil && email != "" && !strings.EqualFold(*card.UserEmail, email) {
		return apperrors.ErrUserMismatch
	}
	return nil
}

// Validate checks a code against a coach and optional course without
// touching usage counters.
func (s *DiscountCardService) Validate(ctx context.Context, code string, coachID uuid.UUID, courseID *uuid.UUID, orderAmount float64) (*DiscountResult, error) {
	card, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := ValidateDiscountCard(card, courseID, s.now()); err != nil {
		return nil, err
	}
	if err := checkScope(card, coachID, ""); err != nil {
		return nil, err
	}
	discount, final := ComputeAdvantage(card, orderAmount)
	return &DiscountResult{Card: card, DiscountAmount: discount, FinalAmount: final, PaymentMethod: PaymentMethodDiscountCard}, nil
}

// Redeem validates the card and counts one use. The usage increment is
// conditional, so concurrent redemptions cannot exceed the limit.
func (s *DiscountCardService) Redeem(ctx context.Context, in RedeemDiscountInput) (*DiscountResult, error) {
	if in.OrderAmount < 0 {
		return nil, apperrors.Validation("Order amount cannot be negative")
	}
	card, err := s.find(ctx, in.Code)
	if err != nil {
		return nil, err
	}
	if err := ValidateDiscountCard(card, in.CourseID, s.now()); err != nil {
		return nil, err
	}
	if err := checkScope(card, in.CoachID, in.CustomerEmail); err != nil {
		return nil, err
	}

	discount, final := ComputeAdvantage(card, in.OrderAmount)
	usage := &models.DiscountCardUsage{
		CoachID:        card.CoachID,
		CustomerID:     in.CustomerID,
		CustomerName:   in.CustomerName,
		OrderAmount:    in.OrderAmount,
		DiscountAmount: discount,
		FinalAmount:    final,
	}
	if err := s.repo.IncrementUsage(ctx, card.ID, usage); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, s.explainRejection(ctx, card.ID)
		}
		return nil, err
	}
	card.UsageCount++

	s.log.WithFields(logrus.Fields{"cardId": card.ID, "customerId": in.CustomerID, "finalAmount": final}).Info("discount card redeemed")
	s.events.Emit(ctx, events.DiscountCardUsed, usage)
	return &DiscountResult{Card: card, DiscountAmount: discount, FinalAmount: final, PaymentMethod: PaymentMethodDiscountCard}, nil
}

// Release gives back one use after a later step of the same purchase failed.
func (s *DiscountCardService) Release(ctx context.Context, code string) error {
	card, err := s.find(ctx, code)
	if err != nil {
		return err
	}
	return s.repo.ReleaseUsage(ctx, card.ID)
}

func (s *DiscountCardService) explainRejection(ctx context.Context, cardID uuid.UUID) error {
	card, err := s.repo.FindByID(ctx, cardID)
	if err != nil {
		return apperrors.ErrCardNotFound
	}
	if !card.IsActive {
		return apperrors.ErrCardInactive
	}
	return apperrors.ErrUsageLimitReached
}
