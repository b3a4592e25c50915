package services

import (
	"context"
	"errors"
	"time"

	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/repository"
	"github.com/google/uuid"
)

const (
	ModeSubscription  = "subscription"
	ModeTokens        = "tokens"
	ModePayPerSession = "pay_per_session"
)

// ModeEvidence explains how a booking mode was reached.
type ModeEvidence struct {
	HasActiveSubscription bool       `json:"hasActiveSubscription"`
	HasCoachOffer         bool       `json:"hasCoachOffer"`
	OfferPurchaseID       *uuid.UUID `json:"offerPurchaseId,omitempty"`
	HasValidDiscountCard  bool       `json:"hasValidDiscountCard"`
	DiscountCardID        *uuid.UUID `json:"discountCardId,omitempty"`
	TokenBalance          int        `json:"tokenBalance"`
	TokenPackageID        *uuid.UUID `json:"tokenPackageId,omitempty"`
	RequiredTokens        int        `json:"requiredTokens"`
}

type BookingMode struct {
	Mode     string       `json:"mode"`
	Evidence ModeEvidence `json:"evidence"`
}

// ModeResolver decides how a user pays for a course. It holds no state and
// is evaluated fresh on every booking attempt.
type ModeResolver struct {
	users     repository.UserRepository
	offers    repository.OfferRepository
	discounts repository.DiscountCardRepository
	tokens    *TokenService
	now       Clock
}

func NewModeResolver(users repository.UserRepository, offers repository.OfferRepository,
	discounts repository.DiscountCardRepository, tokens *TokenService) *ModeResolver {
	return &ModeResolver{users: users, offers: offers, discounts: discounts, tokens: tokens, now: time.Now}
}

// Resolve applies a fixed precedence: a coach offer or course discount card
// wins over tokens, and tokens win over paying per session.
func (r *ModeResolver) Resolve(ctx context.Context, user *models.User, course *models.Course) (*BookingMode, error) {
	now := r.now()
	var ev ModeEvidence

	sub, err := r.users.ActiveSubscription(ctx, user.ID, now)
	switch {
	case err == nil:
		ev.HasActiveSubscription = sub.IsActive(now)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	purchases, err := r.offers.ListPurchasesByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for i := range purchases {
		if purchases[i].CoversCoach(course.CoachID, now) {
			ev.HasCoachOffer = true
			ev.OfferPurchaseID = &purchases[i].ID
			break
		}
	}

	cards, err := r.discounts.ListForUser(ctx, user.Email, course.CoachID)
	if err != nil {
		return nil, err
	}
	for i := range cards {
		card := &cards[i]
		if card.CourseID == nil || *card.CourseID != course.ID {
			continue
		}
		if IsDiscountCardValid(card, &course.ID, now) {
			ev.HasValidDiscountCard = true
			ev.DiscountCardID = &card.ID
			break
		}
	}

	ev.RequiredTokens = course.Sessions
	if ev.RequiredTokens < 1 {
		ev.RequiredTokens = 1
	}
	packages, err := r.tokens.GetByStudentAndCoach(ctx, user.ID, course.CoachID)
	if err != nil {
		return nil, err
	}
	for _, p := range packages {
		ev.TokenBalance += p.RemainingTokens
	}
	if pkg := SufficientPackage(packages, ev.RequiredTokens); pkg != nil {
		ev.TokenPackageID = &pkg.ID
	}

	mode := ModePayPerSession
	switch {
	case ev.HasCoachOffer || ev.HasValidDiscountCard:
		mode = ModeSubscription
	case ev.TokenPackageID != nil:
		mode = ModeTokens
	}
	return &BookingMode{Mode: mode, Evidence: ev}, nil
}
