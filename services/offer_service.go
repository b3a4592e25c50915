package services

import (
	"context"
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/events"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/notifications"
	"github.com/dancehub/marketplace/payments"
	"github.com/dancehub/marketplace/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type CreateOfferInput struct {
	CoachID        uuid.UUID
	Title          string
	Description    string
	Price          float64
	DurationDays   int
	PaymentMethods []string
	Options        []models.OfferOption
}

type OfferPurchaseInput struct {
	UserID        uuid.UUID
	OfferID       uuid.UUID
	OptionID      *uuid.UUID
	PaymentMethod string
	StripeMethod  string
	ReferralCode  string
}

type OfferPurchaseResult struct {
	Purchase *models.OfferPurchase     `json:"purchase,omitempty"`
	Checkout *payments.CheckoutSession `json:"checkout,omitempty"`
}

type OfferService struct {
	offers    repository.OfferRepository
	users     repository.UserRepository
	checkout  *CheckoutStarter
	notifier  Notifier
	mailer    Mailer
	referrals ReferralTracker
	events    events.Emitter
	log       *logrus.Logger
	now       Clock
}

func NewOfferService(offers repository.OfferRepository, users repository.UserRepository, checkout *CheckoutStarter,
	notifier Notifier, mailer Mailer, referrals ReferralTracker, emitter events.Emitter, log *logrus.Logger) *OfferService {
	return &OfferService{
		offers: offers, users: users, checkout: checkout, notifier: notifier, mailer: mailer,
		referrals: referrals, events: emitter, log: log, now: time.Now,
	}
}

func (s *OfferService) Create(ctx context.Context, in CreateOfferInput) (*models.Offer, error) {
	if in.Price < 0 {
		return nil, apperrors.Validation("Price cannot be negative")
	}
	for _, m := range in.PaymentMethods {
		switch m {
		case PaymentMethodCredit, payments.MethodCard, payments.MethodTwint:
		default:
			return nil, apperrors.Validation("Unsupported payment method: " + m)
		}
	}
	offer := &models.Offer{
		CoachID: in.CoachID, Title: in.Title, Description: in.Description, Price: in.Price,
		DurationDays: in.DurationDays, PaymentMethods: in.PaymentMethods, IsActive: true, Options: in.Options,
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *OfferService) Get(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Offer not found")
	}
	return offer, nil
}

func (s *OfferService) ListByCoach(ctx context.Context, coachID uuid.UUID) ([]models.Offer, error) {
	return s.offers.ListByCoach(ctx, coachID)
}

func (s *OfferService) ListMyPurchases(ctx context.Context, userID uuid.UUID) ([]models.OfferPurchase, error) {
	return s.offers.ListPurchasesByUser(ctx, userID)
}

func priceFor(offer *models.Offer, optionID *uuid.UUID) (float64, string, error) {
	if optionID == nil {
		return offer.Price, offer.Title, nil
	}
	for _, o := range offer.Options {
		if o.ID == *optionID {
			return o.Price, offer.Title + " - " + o.Label, nil
		}
	}
	return 0, "", apperrors.NotFound("Offer option not found")
}

// stripeMethodName maps the checkout selector to the name an offer lists.
func stripeMethodName(m string) string {
	if m == payments.MethodTwint {
		return payments.MethodTwint
	}
	return payments.MethodCard
}

func (s *OfferService) Purchase(ctx context.Context, in OfferPurchaseInput) (*OfferPurchaseResult, error) {
	offer, err := s.Get(ctx, in.OfferID)
	if err != nil {
		return nil, err
	}
	if !offer.IsActive {
		return nil, apperrors.New(apperrors.KindBusinessRule, "offer_inactive", "Offer is not available")
	}
	price, label, err := priceFor(offer, in.OptionID)
	if err != nil {
		return nil, err
	}

	if in.PaymentMethod == PaymentMethodCredit {
		if !offer.AcceptsPaymentMethod(PaymentMethodCredit) {
			return nil, apperrors.ErrPaymentMethod
		}
		if err := debitCredit(ctx, s.users, in.UserID, price); err != nil {
			return nil, err
		}
		purchase, err := s.CompletePurchase(ctx, CompleteOfferInput{
			UserID: in.UserID, OfferID: offer.ID, OptionID: in.OptionID, Amount: price,
			PaymentMethod: PaymentMethodCredit, ReferralCode: in.ReferralCode,
		})
		if err != nil {
			if refundErr := s.users.AddCredit(ctx, in.UserID, price); refundErr != nil {
				s.log.WithFields(logrus.Fields{"userId": in.UserID, "error": refundErr}).Error("failed to refund credit")
			}
			return nil, err
		}
		return &OfferPurchaseResult{Purchase: purchase}, nil
	}

	if !offer.AcceptsPaymentMethod(stripeMethodName(in.StripeMethod)) && !offer.AcceptsPaymentMethod(payments.MethodCard) {
		return nil, apperrors.ErrPaymentMethod
	}
	pc := payments.PurchaseContext{
		Type:         models.PurchaseTypeOffer,
		OfferID:      offer.ID.String(),
		ReferralCode: in.ReferralCode,
	}
	if in.OptionID != nil {
		pc.OptionID = in.OptionID.String()
	}
	session, err := s.checkout.Start(ctx, StartCheckout{
		UserID: in.UserID, Amount: price, Description: label, PaymentMethod: in.StripeMethod, Context: pc,
	})
	if err != nil {
		return nil, err
	}
	return &OfferPurchaseResult{Checkout: session}, nil
}

type CompleteOfferInput struct {
	UserID          uuid.UUID
	OfferID         uuid.UUID
	OptionID        *uuid.UUID
	Amount          float64
	PaymentMethod   string
	StripeSessionID *string
	ReferralCode    string
}

// CompletePurchase records a paid offer. The purchase is scoped to the
// offer's coach and expires after the offer's duration.
func (s *OfferService) CompletePurchase(ctx context.Context, in CompleteOfferInput) (*models.OfferPurchase, error) {
	offer, err := s.Get(ctx, in.OfferID)
	if err != nil {
		return nil, err
	}
	coachID := offer.CoachID
	purchase := &models.OfferPurchase{
		PurchaserID:     in.UserID,
		OfferID:         offer.ID,
		OptionID:        in.OptionID,
		CoachID:         &coachID,
		Status:          models.OfferPurchaseCompleted,
		AmountPaid:      in.Amount,
		PaymentMethod:   in.PaymentMethod,
		StripeSessionID: in.StripeSessionID,
	}
	if offer.DurationDays > 0 {
		exp := s.now().AddDate(0, 0, offer.DurationDays)
		purchase.ExpirationDate = &exp
	}
	if err := s.offers.CreatePurchase(ctx, purchase); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"purchaseId": purchase.ID, "offerId": offer.ID, "userId": in.UserID}).Info("offer purchased")

	s.notifier.Notify(ctx, in.UserID, models.NotificationOffer, "Offer activated",
		offer.Title+" is now active", map[string]string{"offerId": offer.ID.String()})
	if user, err := s.users.FindByID(ctx, in.UserID); err == nil {
		coachName := ""
		if coach, err := s.users.FindByID(ctx, offer.CoachID); err == nil {
			coachName = coach.FullName
		}
		s.mailer.OfferConfirmation(ctx, notifications.OfferEmail{
			Name: user.FullName, Email: user.Email, OfferTitle: offer.Title, CoachName: coachName,
			Amount: in.Amount, ValidUntil: purchase.ExpirationDate,
		})
	}
	s.referrals.TrackPurchase(ctx, ReferralPurchase{
		Code: in.ReferralCode, BuyerID: in.UserID, CoachID: offer.CoachID,
		PurchaseType: models.PurchaseTypeOffer, PurchaseID: purchase.ID.String(), Amount: in.Amount,
	})
	s.events.Emit(ctx, events.OfferPurchased, purchase)
	return purchase, nil
}
