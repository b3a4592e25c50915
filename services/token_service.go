package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/events"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/payments"
	"github.com/dancehub/marketplace/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type CreateTokenPackageInput struct {
	CoachID      uuid.UUID
	Name         string
	Tokens       int
	Price        float64
	ValidityDays int
}

type TokenPurchaseInput struct {
	StudentID     uuid.UUID
	PackageID     uuid.UUID
	PaymentMethod string
	StripeMethod  string
	ReferralCode  string
}

type TokenPurchaseResult struct {
	StudentPackage *models.StudentTokenPackage `json:"studentPackage,omitempty"`
	Checkout       *payments.CheckoutSession   `json:"checkout,omitempty"`
}

type TokenService struct {
	repo      repository.TokenRepository
	users     repository.UserRepository
	checkout  *CheckoutStarter
	notifier  Notifier
	referrals ReferralTracker
	events    events.Emitter
	log       *logrus.Logger
	now       Clock
}

func NewTokenService(repo repository.TokenRepository, users repository.UserRepository, checkout *CheckoutStarter,
	notifier Notifier, referrals ReferralTracker, emitter events.Emitter, log *logrus.Logger) *TokenService {
	return &TokenService{
		repo: repo, users: users, checkout: checkout, notifier: notifier,
		referrals: referrals, events: emitter, log: log, now: time.Now,
	}
}

// GetByStudentAndCoach returns the student's non-expired packages for a
// coach, soonest expiry first.
func (s *TokenService) GetByStudentAndCoach(ctx context.Context, studentID, coachID uuid.UUID) ([]models.StudentTokenPackage, error) {
	all, err := s.repo.ListStudentPackages(ctx, studentID, coachID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := make([]models.StudentTokenPackage, 0, len(all))
	for _, p := range all {
		if !p.IsExpired(now) {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i].ExpiresAt, active[j].ExpiresAt
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})
	return active, nil
}

// SufficientPackage picks the first package able to cover sessions tokens.
func SufficientPackage(packages []models.StudentTokenPackage, sessions int) *models.StudentTokenPackage {
	for i := range packages {
		if packages[i].RemainingTokens >= sessions {
			return &packages[i]
		}
	}
	return nil
}

// UseForCourse debits course.Sessions tokens from one package. Nothing is
// written when no package holds enough.
func (s *TokenService) UseForCourse(ctx context.Context, studentID uuid.UUID, course *models.Course, bookingID *uuid.UUID) (*models.StudentTokenPackage, error) {
	sessions := course.Sessions
	if sessions < 1 {
		sessions = 1
	}
	packages, err := s.GetByStudentAndCoach(ctx, studentID, course.CoachID)
	if err != nil {
		return nil, err
	}
	pkg := SufficientPackage(packages, sessions)
	if pkg == nil {
		return nil, apperrors.ErrInsufficientTokens
	}

	txn := &models.TokenTransaction{
		StudentPackageID: pkg.ID,
		StudentID:        studentID,
		CoachID:          course.CoachID,
		Type:             models.TokenTxnUsage,
		Tokens:           sessions,
		BookingID:        bookingID,
	}
	if err := s.repo.Debit(ctx, pkg.ID, sessions, txn); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, apperrors.ErrInsufficientTokens
		}
		return nil, err
	}
	pkg.RemainingTokens -= sessions

	s.log.WithFields(logrus.Fields{"studentId": studentID, "packageId": pkg.PackageID, "tokens": sessions}).Info("tokens used")
	s.events.Emit(ctx, events.TokensUsed, txn)
	return pkg, nil
}

// Restore returns tokens debited by a booking attempt that then failed.
func (s *TokenService) Restore(ctx context.Context, studentPackageID uuid.UUID, tokens int) error {
	return s.repo.Restore(ctx, studentPackageID, tokens)
}

// AddTokens credits a purchased package. Buying the same package again
// tops up the existing record and extends its validity.
func (s *TokenService) AddTokens(ctx context.Context, studentID uuid.UUID, pkg *models.TokenPackage) (*models.StudentTokenPackage, error) {
	now := s.now()
	var expiresAt *time.Time
	if pkg.ValidityDays > 0 {
		t := now.AddDate(0, 0, pkg.ValidityDays)
		expiresAt = &t
	}
	txn := &models.TokenTransaction{
		StudentID: studentID,
		CoachID:   pkg.CoachID,
		Type:      models.TokenTxnPurchase,
		Tokens:    pkg.Tokens,
	}

	existing, err := s.repo.FindStudentPackage(ctx, studentID, pkg.ID)
	switch {
	case err == nil:
		txn.StudentPackageID = existing.ID
		if err := s.repo.AddTokens(ctx, existing.ID, pkg.Tokens, expiresAt, txn); err != nil {
			return nil, err
		}
		existing.TotalTokens += pkg.Tokens
		existing.RemainingTokens += pkg.Tokens
		if expiresAt != nil {
			existing.ExpiresAt = expiresAt
		}
		return existing, nil
	case errors.Is(err, repository.ErrNotFound):
		sp := &models.StudentTokenPackage{
			ID:              uuid.New(),
			StudentID:       studentID,
			PackageID:       pkg.ID,
			CoachID:         pkg.CoachID,
			TotalTokens:     pkg.Tokens,
			RemainingTokens: pkg.Tokens,
			PurchasedAt:     now,
			ExpiresAt:       expiresAt,
		}
		txn.StudentPackageID = sp.ID
		if err := s.repo.CreateStudentPackage(ctx, sp, txn); err != nil {
			return nil, err
		}
		return sp, nil
	default:
		return nil, err
	}
}

func (s *TokenService) CreatePackage(ctx context.Context, in CreateTokenPackageInput) (*models.TokenPackage, error) {
	if in.Tokens <= 0 {
		return nil, apperrors.Validation("Tokens must be greater than zero")
	}
	if in.Price < 0 {
		return nil, apperrors.Validation("Price cannot be negative")
	}
	pkg := &models.TokenPackage{
		CoachID: in.CoachID, Name: in.Name, Tokens: in.Tokens, Price: in.Price,
		ValidityDays: in.ValidityDays, IsActive: true,
	}
	if err := s.repo.CreatePackage(ctx, pkg); err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *TokenService) ListPackages(ctx context.Context, coachID uuid.UUID) ([]models.TokenPackage, error) {
	return s.repo.ListPackagesByCoach(ctx, coachID)
}

func (s *TokenService) Transactions(ctx context.Context, studentID uuid.UUID) ([]models.TokenTransaction, error) {
	return s.repo.ListTransactions(ctx, studentID)
}

// Purchase pays for a package with in-app credit or starts a Stripe checkout.
func (s *TokenService) Purchase(ctx context.Context, in TokenPurchaseInput) (*TokenPurchaseResult, error) {
	pkg, err := s.repo.FindPackage(ctx, in.PackageID)
	if err != nil {
		return nil, notFound(err, "Token package not found")
	}
	if !pkg.IsActive {
		return nil, apperrors.New(apperrors.KindBusinessRule, "package_inactive", "Token package is not available")
	}

	if in.PaymentMethod == PaymentMethodCredit {
		if err := debitCredit(ctx, s.users, in.StudentID, pkg.Price); err != nil {
			return nil, err
		}
		sp, err := s.CompletePurchase(ctx, in.StudentID, pkg.ID, pkg.Price, in.ReferralCode, "")
		if err != nil {
			if refundErr := s.users.AddCredit(ctx, in.StudentID, pkg.Price); refundErr != nil {
				s.log.WithFields(logrus.Fields{"studentId": in.StudentID, "error": refundErr}).Error("failed to refund credit")
			}
			return nil, err
		}
		return &TokenPurchaseResult{StudentPackage: sp}, nil
	}

	session, err := s.checkout.Start(ctx, StartCheckout{
		UserID:        in.StudentID,
		Amount:        pkg.Price,
		Description:   pkg.Name,
		PaymentMethod: in.StripeMethod,
		Context: payments.PurchaseContext{
			Type:           models.PurchaseTypeTokenPackage,
			TokenPackageID: pkg.ID.String(),
			ReferralCode:   in.ReferralCode,
		},
	})
	if err != nil {
		return nil, err
	}
	return &TokenPurchaseResult{Checkout: session}, nil
}

// CompletePurchase credits the tokens once payment has been taken.
func (s *TokenService) CompletePurchase(ctx context.Context, studentID, packageID uuid.UUID, amount float64, referralCode, purchaseID string) (*models.StudentTokenPackage, error) {
	pkg, err := s.repo.FindPackage(ctx, packageID)
	if err != nil {
		return nil, notFound(err, "Token package not found")
	}
	sp, err := s.AddTokens(ctx, studentID, pkg)
	if err != nil {
		return nil, err
	}
	if purchaseID == "" {
		purchaseID = sp.ID.String()
	}

	s.notifier.Notify(ctx, studentID, models.NotificationTokens, "Tokens added",
		pkg.Name+" has been added to your account", map[string]string{"packageId": pkg.ID.String()})
	s.referrals.TrackPurchase(ctx, ReferralPurchase{
		Code: referralCode, BuyerID: studentID, CoachID: pkg.CoachID,
		PurchaseType: models.PurchaseTypeTokenPackage, PurchaseID: purchaseID, Amount: amount,
	})
	s.events.Emit(ctx, events.TokensPurchased, sp)
	return sp, nil
}
