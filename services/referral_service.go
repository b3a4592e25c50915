package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dancehub/marketplace/events"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ReferralPurchase struct {
	Code         string
	BuyerID      uuid.UUID
	CoachID      uuid.UUID
	PurchaseType string
	PurchaseID   string
	Amount       float64
}

type ReferralStats struct {
	Stats      models.CoachReferralStats      `json:"stats"`
	Activities []models.CoachReferralActivity `json:"activities"`
}

type ReferralService struct {
	users     repository.UserRepository
	referrals repository.ReferralRepository
	events    events.Emitter
	log       *logrus.Logger
}

func NewReferralService(users repository.UserRepository, referrals repository.ReferralRepository, emitter events.Emitter, log *logrus.Logger) *ReferralService {
	return &ReferralService{users: users, referrals: referrals, events: emitter, log: log}
}

// TrackPurchase records a referral for a completed purchase. It never
// fails the purchase: every problem is logged and dropped.
func (s *ReferralService) TrackPurchase(ctx context.Context, p ReferralPurchase) {
	code := strings.ToUpper(strings.TrimSpace(p.Code))
	if code == "" {
		return
	}
	entry := s.log.WithFields(logrus.Fields{"referralCode": code, "buyerId": p.BuyerID, "purchaseType": p.PurchaseType})

	referrer, err := s.users.FindByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			entry.Info("referral code does not match any user")
			return
		}
		entry.WithError(err).Error("referral lookup failed")
		return
	}
	if referrer.ID == p.BuyerID {
		entry.Info("ignoring self referral")
		return
	}

	activity := &models.CoachReferralActivity{
		ReferrerID:     referrer.ID,
		ReferredUserID: p.BuyerID,
		CoachID:        p.CoachID,
		ReferralCode:   code,
		PurchaseType:   p.PurchaseType,
		PurchaseID:     p.PurchaseID,
		Amount:         p.Amount,
		RewardStatus:   models.RewardStatusPending,
	}
	if err := s.referrals.RecordActivity(ctx, activity); err != nil {
		entry.WithError(err).Error("failed to record referral activity")
		return
	}
	entry.WithField("referrerId", referrer.ID).Info("referral recorded")
	s.events.Emit(ctx, events.ReferralRecorded, activity)
}

func (s *ReferralService) Stats(ctx context.Context, referrerID uuid.UUID) (*ReferralStats, error) {
	stats, err := s.referrals.GetStats(ctx, referrerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	out := &ReferralStats{Stats: models.CoachReferralStats{ReferrerID: referrerID}}
	if stats != nil {
		out.Stats = *stats
	}
	out.Activities, err = s.referrals.ListActivities(ctx, referrerID)
	if err != nil {
		return nil, err
	}
	return out, nil
}
