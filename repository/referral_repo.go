package repository

import (
	"context"

	"github.com/dancehub/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReferralRepository interface {
	// RecordActivity inserts the activity and bumps the referrer's stats.
	RecordActivity(ctx context.Context, activity *models.CoachReferralActivity) error
	GetStats(ctx context.Context, referrerID uuid.UUID) (*models.CoachReferralStats, error)
	ListActivities(ctx context.Context, referrerID uuid.UUID) ([]models.CoachReferralActivity, error)
}

type referralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &referralRepository{db: db}
}

func (r *referralRepository) RecordActivity(ctx context.Context, activity *models.CoachReferralActivity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(activity).Error; err != nil {
			return err
		}
		stats := models.CoachReferralStats{
			ReferrerID:     activity.ReferrerID,
			TotalReferrals: 1,
			TotalRevenue:   activity.Amount,
			PendingRewards: 1,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "referrer_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_referrals": gorm.Expr("coach_referral_stats.total_referrals + 1"),
				"total_revenue":   gorm.Expr("coach_referral_stats.total_revenue + ?", activity.Amount),
				"pending_rewards": gorm.Expr("coach_referral_stats.pending_rewards + 1"),
				"updated_at":      gorm.Expr("NOW()"),
			}),
		}).Create(&stats).Error
	})
}

func (r *referralRepository) GetStats(ctx context.Context, referrerID uuid.UUID) (*models.CoachReferralStats, error) {
	var stats models.CoachReferralStats
	if err := r.db.WithContext(ctx).First(&stats, "referrer_id = ?", referrerID).Error; err != nil {
		return nil, translate(err)
	}
	return &stats, nil
}

func (r *referralRepository) ListActivities(ctx context.Context, referrerID uuid.UUID) ([]models.CoachReferralActivity, error) {
	var list []models.CoachReferralActivity
	err := r.db.WithContext(ctx).Where("referrer_id = ?", referrerID).Order("created_at DESC").Find(&list).Error
	return list, err
}
