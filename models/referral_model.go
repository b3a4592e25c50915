package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RewardStatusPending = "pending"
	RewardStatusPaid    = "paid"
)

type CoachReferralActivity struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ReferrerID     uuid.UUID `gorm:"not null;index" json:"referrerId"`
	ReferredUserID uuid.UUID `gorm:"not null;index" json:"referredUserId"`
	CoachID        uuid.UUID `gorm:"not null;index" json:"coachId"`
	ReferralCode   string    `gorm:"size:10;not null" json:"referralCode"`
	PurchaseType   string    `gorm:"size:30;not null" json:"purchaseType"`
	PurchaseID     string    `gorm:"size:64" json:"purchaseId"`
	Amount         float64   `gorm:"type:numeric(10,2)" json:"amount"`
	RewardStatus   string    `gorm:"size:20;not null;default:'pending'" json:"rewardStatus"`

	CreatedAt time.Time `json:"createdAt"`
}

type CoachReferralStats struct {
	ReferrerID     uuid.UUID `gorm:"type:uuid;primary_key" json:"referrerId"`
	TotalReferrals int       `gorm:"not null;default:0" json:"totalReferrals"`
	TotalRevenue   float64   `gorm:"type:numeric(12,2);not null;default:0" json:"totalRevenue"`
	PendingRewards int       `gorm:"not null;default:0" json:"pendingRewards"`

	UpdatedAt time.Time `json:"updatedAt"`
}
