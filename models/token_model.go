package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TokenTxnPurchase = "purchase"
	TokenTxnUsage    = "usage"
)

// TokenPackage is a coach's prepaid bundle of session tokens.
type TokenPackage struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CoachID      uuid.UUID `gorm:"not null;index" json:"coachId"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Tokens       int       `gorm:"not null" json:"tokens"`
	Price        float64   `gorm:"type:numeric(10,2);not null" json:"price"`
	ValidityDays int       `gorm:"not null;default:0" json:"validityDays"`
	IsActive     bool      `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type StudentTokenPackage struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StudentID       uuid.UUID  `gorm:"not null;uniqueIndex:idx_student_package" json:"studentId"`
	PackageID       uuid.UUID  `gorm:"not null;uniqueIndex:idx_student_package" json:"packageId"`
	CoachID         uuid.UUID  `gorm:"not null;index" json:"coachId"`
	TotalTokens     int        `gorm:"not null" json:"totalTokens"`
	RemainingTokens int        `gorm:"not null" json:"remainingTokens"`
	PurchasedAt     time.Time  `gorm:"not null" json:"purchasedAt"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`

	Package TokenPackage `gorm:"foreignkey:PackageID" json:"package,omitempty"`
}

func (p StudentTokenPackage) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

type TokenTransaction struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StudentPackageID uuid.UUID  `gorm:"not null;index" json:"studentPackageId"`
	StudentID        uuid.UUID  `gorm:"not null;index" json:"studentId"`
	CoachID          uuid.UUID  `gorm:"not null" json:"coachId"`
	Type             string     `gorm:"size:20;not null" json:"type"`
	Tokens           int        `gorm:"not null" json:"tokens"`
	BookingID        *uuid.UUID `json:"bookingId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
