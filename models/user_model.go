package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleStudent = "student"
	RoleCoach   = "coach"
	RoleAdmin   = "admin"
)

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	FullName string    `gorm:"size:255;not null" json:"fullName"`
	Email    string    `gorm:"size:255;not null;unique" json:"email"`
	Password string    `gorm:"not null" json:"-"`
	Role     string    `gorm:"size:20;not null;default:'student'" json:"role"`

	ReferralCode   *string `gorm:"size:10;unique" json:"referralCode"`
	ReferredByCode *string `gorm:"size:10" json:"referredByCode,omitempty"`
	CreditBalance  float64 `gorm:"type:numeric(10,2);default:0.00" json:"creditBalance"`

	ProfilePictureURL *string `gorm:"size:255" json:"profilePictureUrl,omitempty"`
	IsActive          bool    `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Subscription is a platform-wide membership. It is reported alongside the
// booking mode but does not by itself waive course fees.
type Subscription struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID           uuid.UUID `gorm:"not null;index" json:"userId"`
	PlanName         string    `gorm:"size:100" json:"planName"`
	Status           string    `gorm:"size:20;not null;default:'active'" json:"status"`
	CurrentPeriodEnd time.Time `json:"currentPeriodEnd"`

	CreatedAt time.Time `json:"createdAt"`
}

func (s Subscription) IsActive(now time.Time) bool {
	return s.Status == "active" && !s.CurrentPeriodEnd.Before(now)
}
