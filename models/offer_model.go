package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	OfferPurchaseCompleted = "completed"
	OfferPurchasePending   = "pending"
	OfferPurchaseCancelled = "cancelled"
)

type Offer struct {
	ID             uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CoachID        uuid.UUID     `gorm:"not null;index" json:"coachId"`
	Title          string        `gorm:"size:255;not null" json:"title"`
	Description    string        `gorm:"type:text" json:"description"`
	Price          float64       `gorm:"type:numeric(10,2);not null" json:"price"`
	DurationDays   int           `gorm:"not null;default:0" json:"durationDays"`
	PaymentMethods []string      `gorm:"serializer:json" json:"paymentMethods"`
	IsActive       bool          `gorm:"default:true" json:"isActive"`
	Options        []OfferOption `gorm:"foreignkey:OfferID" json:"options,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (o Offer) AcceptsPaymentMethod(method string) bool {
	if len(o.PaymentMethods) == 0 {
		return true
	}
	for _, m := range o.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

type OfferOption struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OfferID  uuid.UUID `gorm:"not null;index" json:"offerId"`
	Label    string    `gorm:"size:255;not null" json:"label"`
	Price    float64   `gorm:"type:numeric(10,2);not null" json:"price"`
	Sessions int       `gorm:"default:0" json:"sessions"`
}

type OfferPurchase struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PurchaserID     uuid.UUID  `gorm:"not null;index:idx_purchaser_offer" json:"purchaserId"`
	OfferID         uuid.UUID  `gorm:"not null;index:idx_purchaser_offer" json:"offerId"`
	OptionID        *uuid.UUID `json:"optionId,omitempty"`
	CoachID         *uuid.UUID `gorm:"index" json:"coachId,omitempty"`
	Status          string     `gorm:"size:20;not null" json:"status"`
	AmountPaid      float64    `gorm:"type:numeric(10,2)" json:"amountPaid"`
	PaymentMethod   string     `gorm:"size:30" json:"paymentMethod"`
	StripeSessionID *string    `gorm:"size:255;unique" json:"stripeSessionId,omitempty"`
	ExpirationDate  *time.Time `json:"expirationDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// CoversCoach reports whether the purchase grants free booking for courses
// of coachID. The coach must match exactly.
func (p OfferPurchase) CoversCoach(coachID uuid.UUID, now time.Time) bool {
	if p.Status != OfferPurchaseCompleted || p.CoachID == nil || *p.CoachID == uuid.Nil {
		return false
	}
	if *p.CoachID != coachID {
		return false
	}
	return p.ExpirationDate == nil || !p.ExpirationDate.Before(now)
}
