package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	PurchaseTypeBooking      = "booking"
	PurchaseTypeTokenPackage = "token_package"
	PurchaseTypeOffer        = "offer"
	PurchaseTypeBoost        = "boost"
	PurchaseTypeGiftCard     = "gift_card"
)

// Payment records money movements for direct-payment purchases. Stripe
// sessions are keyed by ProviderSessionID so webhook replays are detected.
type Payment struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID            uuid.UUID  `gorm:"not null;index" json:"userId"`
	BookingID         *uuid.UUID `gorm:"index" json:"bookingId,omitempty"`
	PurchaseType      string     `gorm:"size:30;not null" json:"purchaseType"`
	Amount            float64    `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency          string     `gorm:"size:3;default:'CHF'" json:"currency"`
	Provider          string     `gorm:"size:30;not null" json:"provider"`
	ProviderSessionID *string    `gorm:"size:255;unique" json:"providerSessionId,omitempty"`
	Status            string     `gorm:"size:20;not null" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
