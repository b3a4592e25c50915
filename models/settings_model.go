package models

import (
	"time"

	"github.com/google/uuid"
)

const SettingStripeSecretKey = "stripe_secret_key"

type Setting struct {
	Key       string    `gorm:"size:100;primary_key" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CheckoutData keeps bulky checkout payloads out of Stripe metadata.
type CheckoutData struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID    string    `gorm:"size:64;not null;index" json:"userId"`
	Data      string    `gorm:"type:text;not null" json:"data"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`

	CreatedAt time.Time `json:"createdAt"`
}
