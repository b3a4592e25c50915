package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationBooking  = "booking"
	NotificationOffer    = "offer"
	NotificationGiftCard = "gift_card"
	NotificationTokens   = "tokens"
)

type Notification struct {
	ID      uuid.UUID         `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID  uuid.UUID         `gorm:"not null;index" json:"userId"`
	Type    string            `gorm:"size:30;not null" json:"type"`
	Title   string            `gorm:"size:255;not null" json:"title"`
	Message string            `gorm:"type:text" json:"message"`
	Data    map[string]string `gorm:"serializer:json" json:"data,omitempty"`
	Read    bool              `gorm:"default:false" json:"read"`

	CreatedAt time.Time `json:"createdAt"`
}
