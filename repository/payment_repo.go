package repository

import (
	"context"

	"github.com/dancehub/marketplace/models"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindBySession(ctx context.Context, sessionID string) (*models.Payment, error)
	// Transition moves a payment from one status to another;
	// ErrConditionFailed means it was not in the from status.
	Transition(ctx context.Context, sessionID, from, to string) error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return translate(r.db.WithContext(ctx).Create(payment).Error)
}

func (r *paymentRepository) FindBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("provider_session_id = ?", sessionID).First(&payment).Error; err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (r *paymentRepository) Transition(ctx context.Context, sessionID, from, to string) error {
	return requireRow(r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("provider_session_id = ? AND status = ?", sessionID, from).
		Update("status", to))
}
