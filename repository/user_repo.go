package repository

import (
	"context"
	"time"

	"github.com/dancehub/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByReferralCode(ctx context.Context, code string) (*models.User, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
	DebitCredit(ctx context.Context, userID uuid.UUID, amount float64) error
	AddCredit(ctx context.Context, userID uuid.UUID, amount float64) error
	ActiveSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) FindByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("referral_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *userRepository) DebitCredit(ctx context.Context, userID uuid.UUID, amount float64) error {
	return requireRow(r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND credit_balance >= ?", userID, amount).
		Update("credit_balance", gorm.Expr("credit_balance - ?", amount)))
}

func (r *userRepository) AddCredit(ctx context.Context, userID uuid.UUID, amount float64) error {
	return requireRow(r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("credit_balance", gorm.Expr("credit_balance + ?", amount)))
}

func (r *userRepository) ActiveSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND current_period_end >= ?", userID, "active", now).
		Order("current_period_end DESC").
		First(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}
