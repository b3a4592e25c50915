package repository

import (
	"context"
	"time"

	"github.com/dancehub/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context, key string) (string, error) {
	var s models.Setting
	if err := r.db.WithContext(ctx).First(&s, "key = ?", key).Error; err != nil {
		return "", translate(err)
	}
	return s.Value, nil
}

func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.Setting{Key: key, Value: value}).Error
}

type CheckoutDataRepository interface {
	Create(ctx context.Context, data *models.CheckoutData) error
	FindValid(ctx context.Context, id uuid.UUID, now time.Time) (*models.CheckoutData, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type checkoutDataRepository struct {
	db *gorm.DB
}

func NewCheckoutDataRepository(db *gorm.DB) CheckoutDataRepository {
	return &checkoutDataRepository{db: db}
}

func (r *checkoutDataRepository) Create(ctx context.Context, data *models.CheckoutData) error {
	return r.db.WithContext(ctx).Create(data).Error
}

func (r *checkoutDataRepository) FindValid(ctx context.Context, id uuid.UUID, now time.Time) (*models.CheckoutData, error) {
	var data models.CheckoutData
	if err := r.db.WithContext(ctx).Where("id = ? AND expires_at >= ?", id, now).First(&data).Error; err != nil {
		return nil, translate(err)
	}
	return &data, nil
}

func (r *checkoutDataRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.CheckoutData{})
	return result.RowsAffected, result.Error
}
