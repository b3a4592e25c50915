package repository

import (
	"context"

	"github.com/dancehub/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OfferRepository interface {
	Create(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	ListByCoach(ctx context.Context, coachID uuid.UUID) ([]models.Offer, error)
	CreatePurchase(ctx context.Context, purchase *models.OfferPurchase) error
	ListPurchasesByUser(ctx context.Context, userID uuid.UUID) ([]models.OfferPurchase, error)
}

type offerRepository struct {
	db *gorm.DB
}

func NewOfferRepository(db *gorm.DB) OfferRepository {
	return &offerRepository{db: db}
}

func (r *offerRepository) Create(ctx context.Context, offer *models.Offer) error {
	return translate(r.db.WithContext(ctx).Create(offer).Error)
}

func (r *offerRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).Preload("Options").First(&offer, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &offer, nil
}

func (r *offerRepository) ListByCoach(ctx context.Context, coachID uuid.UUID) ([]models.Offer, error) {
	var offers []models.Offer
	err := r.db.WithContext(ctx).Preload("Options").
		Where("coach_id = ? AND is_active = ?", coachID, true).
		Order("price ASC").
		Find(&offers).Error
	return offers, err
}

func (r *offerRepository) CreatePurchase(ctx context.Context, purchase *models.OfferPurchase) error {
	return translate(r.db.WithContext(ctx).Create(purchase).Error)
}

func (r *offerRepository) ListPurchasesByUser(ctx context.Context, userID uuid.UUID) ([]models.OfferPurchase, error) {
	var purchases []models.OfferPurchase
	err := r.db.WithContext(ctx).Where("purchaser_id = ?", userID).Order("created_at DESC").Find(&purchases).Error
	return purchases, err
}
