package repository

import (
	"context"

	"github.com/dancehub/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DiscountCardRepository interface {
	Create(ctx context.Context, card *models.DiscountCard) error
	Update(ctx context.Context, card *models.DiscountCard) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DiscountCard, error)
	FindByCode(ctx context.Context, code string) (*models.DiscountCard, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListByCoach(ctx context.Context, coachID uuid.UUID) ([]models.DiscountCard, error)
	ListForUser(ctx context.Context, userEmail string, coachID uuid.UUID) ([]models.DiscountCard, error)
	// IncrementUsage counts one redemption unless the usage limit is
	// already reached. A limit of -1 never blocks.
	IncrementUsage(ctx context.Context, cardID uuid.UUID, usage *models.DiscountCardUsage) error
	ReleaseUsage(ctx context.Context, cardID uuid.UUID) error
}

type discountCardRepository struct {
	db *gorm.DB
}

func NewDiscountCardRepository(db *gorm.DB) DiscountCardRepository {
	return &discountCardRepository{db: db}
}

func (r *discountCardRepository) Create(ctx context.Context, card *models.DiscountCard) error {
	return translate(r.db.WithContext(ctx).Create(card).Error)
}

func (r *discountCardRepository) Update(ctx context.Context, card *models.DiscountCard) error {
	return translate(r.db.WithContext(ctx).Model(card).
		Select("Title", "Description", "IsActive", "ExpirationDate", "UsageLimit", "DiscountPercentage", "Value", "AdvantageType", "CourseID", "UserEmail").
		Updates(card).Error)
}

func (r *discountCardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return requireRow(r.db.WithContext(ctx).Delete(&models.DiscountCard{}, "id = ?", id))
}

func (r *discountCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.DiscountCard, error) {
	var card models.DiscountCard
	if err := r.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &card, nil
}

func (r *discountCardRepository) FindByCode(ctx context.Context, code string) (*models.DiscountCard, error) {
	var card models.DiscountCard
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&card).Error; err != nil {
		return nil, translate(err)
	}
	return &card, nil
}

func (r *discountCardRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DiscountCard{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *discountCardRepository) ListByCoach(ctx context.Context, coachID uuid.UUID) ([]models.DiscountCard, error) {
	var cards []models.DiscountCard
	err := r.db.WithContext(ctx).Where("coach_id = ?", coachID).Order("created_at DESC").Find(&cards).Error
	return cards, err
}

func (r *discountCardRepository) ListForUser(ctx context.Context, userEmail string, coachID uuid.UUID) ([]models.DiscountCard, error) {
	var cards []models.DiscountCard
	err := r.db.WithContext(ctx).
		Where("coach_id = ? AND LOWER(user_email) = LOWER(?)", coachID, userEmail).
		Find(&cards).Error
	return cards, err
}

func (r *discountCardRepository) IncrementUsage(ctx context.Context, cardID uuid.UUID, usage *models.DiscountCardUsage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.DiscountCard{}).
			Where("id = ? AND is_active = ? AND (usage_limit = ? OR usage_count < usage_limit)", cardID, true, models.UnlimitedUsage).
			Update("usage_count", gorm.Expr("usage_count + 1"))
		if err := requireRow(result); err != nil {
			return err
		}
		usage.CardID = cardID
		return tx.Create(usage).Error
	})
}

func (r *discountCardRepository) ReleaseUsage(ctx context.Context, cardID uuid.UUID) error {
	return requireRow(r.db.WithContext(ctx).Model(&models.DiscountCard{}).
		Where("id = ? AND usage_count > 0", cardID).
		Update("usage_count", gorm.Expr("usage_count - 1")))
}
