package repository

import (
	"context"

	"github.com/dancehub/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GiftCardRepository interface {
	Create(ctx context.Context, card *models.GiftCard) error
	Update(ctx context.Context, card *models.GiftCard) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.GiftCard, error)
	FindByCode(ctx context.Context, code string) (*models.GiftCard, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListByIssuer(ctx context.Context, issuerID uuid.UUID) ([]models.GiftCard, error)
	ListTransactions(ctx context.Context, cardID uuid.UUID) ([]models.GiftCardTransaction, error)
	// Debit subtracts amount only while the card is active, unused and holds
	// at least amount. The card is marked used once its balance hits zero.
	Debit(ctx context.Context, cardID uuid.UUID, amount float64, txn *models.GiftCardTransaction) (*models.GiftCard, error)
	Credit(ctx context.Context, cardID uuid.UUID, amount float64, txn *models.GiftCardTransaction) (*models.GiftCard, error)
}

type giftCardRepository struct {
	db *gorm.DB
}

func NewGiftCardRepository(db *gorm.DB) GiftCardRepository {
	return &giftCardRepository{db: db}
}

func (r *giftCardRepository) Create(ctx context.Context, card *models.GiftCard) error {
	return translate(r.db.WithContext(ctx).Create(card).Error)
}

func (r *giftCardRepository) Update(ctx context.Context, card *models.GiftCard) error {
	return translate(r.db.WithContext(ctx).Model(card).
		Select("IsActive", "ExpirationDate", "RecipientEmail", "Message", "BusinessName", "AllowPartialUse").
		Updates(card).Error)
}

func (r *giftCardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return requireRow(r.db.WithContext(ctx).Delete(&models.GiftCard{}, "id = ?", id))
}

func (r *giftCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.GiftCard, error) {
	var card models.GiftCard
	if err := r.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &card, nil
}

func (r *giftCardRepository) FindByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	var card models.GiftCard
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&card).Error; err != nil {
		return nil, translate(err)
	}
	return &card, nil
}

func (r *giftCardRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GiftCard{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *giftCardRepository) ListByIssuer(ctx context.Context, issuerID uuid.UUID) ([]models.GiftCard, error) {
	var cards []models.GiftCard
	err := r.db.WithContext(ctx).Where("issuer_id = ?", issuerID).Order("created_at DESC").Find(&cards).Error
	return cards, err
}

func (r *giftCardRepository) ListTransactions(ctx context.Context, cardID uuid.UUID) ([]models.GiftCardTransaction, error) {
	var txns []models.GiftCardTransaction
	err := r.db.WithContext(ctx).Where("gift_card_id = ?", cardID).Order("created_at DESC").Find(&txns).Error
	return txns, err
}

func (r *giftCardRepository) Debit(ctx context.Context, cardID uuid.UUID, amount float64, txn *models.GiftCardTransaction) (*models.GiftCard, error) {
	var card models.GiftCard
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.GiftCard{}).
			Where("id = ? AND is_active = ? AND is_used = ? AND remaining_amount >= ?", cardID, true, false, amount).
			Updates(map[string]interface{}{
				"remaining_amount": gorm.Expr("remaining_amount - ?", amount),
				"usage_amount":     gorm.Expr("usage_amount + ?", amount),
				"is_used":          gorm.Expr("remaining_amount - ? <= 0", amount),
			})
		if err := requireRow(result); err != nil {
			return err
		}
		if err := tx.First(&card, "id = ?", cardID).Error; err != nil {
			return err
		}
		txn.GiftCardID = cardID
		txn.BalanceAfter = card.RemainingAmount
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *giftCardRepository) Credit(ctx context.Context, cardID uuid.UUID, amount float64, txn *models.GiftCardTransaction) (*models.GiftCard, error) {
	var card models.GiftCard
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.GiftCard{}).
			Where("id = ? AND usage_amount >= ?", cardID, amount).
			Updates(map[string]interface{}{
				"remaining_amount": gorm.Expr("remaining_amount + ?", amount),
				"usage_amount":     gorm.Expr("usage_amount - ?", amount),
				"is_used":          false,
			})
		if err := requireRow(result); err != nil {
			return err
		}
		if err := tx.First(&card, "id = ?", cardID).Error; err != nil {
			return err
		}
		txn.GiftCardID = cardID
		txn.BalanceAfter = card.RemainingAmount
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}
