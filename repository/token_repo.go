package repository

import (
	"context"
	"time"

	"github.com/dancehub/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TokenRepository interface {
	CreatePackage(ctx context.Context, pkg *models.TokenPackage) error
	FindPackage(ctx context.Context, id uuid.UUID) (*models.TokenPackage, error)
	ListPackagesByCoach(ctx context.Context, coachID uuid.UUID) ([]models.TokenPackage, error)

	ListStudentPackages(ctx context.Context, studentID, coachID uuid.UUID) ([]models.StudentTokenPackage, error)
	FindStudentPackage(ctx context.Context, studentID, packageID uuid.UUID) (*models.StudentTokenPackage, error)
	CreateStudentPackage(ctx context.Context, sp *models.StudentTokenPackage, txn *models.TokenTransaction) error
	AddTokens(ctx context.Context, studentPackageID uuid.UUID, tokens int, expiresAt *time.Time, txn *models.TokenTransaction) error
	// Debit removes tokens only when the package still holds enough.
	Debit(ctx context.Context, studentPackageID uuid.UUID, tokens int, txn *models.TokenTransaction) error
	Restore(ctx context.Context, studentPackageID uuid.UUID, tokens int) error
	ListTransactions(ctx context.Context, studentID uuid.UUID) ([]models.TokenTransaction, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) CreatePackage(ctx context.Context, pkg *models.TokenPackage) error {
	return translate(r.db.WithContext(ctx).Create(pkg).Error)
}

func (r *tokenRepository) FindPackage(ctx context.Context, id uuid.UUID) (*models.TokenPackage, error) {
	var pkg models.TokenPackage
	if err := r.db.WithContext(ctx).First(&pkg, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &pkg, nil
}

func (r *tokenRepository) ListPackagesByCoach(ctx context.Context, coachID uuid.UUID) ([]models.TokenPackage, error) {
	var pkgs []models.TokenPackage
	err := r.db.WithContext(ctx).Where("coach_id = ? AND is_active = ?", coachID, true).Order("tokens ASC").Find(&pkgs).Error
	return pkgs, err
}

func (r *tokenRepository) ListStudentPackages(ctx context.Context, studentID, coachID uuid.UUID) ([]models.StudentTokenPackage, error) {
	var sps []models.StudentTokenPackage
	err := r.db.WithContext(ctx).
		Preload("Package").
		Where("student_id = ? AND coach_id = ?", studentID, coachID).
		Order("expires_at ASC NULLS LAST").
		Find(&sps).Error
	return sps, err
}

func (r *tokenRepository) FindStudentPackage(ctx context.Context, studentID, packageID uuid.UUID) (*models.StudentTokenPackage, error) {
	var sp models.StudentTokenPackage
	err := r.db.WithContext(ctx).Where("student_id = ? AND package_id = ?", studentID, packageID).First(&sp).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sp, nil
}

func (r *tokenRepository) CreateStudentPackage(ctx context.Context, sp *models.StudentTokenPackage, txn *models.TokenTransaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Package").Create(sp).Error; err != nil {
			return translate(err)
		}
		txn.StudentPackageID = sp.ID
		return tx.Create(txn).Error
	})
}

func (r *tokenRepository) AddTokens(ctx context.Context, studentPackageID uuid.UUID, tokens int, expiresAt *time.Time, txn *models.TokenTransaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"total_tokens":     gorm.Expr("total_tokens + ?", tokens),
			"remaining_tokens": gorm.Expr("remaining_tokens + ?", tokens),
		}
		if expiresAt != nil {
			updates["expires_at"] = *expiresAt
		}
		if err := requireRow(tx.Model(&models.StudentTokenPackage{}).Where("id = ?", studentPackageID).Updates(updates)); err != nil {
			return err
		}
		txn.StudentPackageID = studentPackageID
		return tx.Create(txn).Error
	})
}

func (r *tokenRepository) Debit(ctx context.Context, studentPackageID uuid.UUID, tokens int, txn *models.TokenTransaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.StudentTokenPackage{}).
			Where("id = ? AND remaining_tokens >= ?", studentPackageID, tokens).
			Update("remaining_tokens", gorm.Expr("remaining_tokens - ?", tokens))
		if err := requireRow(result); err != nil {
			return err
		}
		txn.StudentPackageID = studentPackageID
		return tx.Create(txn).Error
	})
}

func (r *tokenRepository) Restore(ctx context.Context, studentPackageID uuid.UUID, tokens int) error {
	return requireRow(r.db.WithContext(ctx).Model(&models.StudentTokenPackage{}).
		Where("id = ? AND remaining_tokens + ? <= total_tokens", studentPackageID, tokens).
		Update("remaining_tokens", gorm.Expr("remaining_tokens + ?", tokens)))
}

func (r *tokenRepository) ListTransactions(ctx context.Context, studentID uuid.UUID) ([]models.TokenTransaction, error) {
	var txns []models.TokenTransaction
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).Order("created_at DESC").Find(&txns).Error
	return txns, err
}
