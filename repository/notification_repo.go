package repository

import (
	"context"

	"github.com/dancehub/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	var list []models.Notification
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	err := q.Order("created_at DESC").Limit(100).Find(&list).Error
	return list, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return requireRow(r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true))
}
