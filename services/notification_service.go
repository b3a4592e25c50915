package services

import (
	"context"
	"errors"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Pusher interface {
	Push(userID uuid.UUID, payload any)
}

type NotificationService struct {
	repo   repository.NotificationRepository
	pusher Pusher
	log    *logrus.Logger
}

func NewNotificationService(repo repository.NotificationRepository, pusher Pusher, log *logrus.Logger) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher, log: log}
}

// Notify stores the notification and pushes it to any open socket of the
// user. Failures are logged and never reach the caller.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, kind, title, message string, data map[string]string) {
	n := &models.Notification{UserID: userID, Type: kind, Title: title, Message: message, Data: data}
	if err := s.repo.Create(ctx, n); err != nil {
		s.log.WithFields(logrus.Fields{"userId": userID, "type": kind, "error": err}).Error("failed to store notification")
		return
	}
	if s.pusher != nil {
		s.pusher.Push(userID, n)
	}
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	err := s.repo.MarkRead(ctx, id, userID)
	if errors.Is(err, repository.ErrConditionFailed) {
		return apperrors.NotFound("Notification not found")
	}
	return err
}
