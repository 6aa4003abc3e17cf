package services

import (
	"context"
	"time"

	"fiduciaire/internal/models"
	"fiduciaire/pkg/errors"
	"fiduciaire/pkg/logger"
	"fiduciaire/pkg/pagination"
	"fiduciaire/pkg/queue"

	"gorm.io/gorm"
)

// MailQueue accepts outgoing mails; *queue.RedisQueue implements it.
type MailQueue interface {
	EnqueueMail(ctx context.Context, msg queue.MailMessage) error
}

// Publisher pushes live notifications; *queue.RedisQueue implements it.
type Publisher interface {
	PublishNotification(ctx context.Context, userID uint, payload interface{}) error
}

// NotificationService stores in-app notifications and pushes them live.
type NotificationService struct {
	db        *gorm.DB
	publisher Publisher
}

// NewNotificationService publisher may be nil (no live push).
func NewNotificationService(db *gorm.DB, publisher Publisher) *NotificationService {
	return &NotificationService{
		db:        db,
		publisher: publisher,
	}
}

// Notify stores a notification and publishes it on the user's channel.
// A failed publish is logged only: the notification is already stored.
func (s *NotificationService) Notify(ctx context.Context, userID uint, kind, title, message, link string) (*models.Notification, error) {
	n := &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    link,
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishNotification(ctx, userID, n); err != nil {
			logger.GetLogger().WithField("user_id", userID).Warnf("publication de la notification échouée: %v", err)
		}
	}
	return n, nil
}

// NotifyMany sends the same notification to several users.
func (s *NotificationService) NotifyMany(ctx context.Context, userIDs []uint, kind, title, message, link string) {
	for _, id := range userIDs {
		if _, err := s.Notify(ctx, id, kind, title, message, link); err != nil {
			logger.GetLogger().WithField("user_id", id).Errorf("création de la notification échouée: %v", err)
		}
	}
}

// List notifications of a user, newest first.
func (s *NotificationService) List(userID uint, unreadOnly bool, page, pageSize int) ([]*models.Notification, int64, error) {
	var items []*models.Notification
	var total int64

	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC, id DESC").Scopes(pagination.Paginate(page, pageSize)).Find(&items).Error
	return items, total, err
}

// UnreadCount number of unread notifications
func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// MarkRead marks one notification of the user as read.
func (s *NotificationService) MarkRead(userID, id uint) error {
	result := s.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", time.Now())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrNotFound, "notification introuvable")
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read.
func (s *NotificationService) MarkAllRead(userID uint) (int64, error) {
	result := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now())
	return result.RowsAffected, result.Error
}

// Delete removes one notification of the user.
func (s *NotificationService) Delete(userID, id uint) error {
	result := s.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrNotFound, "notification introuvable")
	}
	return nil
}

// PurgeReadBefore deletes read notifications older than cutoff.
func (s *NotificationService) PurgeReadBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("read_at IS NOT NULL AND created_at < ?", cutoff).Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
