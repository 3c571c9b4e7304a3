// Package badge — агрегатор непрочитанного: счетчики для бейджа приложения
// и лента уведомлений. Счетчики всегда пересчитываются из исходных таблиц.
package badge

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/apperrors"
	"github.com/rajivgeraev/barterhaven-api/internal/feed"
	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/storage"
)

// Ограничение страницы ленты уведомлений
const DefaultPageSize = 20

// Service реализует подсчет бейджей и операции над уведомлениями
type Service struct {
	messages      storage.MessageStore
	notifications storage.NotificationStore
	feed          *feed.Feed
}

// NewService создает агрегатор бейджей
func NewService(messages storage.MessageStore, notifications storage.NotificationStore, f *feed.Feed) *Service {
	return &Service{messages: messages, notifications: notifications, feed: f}
}

// Counts возвращает счетчики непрочитанного пользователя
func (s *Service) Counts(ctx context.Context, userID uuid.UUID) (*models.BadgeCounts, error) {
	msgCount, err := s.messages.UnreadMessageCount(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка подсчета непрочитанных сообщений")
	}
	notifCount, err := s.notifications.UnreadNotificationCount(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка подсчета непрочитанных уведомлений")
	}
	return &models.BadgeCounts{
		Messages:      msgCount,
		Notifications: notifCount,
		Total:         msgCount + notifCount,
	}, nil
}

// Refresh пересчитывает счетчики и публикует их в персональный топик.
// Вызывается после любого изменения непрочитанного; сбой только логируется.
func (s *Service) Refresh(ctx context.Context, userID uuid.UUID) {
	counts, err := s.Counts(ctx, userID)
	if err != nil {
		log.Printf("Ошибка пересчета бейджей для %s: %v", userID, err)
		return
	}
	s.feed.Publish(feed.UserTopic(userID), feed.Event{
		Kind:   feed.EventBadgeUpdate,
		Counts: counts,
	})
}

// Notifications возвращает страницу ленты уведомлений, новые первыми
func (s *Service) Notifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	notifications, err := s.notifications.ListNotifications(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка получения уведомлений")
	}
	return notifications, nil
}

// MarkRead отмечает уведомление прочитанным и пересчитывает бейджи
func (s *Service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := s.notifications.MarkNotificationRead(ctx, notificationID, userID); err != nil {
		if storage.IsNotFound(err) {
			return apperrors.NotFound("уведомление не найдено")
		}
		return apperrors.Internal(err, "ошибка обновления уведомления")
	}
	s.Refresh(ctx, userID)
	return nil
}

// MarkAllRead отмечает все уведомления пользователя прочитанными
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.notifications.MarkAllNotificationsRead(ctx, userID); err != nil {
		return apperrors.Internal(err, "ошибка обновления уведомлений")
	}
	s.Refresh(ctx, userID)
	return nil
}

// Delete удаляет уведомление из ленты
func (s *Service) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := s.notifications.DeleteNotification(ctx, notificationID, userID); err != nil {
		if storage.IsNotFound(err) {
			return apperrors.NotFound("уведомление не найдено")
		}
		return apperrors.Internal(err, "ошибка удаления уведомления")
	}
	s.Refresh(ctx, userID)
	return nil
}
