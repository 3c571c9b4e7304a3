// Package notifier — доставка уведомлений пользователям.
// Вызывается сервисами после фиксации основной операции; сбой доставки
// логируется и никогда не ломает вызвавшую операцию.
package notifier

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/feed"
	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/storage"
)

// Dispatcher — порт отправки уведомлений
type Dispatcher interface {
	Notify(ctx context.Context, userIDs []uuid.UUID, notifType, title, body string, data map[string]any)
}

// Service сохраняет уведомления и публикует их в персональные топики.
// onNotify, если задан, вызывается для каждого получателя после записи —
// им пользуется агрегатор бейджей для пересчета счетчиков.
type Service struct {
	store    storage.NotificationStore
	feed     *feed.Feed
	onNotify func(ctx context.Context, userID uuid.UUID)
}

// NewService создает диспетчер уведомлений
func NewService(store storage.NotificationStore, f *feed.Feed) *Service {
	return &Service{store: store, feed: f}
}

// OnNotify задает колбэк, вызываемый после доставки уведомления пользователю
func (s *Service) OnNotify(fn func(ctx context.Context, userID uuid.UUID)) {
	s.onNotify = fn
}

// Notify создает уведомление для каждого получателя и публикует событие
// в его персональный топик.
func (s *Service) Notify(ctx context.Context, userIDs []uuid.UUID, notifType, title, body string, data map[string]any) {
	now := time.Now()
	for _, userID := range userIDs {
		n := &models.Notification{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      notifType,
			Title:     title,
			Body:      body,
			Data:      data,
			CreatedAt: now,
		}

		if err := s.store.InsertNotification(ctx, n); err != nil {
			log.Printf("Ошибка сохранения уведомления для %s: %v", userID, err)
			continue
		}

		s.feed.Publish(feed.UserTopic(userID), feed.Event{
			Kind:   feed.EventNotification,
			Notice: n,
		})

		if s.onNotify != nil {
			s.onNotify(ctx, userID)
		}
	}
}
