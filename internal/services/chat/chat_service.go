// Package chat — обмен сообщениями между пользователями.
package chat

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/apperrors"
	"github.com/rajivgeraev/barterhaven-api/internal/feed"
	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/notifier"
	"github.com/rajivgeraev/barterhaven-api/internal/storage"
)

// Ограничение страницы истории сообщений
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Service реализует операции над сообщениями
type Service struct {
	messages storage.MessageStore
	users    storage.UserStore
	trades   storage.TradeStore
	feed     *feed.Feed
	notifier notifier.Dispatcher

	// onUnreadChange вызывается после изменения числа непрочитанных;
	// им пользуется агрегатор бейджей.
	onUnreadChange func(ctx context.Context, userID uuid.UUID)
}

// NewService создает сервис сообщений
func NewService(messages storage.MessageStore, users storage.UserStore, trades storage.TradeStore, f *feed.Feed, n notifier.Dispatcher) *Service {
	return &Service{
		messages: messages,
		users:    users,
		trades:   trades,
		feed:     f,
		notifier: n,
	}
}

// OnUnreadChange задает колбэк пересчета бейджей
func (s *Service) OnUnreadChange(fn func(ctx context.Context, userID uuid.UUID)) {
	s.onUnreadChange = fn
}

// Send отправляет сообщение получателю. Сообщение сохраняется всегда,
// доставка в реальном времени и уведомление — best effort.
func (s *Service) Send(ctx context.Context, senderID, receiverID uuid.UUID, tradeID *uuid.UUID, content, msgType string) (*models.Message, error) {
	if senderID == uuid.Nil || receiverID == uuid.Nil {
		return nil, apperrors.Validation("отправитель и получатель должны быть указаны")
	}
	if content == "" {
		return nil, apperrors.Validation("текст сообщения не может быть пустым")
	}
	if senderID == receiverID {
		return nil, apperrors.Validation("нельзя отправить сообщение самому себе")
	}

	switch msgType {
	case "":
		msgType = models.MessageTypeText
	case models.MessageTypeText, models.MessageTypeImage:
	default:
		return nil, apperrors.Validation("неизвестный тип сообщения: %s", msgType)
	}

	sender, err := s.users.GetUser(ctx, senderID)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка проверки отправителя")
	}

	if _, err := s.users.GetUser(ctx, receiverID); err != nil {
		if storage.IsNotFound(err) {
			return nil, apperrors.NotFound("получатель не найден")
		}
		return nil, apperrors.Internal(err, "ошибка проверки получателя")
	}

	// Если сообщение привязано к обмену, отправитель должен быть его стороной
	if tradeID != nil {
		trade, err := s.trades.GetTrade(ctx, *tradeID)
		if err != nil {
			if storage.IsNotFound(err) {
				return nil, apperrors.NotFound("обмен не найден")
			}
			return nil, apperrors.Internal(err, "ошибка проверки обмена")
		}
		if !trade.Participant(senderID) {
			return nil, apperrors.Permission("вы не являетесь стороной этого обмена")
		}
	}

	msg := &models.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		TradeID:    tradeID,
		Content:    content,
		Type:       msgType,
		Status:     models.MessageStatusSent,
		CreatedAt:  time.Now(),
	}

	if err := s.messages.InsertMessage(ctx, msg); err != nil {
		return nil, apperrors.Internal(err, "ошибка сохранения сообщения")
	}

	msg.Sender = sender

	s.feed.Publish(feed.ConversationTopic(senderID, receiverID), feed.Event{
		Kind:    feed.EventMessageNew,
		Message: msg,
	})

	s.notifier.Notify(ctx, []uuid.UUID{receiverID}, models.NotificationTypeNewMessage,
		"Новое сообщение", content, map[string]any{
			"message_id": msg.ID.String(),
			"sender_id":  senderID.String(),
		})

	if s.onUnreadChange != nil {
		s.onUnreadChange(ctx, receiverID)
	}

	return msg, nil
}

// Fetch возвращает страницу переписки пары и отмечает адресованные
// вызывающему сообщения как прочитанные.
func (s *Service) Fetch(ctx context.Context, userID, otherUserID uuid.UUID, limit int, before *time.Time) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	messages, err := s.messages.ListBetween(ctx, userID, otherUserID, limit, before)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка получения сообщений")
	}

	s.attachSenders(ctx, messages)

	// Входящие непрочитанные сообщения страницы становятся прочитанными
	now := time.Now()
	var unreadIDs []uuid.UUID
	var marked []int
	for i := range messages {
		if messages[i].ReceiverID == userID && messages[i].ReadAt == nil {
			unreadIDs = append(unreadIDs, messages[i].ID)
			marked = append(marked, i)
			messages[i].ReadAt = &now
		}
	}

	if len(unreadIDs) > 0 {
		if err := s.messages.MarkMessagesRead(ctx, unreadIDs, now); err != nil {
			log.Printf("Ошибка обновления статуса прочтения: %v", err)
			// Не возвращаем ошибку, т.к. основная функциональность выполнена
		} else {
			// Отправитель узнает о прочтении по самому событию, без перечитывания страницы
			for _, i := range marked {
				s.feed.Publish(feed.ConversationTopic(userID, otherUserID), feed.Event{
					Kind: feed.EventMessageRead,
					Message: &models.Message{
						ID:         messages[i].ID,
						SenderID:   messages[i].SenderID,
						ReceiverID: messages[i].ReceiverID,
						ReadAt:     &now,
					},
				})
			}
			if s.onUnreadChange != nil {
				s.onUnreadChange(ctx, userID)
			}
		}
	}

	return messages, nil
}

// SoftDelete скрывает сообщение мягким удалением. Доступно обеим сторонам
// переписки, повторное удаление идемпотентно.
func (s *Service) SoftDelete(ctx context.Context, callerID, messageID uuid.UUID) error {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		if storage.IsNotFound(err) {
			return apperrors.NotFound("сообщение не найдено")
		}
		return apperrors.Internal(err, "ошибка получения сообщения")
	}
	if msg.SenderID != callerID && msg.ReceiverID != callerID {
		return apperrors.Permission("удалять можно только сообщения своей переписки")
	}
	if msg.Deleted() {
		return nil
	}

	if err := s.messages.SoftDeleteMessage(ctx, messageID, time.Now()); err != nil {
		return apperrors.Internal(err, "ошибка удаления сообщения")
	}

	s.feed.Publish(feed.ConversationTopic(msg.SenderID, msg.ReceiverID), feed.Event{
		Kind:    feed.EventMessageDelete,
		Message: &models.Message{ID: msg.ID, SenderID: msg.SenderID, ReceiverID: msg.ReceiverID},
	})

	if msg.ReadAt == nil {
		if s.onUnreadChange != nil {
			s.onUnreadChange(ctx, msg.ReceiverID)
		}
	}

	return nil
}

// UnreadCount возвращает число непрочитанных входящих сообщений
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.messages.UnreadMessageCount(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal(err, "ошибка подсчета непрочитанных")
	}
	return count, nil
}

// MessagesByTrade возвращает переписку, привязанную к обмену.
// Доступна только сторонам обмена.
func (s *Service) MessagesByTrade(ctx context.Context, callerID, tradeID uuid.UUID) ([]models.Message, error) {
	trade, err := s.trades.GetTrade(ctx, tradeID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, apperrors.NotFound("обмен не найден")
		}
		return nil, apperrors.Internal(err, "ошибка получения обмена")
	}
	if !trade.Participant(callerID) {
		return nil, apperrors.Permission("вы не являетесь стороной этого обмена")
	}

	messages, err := s.messages.ListByTrade(ctx, tradeID)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка получения сообщений обмена")
	}
	s.attachSenders(ctx, messages)
	return messages, nil
}

// Partners возвращает список собеседников, свежие переписки первыми
func (s *Service) Partners(ctx context.Context, userID uuid.UUID) ([]models.ConversationPartner, error) {
	partners, err := s.messages.Partners(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка получения списка чатов")
	}
	return partners, nil
}

// attachSenders добавляет данные об отправителях, по одному запросу на пользователя
func (s *Service) attachSenders(ctx context.Context, messages []models.Message) {
	cache := make(map[uuid.UUID]*models.User)
	for i := range messages {
		senderID := messages[i].SenderID
		user, ok := cache[senderID]
		if !ok {
			var err error
			user, err = s.users.GetUser(ctx, senderID)
			if err != nil {
				log.Printf("Ошибка получения данных пользователя %s: %v", senderID, err)
			}
			cache[senderID] = user
		}
		messages[i].Sender = user
	}
}
