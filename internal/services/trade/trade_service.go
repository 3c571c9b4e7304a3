// Package trade — жизненный цикл обмена после принятия предложения:
// переходы статусов, подтверждения завершения, отзывы и споры.
package trade

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

// allowedFrom описывает, из каких статусов разрешен переход в целевой.
// Завершение идет только через подтверждения обеих сторон, прямой переход
// в completed разрешен лишь из disputed при урегулировании спора.
var allowedFrom = map[string][]string{
	models.TradeStatusAccepted:  {models.TradeStatusPending},
	models.TradeStatusRejected:  {models.TradeStatusPending},
	models.TradeStatusCancelled: {models.TradeStatusPending},
	models.TradeStatusCompleted: {models.TradeStatusDisputed},
	models.TradeStatusDisputed:  {models.TradeStatusAccepted, models.TradeStatusCompleted},
}

// Тексты системных сообщений по статусам
var statusMessages = map[string]string{
	models.TradeStatusAccepted:  "Обмен принят",
	models.TradeStatusRejected:  "Обмен отклонен",
	models.TradeStatusCancelled: "Обмен отменен",
	models.TradeStatusCompleted: "Обмен завершен",
	models.TradeStatusDisputed:  "По обмену открыт спор",
}

// Service реализует операции над обменами
type Service struct {
	trades   storage.TradeStore
	details  storage.TradeDetailsStore
	reviews  storage.ReviewStore
	disputes storage.DisputeStore
	messages storage.MessageStore
	users    storage.UserStore
	feed     *feed.Feed
	notifier notifier.Dispatcher
}

// NewService создает сервис обменов
func NewService(
	trades storage.TradeStore,
	details storage.TradeDetailsStore,
	reviews storage.ReviewStore,
	disputes storage.DisputeStore,
	messages storage.MessageStore,
	users storage.UserStore,
	f *feed.Feed,
	n notifier.Dispatcher,
) *Service {
	return &Service{
		trades:   trades,
		details:  details,
		reviews:  reviews,
		disputes: disputes,
		messages: messages,
		users:    users,
		feed:     f,
		notifier: n,
	}
}

// Get возвращает обмен; доступен только его сторонам
func (s *Service) Get(ctx context.Context, callerID, tradeID uuid.UUID) (*models.Trade, error) {
	trade, err := s.getParticipantTrade(ctx, callerID, tradeID)
	if err != nil {
		return nil, err
	}

	if d, err := s.details.GetTradeDetails(ctx, tradeID); err == nil {
		trade.Details = d
	} else if !storage.IsNotFound(err) {
		log.Printf("Ошибка получения данных о доставке %s: %v", tradeID, err)
	}

	return trade, nil
}

// UpdateStatus применяет переход статуса обмена. Конфликтующий
// конкурентный переход возвращает ошибку, а не затирает чужую запись.
// Непустая причина попадает в системное сообщение и уведомление.
func (s *Service) UpdateStatus(ctx context.Context, callerID, tradeID uuid.UUID, to, reason string) (*models.Trade, error) {
	from, ok := allowedFrom[to]
	if !ok {
		return nil, apperrors.Validation("неизвестный статус: %s", to)
	}

	trade, err := s.getParticipantTrade(ctx, callerID, tradeID)
	if err != nil {
		return nil, err
	}

	switch to {
	case models.TradeStatusAccepted, models.TradeStatusRejected:
		if trade.ReceiverID != callerID {
			return nil, apperrors.Permission("это действие доступно только получателю предложения")
		}
	case models.TradeStatusCancelled:
		if trade.ProposerID != callerID {
			return nil, apperrors.Permission("отменить обмен может только его инициатор")
		}
	}

	now := time.Now()
	applied, err := s.trades.UpdateTradeStatus(ctx, tradeID, to, now, from...)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, apperrors.NotFound("обмен не найден")
		}
		return nil, apperrors.Internal(err, "ошибка обновления статуса")
	}
	if !applied {
		return nil, apperrors.Conflict("переход из статуса %q в %q невозможен", trade.Status, to)
	}

	trade.Status = to
	trade.UpdatedAt = now

	s.afterStatusChange(ctx, callerID, trade, reason)
	return trade, nil
}

// ConfirmCompletion фиксирует подтверждение завершения стороной.
// Повторное подтверждение идемпотентно; после подтверждения обеих
// сторон обмен переходит в completed.
func (s *Service) ConfirmCompletion(ctx context.Context, callerID, tradeID uuid.UUID) (*models.Trade, error) {
	trade, err := s.getParticipantTrade(ctx, callerID, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.Status == models.TradeStatusCompleted {
		return trade, nil
	}
	if trade.Status != models.TradeStatusAccepted {
		return nil, apperrors.Conflict("подтвердить завершение можно только по принятому обмену")
	}

	now := time.Now()
	trade, err = s.trades.SetTradeConfirmed(ctx, tradeID, trade.ProposerID == callerID, now)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, apperrors.NotFound("обмен не найден")
		}
		return nil, apperrors.Internal(err, "ошибка подтверждения завершения")
	}

	if trade.ProposerConfirmed && trade.ReceiverConfirmed && trade.Status == models.TradeStatusAccepted {
		applied, err := s.trades.UpdateTradeStatus(ctx, tradeID, models.TradeStatusCompleted, now, models.TradeStatusAccepted)
		if err != nil {
			return nil, apperrors.Internal(err, "ошибка завершения обмена")
		}
		if applied {
			trade.Status = models.TradeStatusCompleted
			trade.UpdatedAt = now
			s.afterStatusChange(ctx, callerID, trade, "")
			return trade, nil
		}
		// Конкурентный писатель успел поменять статус, возвращаем актуальное состояние
		trade, err = s.trades.GetTrade(ctx, tradeID)
		if err != nil {
			return nil, apperrors.Internal(err, "ошибка получения обмена")
		}
		return trade, nil
	}

	s.notifier.Notify(ctx, []uuid.UUID{trade.OtherParty(callerID)}, models.NotificationTypeTradeUpdate,
		"Подтверждение завершения", "Вторая сторона подтвердила завершение обмена",
		map[string]any{"trade_id": trade.ID.String()})

	return trade, nil
}

// History возвращает обмены пользователя, новые первыми.
// Пустой status — без фильтра.
func (s *Service) History(ctx context.Context, userID uuid.UUID, status string) ([]models.Trade, error) {
	if status != "" {
		switch status {
		case models.TradeStatusPending, models.TradeStatusAccepted, models.TradeStatusRejected,
			models.TradeStatusCancelled, models.TradeStatusCompleted, models.TradeStatusDisputed:
		default:
			return nil, apperrors.Validation("неизвестный статус: %s", status)
		}
	}

	trades, err := s.trades.ListTradesForUser(ctx, userID, status)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка получения обменов")
	}
	return trades, nil
}

// Stats возвращает сводную статистику обменов пользователя
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*models.TradeStats, error) {
	trades, err := s.trades.ListTradesForUser(ctx, userID, "")
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка получения обменов")
	}

	stats := &models.TradeStats{Total: len(trades)}
	var completionTotal time.Duration
	for _, t := range trades {
		switch t.Status {
		case models.TradeStatusCompleted:
			stats.Completed++
			completionTotal += t.UpdatedAt.Sub(t.CreatedAt)
		case models.TradeStatusPending, models.TradeStatusAccepted:
			stats.Pending++
		case models.TradeStatusDisputed:
			stats.Disputed++
		}
	}
	if stats.Completed > 0 {
		stats.AverageCompletionTime = completionTotal / time.Duration(stats.Completed)
	}
	return stats, nil
}

// getParticipantTrade возвращает обмен, проверив, что вызывающий — его сторона
func (s *Service) getParticipantTrade(ctx context.Context, callerID, tradeID uuid.UUID) (*models.Trade, error) {
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
	return trade, nil
}

// afterStatusChange публикует событие, уведомляет вторую сторону и
// добавляет системное сообщение в переписку. Все — best effort.
func (s *Service) afterStatusChange(ctx context.Context, actorID uuid.UUID, trade *models.Trade, reason string) {
	otherID := trade.OtherParty(actorID)

	for _, userID := range []uuid.UUID{trade.ProposerID, trade.ReceiverID} {
		s.feed.Publish(feed.UserTopic(userID), feed.Event{
			Kind:  feed.EventTradeUpdate,
			Trade: trade,
		})
	}

	text, ok := statusMessages[trade.Status]
	if !ok {
		return
	}
	if reason != "" {
		text += ": " + reason
	}

	s.notifier.Notify(ctx, []uuid.UUID{otherID}, models.NotificationTypeTradeUpdate,
		text, text, map[string]any{"trade_id": trade.ID.String(), "status": trade.Status})

	tradeID := trade.ID
	msg := &models.Message{
		ID:         uuid.New(),
		SenderID:   actorID,
		ReceiverID: otherID,
		TradeID:    &tradeID,
		Content:    text,
		Type:       models.MessageTypeText,
		Status:     models.MessageStatusSent,
		CreatedAt:  time.Now(),
	}
	if err := s.messages.InsertMessage(ctx, msg); err != nil {
		log.Printf("Ошибка записи системного сообщения по обмену %s: %v", trade.ID, err)
		return
	}
	s.feed.Publish(feed.ConversationTopic(msg.SenderID, msg.ReceiverID), feed.Event{
		Kind:    feed.EventMessageNew,
		Message: msg,
	})
}
