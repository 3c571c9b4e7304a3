package trade

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/apperrors"
	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/storage"
)

// ReviewInput — параметры отзыва
type ReviewInput struct {
	Rating  int
	Comment string
}

// SubmitReview сохраняет отзыв по завершенному обмену. Повторный отзыв
// той же пары обновляет оценку и комментарий.
func (s *Service) SubmitReview(ctx context.Context, callerID, tradeID uuid.UUID, in ReviewInput) (*models.TradeReview, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperrors.Validation("оценка должна быть от 1 до 5")
	}

	trade, err := s.getParticipantTrade(ctx, callerID, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.Status != models.TradeStatusCompleted {
		return nil, apperrors.Conflict("отзыв можно оставить только по завершенному обмену")
	}

	review := &models.TradeReview{
		ID:             uuid.New(),
		TradeID:        tradeID,
		ReviewerID:     callerID,
		ReviewedUserID: trade.OtherParty(callerID),
		Rating:         in.Rating,
		Comment:        in.Comment,
		CreatedAt:      time.Now(),
	}

	if err := s.reviews.UpsertReview(ctx, review); err != nil {
		return nil, apperrors.Internal(err, "ошибка сохранения отзыва")
	}

	s.notifier.Notify(ctx, []uuid.UUID{review.ReviewedUserID}, models.NotificationTypeTradeReview,
		"Новый отзыв", "По завершенному обмену оставлен отзыв",
		map[string]any{"trade_id": tradeID.String(), "rating": review.Rating})

	return review, nil
}

// DisputeInput — параметры спора
type DisputeInput struct {
	Reason       string
	Description  string
	EvidenceURLs []string
}

// ReportDispute регистрирует спор по обмену. Сам статус обмена не меняется:
// перевод в disputed выполняется отдельным вызовом UpdateStatus.
func (s *Service) ReportDispute(ctx context.Context, callerID, tradeID uuid.UUID, in DisputeInput) (*models.TradeDispute, error) {
	if in.Description == "" {
		return nil, apperrors.Validation("описание спора не может быть пустым")
	}

	trade, err := s.getParticipantTrade(ctx, callerID, tradeID)
	if err != nil {
		return nil, err
	}

	switch trade.Status {
	case models.TradeStatusAccepted, models.TradeStatusCompleted, models.TradeStatusDisputed:
	default:
		return nil, apperrors.Conflict("спор можно открыть только по активному или завершенному обмену")
	}

	now := time.Now()
	dispute := &models.TradeDispute{
		ID:           uuid.New(),
		TradeID:      tradeID,
		ReportedBy:   callerID,
		Reason:       models.NormalizeDisputeReason(in.Reason),
		Description:  in.Description,
		EvidenceURLs: in.EvidenceURLs,
		Status:       models.DisputeStatusOpen,
		CreatedAt:    now,
	}

	if err := s.disputes.InsertDispute(ctx, dispute); err != nil {
		return nil, apperrors.Internal(err, "ошибка регистрации спора")
	}

	s.notifier.Notify(ctx, []uuid.UUID{trade.OtherParty(callerID)}, models.NotificationTypeTradeDispute,
		"Открыт спор", "По вашему обмену открыт спор",
		map[string]any{"trade_id": tradeID.String(), "reason": dispute.Reason})

	return dispute, nil
}

// DeliveryDetailsInput — параметры данных о доставке
type DeliveryDetailsInput struct {
	DeliveryMethod  string
	MeetupLocation  *string
	MeetupDateTime  *time.Time
	ShippingAddress *string
	TrackingNumber  *string
	ContactInfo     *string
	Notes           *string
}

// SaveDeliveryDetails сохраняет или обновляет данные о доставке.
// На обмен хранится одна запись; поля местоположения независимо опциональны.
func (s *Service) SaveDeliveryDetails(ctx context.Context, callerID, tradeID uuid.UUID, in DeliveryDetailsInput) (*models.TradeDetails, error) {
	switch in.DeliveryMethod {
	case models.ExchangeModeMeetup, models.ExchangeModeShipping, models.ExchangeModeOnline:
	default:
		return nil, apperrors.Validation("неизвестный способ доставки: %s", in.DeliveryMethod)
	}

	trade, err := s.getParticipantTrade(ctx, callerID, tradeID)
	if err != nil {
		return nil, err
	}

	switch trade.Status {
	case models.TradeStatusAccepted, models.TradeStatusDisputed:
	default:
		return nil, apperrors.Conflict("данные о доставке доступны только по активному обмену")
	}

	now := time.Now()
	details := &models.TradeDetails{
		TradeID:         tradeID,
		DeliveryMethod:  in.DeliveryMethod,
		MeetupLocation:  in.MeetupLocation,
		MeetupDateTime:  in.MeetupDateTime,
		ShippingAddress: in.ShippingAddress,
		TrackingNumber:  in.TrackingNumber,
		ContactInfo:     in.ContactInfo,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.details.UpsertTradeDetails(ctx, details); err != nil {
		return nil, apperrors.Internal(err, "ошибка сохранения данных о доставке")
	}

	s.notifier.Notify(ctx, []uuid.UUID{trade.OtherParty(callerID)}, models.NotificationTypeTradeUpdate,
		"Данные о доставке", "Вторая сторона обновила данные о доставке",
		map[string]any{"trade_id": tradeID.String()})

	return details, nil
}

// Reviews возвращает отзывы по обмену; доступны его сторонам
func (s *Service) Reviews(ctx context.Context, callerID, tradeID uuid.UUID) ([]models.TradeReview, error) {
	if _, err := s.getParticipantTrade(ctx, callerID, tradeID); err != nil {
		return nil, err
	}
	reviews, err := s.reviews.ListReviewsByTrade(ctx, tradeID)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка получения отзывов")
	}
	return reviews, nil
}

// Disputes возвращает споры по обмену; доступны его сторонам
func (s *Service) Disputes(ctx context.Context, callerID, tradeID uuid.UUID) ([]models.TradeDispute, error) {
	if _, err := s.getParticipantTrade(ctx, callerID, tradeID); err != nil {
		return nil, err
	}
	disputes, err := s.disputes.ListDisputesByTrade(ctx, tradeID)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка получения споров")
	}
	return disputes, nil
}

// UserReviews возвращает отзывы пользователя — оставленные им и о нем
func (s *Service) UserReviews(ctx context.Context, userID uuid.UUID) ([]models.TradeReview, error) {
	reviews, err := s.reviews.ListReviewsByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка получения отзывов")
	}
	return reviews, nil
}

// UserDisputes возвращает споры, открытые пользователем
func (s *Service) UserDisputes(ctx context.Context, userID uuid.UUID) ([]models.TradeDispute, error) {
	disputes, err := s.disputes.ListDisputesByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка получения споров")
	}
	return disputes, nil
}

// CompletionSummary собирает полную картину завершения обмена
func (s *Service) CompletionSummary(ctx context.Context, callerID, tradeID uuid.UUID) (*models.TradeCompletionSummary, error) {
	trade, err := s.getParticipantTrade(ctx, callerID, tradeID)
	if err != nil {
		return nil, err
	}

	if proposer, err := s.users.GetUser(ctx, trade.ProposerID); err == nil {
		trade.Proposer = proposer
	}
	if receiver, err := s.users.GetUser(ctx, trade.ReceiverID); err == nil {
		trade.Receiver = receiver
	}

	summary := &models.TradeCompletionSummary{Trade: *trade}

	if details, err := s.details.GetTradeDetails(ctx, tradeID); err == nil {
		summary.Details = details
	} else if !storage.IsNotFound(err) {
		log.Printf("Ошибка получения данных о доставке %s: %v", tradeID, err)
	}

	if summary.Reviews, err = s.reviews.ListReviewsByTrade(ctx, tradeID); err != nil {
		return nil, apperrors.Internal(err, "ошибка получения отзывов")
	}
	if summary.Disputes, err = s.disputes.ListDisputesByTrade(ctx, tradeID); err != nil {
		return nil, apperrors.Internal(err, "ошибка получения споров")
	}

	return summary, nil
}
