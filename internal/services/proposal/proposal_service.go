// Package proposal — жизненный цикл предложений обмена до создания Trade.
package proposal

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

// Действия над предложением
const (
	ActionAccept = "accept"
	ActionReject = "reject"
	ActionCancel = "cancel"
)

// Service реализует операции над предложениями обмена
type Service struct {
	proposals storage.ProposalStore
	items     storage.ItemStore
	feed      *feed.Feed
	notifier  notifier.Dispatcher
}

// NewService создает сервис предложений
func NewService(proposals storage.ProposalStore, items storage.ItemStore, f *feed.Feed, n notifier.Dispatcher) *Service {
	return &Service{proposals: proposals, items: items, feed: f, notifier: n}
}

// ProposeInput — параметры нового предложения
type ProposeInput struct {
	ItemID                  uuid.UUID
	ProposedItemID          *uuid.UUID
	ProposedItemDescription string
	Message                 string
	ExchangeMode            string
}

// Propose создает pending-предложение по объявлению.
// На пару (объявление, автор) допускается не более одного pending-предложения.
func (s *Service) Propose(ctx context.Context, proposerID uuid.UUID, in ProposeInput) (*models.TradeProposal, error) {
	if in.ProposedItemID == nil && in.ProposedItemDescription == "" {
		return nil, apperrors.Validation("нужно указать предлагаемый предмет или его описание")
	}

	switch in.ExchangeMode {
	case "", models.ExchangeModeMeetup, models.ExchangeModeShipping, models.ExchangeModeOnline:
	default:
		return nil, apperrors.Validation("неизвестный способ обмена: %s", in.ExchangeMode)
	}

	item, err := s.items.GetItem(ctx, in.ItemID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, apperrors.NotFound("объявление не найдено")
		}
		return nil, apperrors.Internal(err, "ошибка получения объявления")
	}
	if item.UserID == proposerID {
		return nil, apperrors.Validation("нельзя предложить обмен на собственное объявление")
	}
	if item.Status != models.ItemStatusAvailable {
		return nil, apperrors.Conflict("объявление недоступно для обмена")
	}

	// Предлагаемый предмет должен принадлежать автору предложения
	if in.ProposedItemID != nil {
		proposed, err := s.items.GetItem(ctx, *in.ProposedItemID)
		if err != nil {
			if storage.IsNotFound(err) {
				return nil, apperrors.NotFound("предлагаемое объявление не найдено")
			}
			return nil, apperrors.Internal(err, "ошибка получения предлагаемого объявления")
		}
		if proposed.UserID != proposerID {
			return nil, apperrors.Permission("предлагать можно только свои объявления")
		}
	}

	exists, err := s.proposals.HasPendingProposal(ctx, in.ItemID, proposerID)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка проверки активных предложений")
	}
	if exists {
		return nil, apperrors.Conflict("у вас уже есть активное предложение по этому объявлению")
	}

	now := time.Now()
	p := &models.TradeProposal{
		ID:                      uuid.New(),
		ItemID:                  in.ItemID,
		ProposerID:              proposerID,
		ProposedItemID:          in.ProposedItemID,
		ProposedItemDescription: in.ProposedItemDescription,
		Message:                 in.Message,
		ExchangeMode:            in.ExchangeMode,
		Status:                  models.ProposalStatusPending,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	if err := s.proposals.InsertProposal(ctx, p); err != nil {
		return nil, apperrors.Internal(err, "ошибка сохранения предложения")
	}

	s.notifier.Notify(ctx, []uuid.UUID{item.UserID}, models.NotificationTypeTradeProposal,
		"Новое предложение обмена", "По вашему объявлению «"+item.Title+"» поступило предложение",
		map[string]any{"proposal_id": p.ID.String(), "item_id": item.ID.String()})

	return p, nil
}

// Resolve применяет действие к pending-предложению.
// Принять или отклонить может владелец объявления, отозвать — автор предложения.
func (s *Service) Resolve(ctx context.Context, callerID, proposalID uuid.UUID, action string) (*models.TradeProposal, *models.Trade, error) {
	p, err := s.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil, apperrors.NotFound("предложение не найдено")
		}
		return nil, nil, apperrors.Internal(err, "ошибка получения предложения")
	}

	item, err := s.items.GetItem(ctx, p.ItemID)
	if err != nil {
		return nil, nil, apperrors.Internal(err, "ошибка получения объявления")
	}

	if p.Terminal() {
		return nil, nil, apperrors.Conflict("предложение уже %s", p.Status)
	}

	now := time.Now()

	switch action {
	case ActionAccept:
		if item.UserID != callerID {
			return nil, nil, apperrors.Permission("принять предложение может только владелец объявления")
		}
		return s.accept(ctx, p, item, callerID, now)

	case ActionReject:
		if item.UserID != callerID {
			return nil, nil, apperrors.Permission("отклонить предложение может только владелец объявления")
		}
		return s.transition(ctx, p, models.ProposalStatusRejected, now, p.ProposerID,
			"Предложение отклонено", "Ваше предложение по «"+item.Title+"» отклонено")

	case ActionCancel:
		if p.ProposerID != callerID {
			return nil, nil, apperrors.Permission("отозвать предложение может только его автор")
		}
		return s.transition(ctx, p, models.ProposalStatusCancelled, now, item.UserID,
			"Предложение отозвано", "Предложение по «"+item.Title+"» отозвано автором")

	default:
		return nil, nil, apperrors.Validation("неизвестное действие: %s", action)
	}
}

func (s *Service) accept(ctx context.Context, p *models.TradeProposal, item *models.Item, receiverID uuid.UUID, now time.Time) (*models.TradeProposal, *models.Trade, error) {
	res, err := s.proposals.AcceptProposal(ctx, p.ID, receiverID, now)
	if err != nil {
		switch {
		case storage.IsNotFound(err):
			return nil, nil, apperrors.NotFound("предложение не найдено")
		case storage.IsStaleStatus(err):
			return nil, nil, apperrors.Conflict("предложение уже обработано")
		default:
			return nil, nil, apperrors.Internal(err, "ошибка принятия предложения")
		}
	}

	p.Status = models.ProposalStatusAccepted
	p.UpdatedAt = now

	// Предлагаемое объявление тоже уходит из каталога
	if p.ProposedItemID != nil {
		if err := s.items.SetItemStatus(ctx, *p.ProposedItemID, models.ItemStatusBartered, now); err != nil {
			log.Printf("Ошибка обновления статуса объявления %s: %v", *p.ProposedItemID, err)
		}
	}

	// Уведомления и события после фиксации, сбои не откатывают принятие
	s.notifier.Notify(ctx, []uuid.UUID{p.ProposerID}, models.NotificationTypeTradeUpdate,
		"Предложение принято", "Ваше предложение по «"+item.Title+"» принято",
		map[string]any{"trade_id": res.Trade.ID.String()})

	for _, cancelled := range res.CancelledProposals {
		s.notifier.Notify(ctx, []uuid.UUID{cancelled.ProposerID}, models.NotificationTypeTradeUpdate,
			"Предложение снято", "Объявление «"+item.Title+"» обменяно по другому предложению",
			map[string]any{"proposal_id": cancelled.ID.String()})
	}

	for _, userID := range []uuid.UUID{res.Trade.ProposerID, res.Trade.ReceiverID} {
		s.feed.Publish(feed.UserTopic(userID), feed.Event{
			Kind:  feed.EventTradeUpdate,
			Trade: res.Trade,
		})
	}

	return p, res.Trade, nil
}

func (s *Service) transition(ctx context.Context, p *models.TradeProposal, to string, now time.Time, notifyUserID uuid.UUID, title, body string) (*models.TradeProposal, *models.Trade, error) {
	ok, err := s.proposals.UpdateProposalStatus(ctx, p.ID, models.ProposalStatusPending, to, now)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil, apperrors.NotFound("предложение не найдено")
		}
		return nil, nil, apperrors.Internal(err, "ошибка обновления предложения")
	}
	if !ok {
		return nil, nil, apperrors.Conflict("предложение уже обработано")
	}

	p.Status = to
	p.UpdatedAt = now

	s.notifier.Notify(ctx, []uuid.UUID{notifyUserID}, models.NotificationTypeTradeUpdate,
		title, body, map[string]any{"proposal_id": p.ID.String()})

	return p, nil, nil
}

// ListForUser возвращает предложения пользователя: отправленные им
// и поступившие по его объявлениям, новые первыми.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.TradeProposal, error) {
	proposals, err := s.proposals.ListProposalsForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка получения предложений")
	}
	return proposals, nil
}
