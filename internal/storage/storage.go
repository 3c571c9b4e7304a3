// Package storage определяет контракты хранилищ ядра. Сервисы зависят от
// узких интерфейсов; postgres и memory реализуют их единым типом Store.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/models"
)

// MessageStore — персистентное хранилище сообщений
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	// ListBetween возвращает по возрастанию created_at последние limit сообщений
	// пары (или limit сообщений строго до before), мягко удаленные исключаются.
	ListBetween(ctx context.Context, userID, otherUserID uuid.UUID, limit int, before *time.Time) ([]models.Message, error)
	ListByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.Message, error)
	MarkMessagesRead(ctx context.Context, ids []uuid.UUID, at time.Time) error
	SoftDeleteMessage(ctx context.Context, id uuid.UUID, at time.Time) error
	UnreadMessageCount(ctx context.Context, userID uuid.UUID) (int, error)
	// Partners возвращает собеседников с временем последнего сообщения и числом
	// непрочитанных, отсортированных по свежести переписки.
	Partners(ctx context.Context, userID uuid.UUID) ([]models.ConversationPartner, error)
}

// AcceptResult — результат транзакционного принятия предложения
type AcceptResult struct {
	Trade *models.Trade
	// TradeCreated — false, если обмен по этой четверке уже существовал
	TradeCreated bool
	// CancelledProposals — конкурирующие pending-предложения, снятые при принятии
	CancelledProposals []models.TradeProposal
}

// ProposalStore — хранилище предложений обмена
type ProposalStore interface {
	InsertProposal(ctx context.Context, p *models.TradeProposal) error
	GetProposal(ctx context.Context, id uuid.UUID) (*models.TradeProposal, error)
	HasPendingProposal(ctx context.Context, itemID, proposerID uuid.UUID) (bool, error)
	// UpdateProposalStatus применяет переход только из ожидаемого статуса;
	// false означает, что конкурирующий писатель успел раньше.
	UpdateProposalStatus(ctx context.Context, id uuid.UUID, expect, to string, at time.Time) (bool, error)
	ListProposalsForUser(ctx context.Context, userID uuid.UUID) ([]models.TradeProposal, error)
	// AcceptProposal атомарно: переводит предложение в accepted, снимает
	// конкурирующие pending-предложения по тому же объявлению, идемпотентно
	// находит или создает Trade по четверке идентификаторов и переводит
	// запрошенное объявление в статус bartered.
	AcceptProposal(ctx context.Context, proposalID, receiverID uuid.UUID, now time.Time) (*AcceptResult, error)
}

// TradeStore — хранилище обменов
type TradeStore interface {
	InsertTrade(ctx context.Context, t *models.Trade) error
	GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error)
	// UpdateTradeStatus применяет переход, только если текущий статус входит в
	// expect; false — проигравший конкурентный писатель должен перечитать.
	UpdateTradeStatus(ctx context.Context, id uuid.UUID, to string, at time.Time, expect ...string) (bool, error)
	// SetTradeConfirmed выставляет флаг подтверждения стороны (идемпотентно)
	// и возвращает обновленный обмен.
	SetTradeConfirmed(ctx context.Context, id uuid.UUID, proposerSide bool, at time.Time) (*models.Trade, error)
	// ListTradesForUser возвращает обмены пользователя, новые первыми;
	// пустой status — без фильтра.
	ListTradesForUser(ctx context.Context, userID uuid.UUID, status string) ([]models.Trade, error)
}

// TradeDetailsStore — данные о доставке, одна запись на обмен
type TradeDetailsStore interface {
	UpsertTradeDetails(ctx context.Context, d *models.TradeDetails) error
	GetTradeDetails(ctx context.Context, tradeID uuid.UUID) (*models.TradeDetails, error)
}

// ReviewStore — отзывы по обменам, upsert по (trade, reviewer, reviewed)
type ReviewStore interface {
	UpsertReview(ctx context.Context, r *models.TradeReview) error
	ListReviewsByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.TradeReview, error)
	ListReviewsByUser(ctx context.Context, userID uuid.UUID) ([]models.TradeReview, error)
}

// DisputeStore — споры по обменам
type DisputeStore interface {
	InsertDispute(ctx context.Context, d *models.TradeDispute) error
	ListDisputesByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.TradeDispute, error)
	ListDisputesByUser(ctx context.Context, userID uuid.UUID) ([]models.TradeDispute, error)
}

// ItemStore — каталог объявлений (внешний коллаборатор ядра)
type ItemStore interface {
	InsertItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	SetItemStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) error
	ListItemsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error)
}

// UserStore — справочник пользователей (внешний коллаборатор ядра)
type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpsertTelegramUser создает или обновляет пользователя по telegram_id
	// и возвращает каноническую запись.
	UpsertTelegramUser(ctx context.Context, user *models.User) (*models.User, error)
}

// NotificationStore — лента уведомлений
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error)
	UnreadNotificationCount(ctx context.Context, userID uuid.UUID) (int, error)
	MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error
	DeleteNotification(ctx context.Context, id, userID uuid.UUID) error
}

// ErrNotFound возвращают реализации, когда запись отсутствует; сервисы
// переводят его в apperrors.NotFound с контекстом.
var ErrNotFound = errors.New("storage: not found")

// ErrStaleStatus возвращается, когда guarded-переход не применился из-за
// конкурентного писателя; вызывающий должен перечитать состояние.
var ErrStaleStatus = errors.New("storage: stale status")

// IsNotFound сообщает, что запись отсутствует
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStaleStatus сообщает, что переход не применился из-за конкурентного писателя
func IsStaleStatus(err error) bool {
	return errors.Is(err, ErrStaleStatus)
}
