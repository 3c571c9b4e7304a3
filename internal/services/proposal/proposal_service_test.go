package proposal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/barterhaven-api/internal/apperrors"
	"github.com/rajivgeraev/barterhaven-api/internal/feed"
	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/notifier"
	"github.com/rajivgeraev/barterhaven-api/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, *feed.Feed) {
	t.Helper()
	store := memory.NewStore()
	f := feed.NewFeed()
	t.Cleanup(f.Close)
	svc := NewService(store, store, f, notifier.NewService(store, f))
	return svc, store, f
}

func addUser(t *testing.T, store *memory.Store, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	store.AddUser(models.User{ID: id, Username: name, CreatedAt: time.Now()})
	return id
}

func addItem(t *testing.T, store *memory.Store, ownerID uuid.UUID, title string) uuid.UUID {
	t.Helper()
	now := time.Now()
	item := &models.Item{
		ID:        uuid.New(),
		UserID:    ownerID,
		Title:     title,
		Status:    models.ItemStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.InsertItem(context.Background(), item))
	return item.ID
}

func TestProposeValidation(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	owner := addUser(t, store, "owner")
	proposer := addUser(t, store, "proposer")
	itemID := addItem(t, store, owner, "велосипед")

	// Без предмета и описания
	_, err := svc.Propose(ctx, proposer, ProposeInput{ItemID: itemID})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	// На собственное объявление
	_, err = svc.Propose(ctx, owner, ProposeInput{ItemID: itemID, ProposedItemDescription: "гитара"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	// Несуществующее объявление
	_, err = svc.Propose(ctx, proposer, ProposeInput{ItemID: uuid.New(), ProposedItemDescription: "гитара"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	// Чужой предлагаемый предмет
	foreign := addItem(t, store, owner, "чужое")
	_, err = svc.Propose(ctx, proposer, ProposeInput{ItemID: itemID, ProposedItemID: &foreign})
	assert.True(t, apperrors.IsKind(err, apperrors.KindPermission))

	// Неизвестный способ обмена
	_, err = svc.Propose(ctx, proposer, ProposeInput{ItemID: itemID, ProposedItemDescription: "гитара", ExchangeMode: "телепортация"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestProposeDuplicatePending(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	owner := addUser(t, store, "owner")
	proposer := addUser(t, store, "proposer")
	itemID := addItem(t, store, owner, "велосипед")

	p, err := svc.Propose(ctx, proposer, ProposeInput{ItemID: itemID, ProposedItemDescription: "гитара"})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPending, p.Status)

	// Второе pending-предложение той же пары запрещено
	_, err = svc.Propose(ctx, proposer, ProposeInput{ItemID: itemID, ProposedItemDescription: "синтезатор"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// Владельцу создано уведомление о предложении
	count, err := store.UnreadNotificationCount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAcceptProposal(t *testing.T) {
	svc, store, f := newTestService(t)
	ctx := context.Background()

	owner := addUser(t, store, "owner")
	first := addUser(t, store, "first")
	second := addUser(t, store, "second")
	itemID := addItem(t, store, owner, "велосипед")
	offeredID := addItem(t, store, first, "гитара")

	p1, err := svc.Propose(ctx, first, ProposeInput{ItemID: itemID, ProposedItemID: &offeredID, ExchangeMode: models.ExchangeModeMeetup})
	require.NoError(t, err)
	p2, err := svc.Propose(ctx, second, ProposeInput{ItemID: itemID, ProposedItemDescription: "самокат"})
	require.NoError(t, err)

	// Принять может только владелец объявления
	_, _, err = svc.Resolve(ctx, first, p1.ID, ActionAccept)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPermission))

	sub := f.Subscribe(feed.UserTopic(first), 4)
	defer sub.Unsubscribe()

	resolved, trade, err := svc.Resolve(ctx, owner, p1.ID, ActionAccept)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, models.ProposalStatusAccepted, resolved.Status)
	assert.Equal(t, models.TradeStatusAccepted, trade.Status)
	assert.Equal(t, first, trade.ProposerID)
	assert.Equal(t, owner, trade.ReceiverID)
	assert.Equal(t, itemID, trade.RequestedItemID)
	require.NotNil(t, trade.OfferedItemID)
	assert.Equal(t, offeredID, *trade.OfferedItemID)
	assert.Equal(t, models.ExchangeModeMeetup, trade.ExchangeMode)

	// Конкурирующее предложение снято
	other, err := store.GetProposal(ctx, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusCancelled, other.Status)

	// Оба объявления ушли из каталога
	item, err := store.GetItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusBartered, item.Status)
	offered, err := store.GetItem(ctx, offeredID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusBartered, offered.Status)

	// Автору предложения опубликовано событие об обмене. В персональный топик
	// приходят и уведомления, поэтому вычитываем до нужного события.
	deadline := time.After(time.Second)
	var ev feed.Event
	for ev.Kind != feed.EventTradeUpdate {
		select {
		case ev = <-sub.Events():
		case <-deadline:
			t.Fatal("событие об обмене не опубликовано")
		}
	}
	require.NotNil(t, ev.Trade)
	assert.Equal(t, trade.ID, ev.Trade.ID)

	// Повторное принятие — конфликт
	_, _, err = svc.Resolve(ctx, owner, p1.ID, ActionAccept)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestRejectAndCancel(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	owner := addUser(t, store, "owner")
	proposer := addUser(t, store, "proposer")
	itemID := addItem(t, store, owner, "велосипед")

	p, err := svc.Propose(ctx, proposer, ProposeInput{ItemID: itemID, ProposedItemDescription: "гитара"})
	require.NoError(t, err)

	// Отозвать может только автор
	_, _, err = svc.Resolve(ctx, owner, p.ID, ActionCancel)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPermission))

	resolved, trade, err := svc.Resolve(ctx, owner, p.ID, ActionReject)
	require.NoError(t, err)
	assert.Nil(t, trade)
	assert.Equal(t, models.ProposalStatusRejected, resolved.Status)

	// Действие над уже обработанным предложением — конфликт
	_, _, err = svc.Resolve(ctx, proposer, p.ID, ActionCancel)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// Отзыв автором
	p2, err := svc.Propose(ctx, proposer, ProposeInput{ItemID: itemID, ProposedItemDescription: "гитара"})
	require.NoError(t, err)
	resolved, _, err = svc.Resolve(ctx, proposer, p2.ID, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusCancelled, resolved.Status)

	// Неизвестное действие на терминальном предложении — статусная ошибка важнее
	_, _, err = svc.Resolve(ctx, owner, p2.ID, "approve")
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	p3, err := svc.Propose(ctx, proposer, ProposeInput{ItemID: itemID, ProposedItemDescription: "гитара"})
	require.NoError(t, err)
	_, _, err = svc.Resolve(ctx, owner, p3.ID, "approve")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestListForUser(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	owner := addUser(t, store, "owner")
	proposer := addUser(t, store, "proposer")
	outsider := addUser(t, store, "outsider")
	itemID := addItem(t, store, owner, "велосипед")

	_, err := svc.Propose(ctx, proposer, ProposeInput{ItemID: itemID, ProposedItemDescription: "гитара"})
	require.NoError(t, err)

	// Предложение видят обе стороны, посторонний — нет
	mine, err := svc.ListForUser(ctx, proposer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Item)
	assert.Equal(t, "велосипед", mine[0].Item.Title)

	received, err := svc.ListForUser(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, received, 1)

	none, err := svc.ListForUser(ctx, outsider)
	require.NoError(t, err)
	assert.Empty(t, none)
}
