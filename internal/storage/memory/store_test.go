package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/storage"
)

func seedProposal(t *testing.T, store *Store, itemID, proposerID uuid.UUID) *models.TradeProposal {
	t.Helper()
	now := time.Now()
	p := &models.TradeProposal{
		ID:                      uuid.New(),
		ItemID:                  itemID,
		ProposerID:              proposerID,
		ProposedItemDescription: "гитара",
		Status:                  models.ProposalStatusPending,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	require.NoError(t, store.InsertProposal(context.Background(), p))
	return p
}

func seedAvailableItem(t *testing.T, store *Store, ownerID uuid.UUID) uuid.UUID {
	t.Helper()
	now := time.Now()
	item := &models.Item{
		ID:        uuid.New(),
		UserID:    ownerID,
		Title:     "велосипед",
		Status:    models.ItemStatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.InsertItem(context.Background(), item))
	return item.ID
}

func TestAcceptProposalCancelsCompetitors(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	owner := uuid.New()
	itemID := seedAvailableItem(t, store, owner)
	otherItemID := seedAvailableItem(t, store, owner)

	winner := seedProposal(t, store, itemID, uuid.New())
	loser := seedProposal(t, store, itemID, uuid.New())
	unrelated := seedProposal(t, store, otherItemID, uuid.New())

	res, err := store.AcceptProposal(ctx, winner.ID, owner, time.Now())
	require.NoError(t, err)
	assert.True(t, res.TradeCreated)
	assert.Equal(t, models.TradeStatusAccepted, res.Trade.Status)
	assert.Equal(t, winner.ProposerID, res.Trade.ProposerID)
	assert.Equal(t, owner, res.Trade.ReceiverID)

	require.Len(t, res.CancelledProposals, 1)
	assert.Equal(t, loser.ID, res.CancelledProposals[0].ID)

	got, err := store.GetProposal(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusCancelled, got.Status)

	// Предложение по другому объявлению не задето
	got, err = store.GetProposal(ctx, unrelated.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatusPending, got.Status)

	// Объявление ушло из каталога
	item, err := store.GetItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusBartered, item.Status)
}

func TestAcceptProposalStaleStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	owner := uuid.New()
	itemID := seedAvailableItem(t, store, owner)
	p := seedProposal(t, store, itemID, uuid.New())

	_, err := store.AcceptProposal(ctx, p.ID, owner, time.Now())
	require.NoError(t, err)

	// Повторное принятие упирается в уже измененный статус
	_, err = store.AcceptProposal(ctx, p.ID, owner, time.Now())
	assert.True(t, storage.IsStaleStatus(err))

	_, err = store.AcceptProposal(ctx, uuid.New(), owner, time.Now())
	assert.True(t, storage.IsNotFound(err))
}

func TestAcceptProposalReusesExistingTrade(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	owner := uuid.New()
	proposer := uuid.New()
	itemID := seedAvailableItem(t, store, owner)

	first := seedProposal(t, store, itemID, proposer)
	res1, err := store.AcceptProposal(ctx, first.ID, owner, time.Now())
	require.NoError(t, err)
	require.True(t, res1.TradeCreated)

	// Повторное предложение той же пары после сброса статуса объявления
	require.NoError(t, store.SetItemStatus(ctx, itemID, models.ItemStatusAvailable, time.Now()))
	second := seedProposal(t, store, itemID, proposer)
	res2, err := store.AcceptProposal(ctx, second.ID, owner, time.Now())
	require.NoError(t, err)

	assert.False(t, res2.TradeCreated)
	assert.Equal(t, res1.Trade.ID, res2.Trade.ID)
}

func TestUpdateProposalStatusGuard(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	itemID := seedAvailableItem(t, store, uuid.New())
	p := seedProposal(t, store, itemID, uuid.New())

	ok, err := store.UpdateProposalStatus(ctx, p.ID, models.ProposalStatusPending, models.ProposalStatusRejected, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	// Ожидаемый статус уже не совпадает
	ok, err = store.UpdateProposalStatus(ctx, p.ID, models.ProposalStatusPending, models.ProposalStatusCancelled, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.UpdateProposalStatus(ctx, uuid.New(), models.ProposalStatusPending, models.ProposalStatusCancelled, time.Now())
	assert.True(t, storage.IsNotFound(err))
}

func TestUpdateTradeStatusGuard(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	now := time.Now()
	trade := &models.Trade{
		ID:              uuid.New(),
		ProposerID:      uuid.New(),
		ReceiverID:      uuid.New(),
		RequestedItemID: uuid.New(),
		Status:          models.TradeStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, store.InsertTrade(ctx, trade))

	applied, err := store.UpdateTradeStatus(ctx, trade.ID, models.TradeStatusAccepted, time.Now(), models.TradeStatusPending)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.UpdateTradeStatus(ctx, trade.ID, models.TradeStatusAccepted, time.Now(), models.TradeStatusPending)
	require.NoError(t, err)
	assert.False(t, applied)

	// Без списка ожидаемых статусов переход не применяется
	applied, err = store.UpdateTradeStatus(ctx, trade.ID, models.TradeStatusCancelled, time.Now())
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = store.UpdateTradeStatus(ctx, uuid.New(), models.TradeStatusAccepted, time.Now())
	assert.True(t, storage.IsNotFound(err))
}

func TestSetTradeConfirmedSides(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	now := time.Now()
	trade := &models.Trade{
		ID:              uuid.New(),
		ProposerID:      uuid.New(),
		ReceiverID:      uuid.New(),
		RequestedItemID: uuid.New(),
		Status:          models.TradeStatusAccepted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, store.InsertTrade(ctx, trade))

	got, err := store.SetTradeConfirmed(ctx, trade.ID, true, time.Now())
	require.NoError(t, err)
	assert.True(t, got.ProposerConfirmed)
	assert.False(t, got.ReceiverConfirmed)

	got, err = store.SetTradeConfirmed(ctx, trade.ID, false, time.Now())
	require.NoError(t, err)
	assert.True(t, got.ProposerConfirmed)
	assert.True(t, got.ReceiverConfirmed)

	_, err = store.SetTradeConfirmed(ctx, uuid.New(), true, time.Now())
	assert.True(t, storage.IsNotFound(err))
}
