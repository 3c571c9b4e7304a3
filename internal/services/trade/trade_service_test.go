package trade

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
	svc := NewService(store, store, store, store, store, store, f, notifier.NewService(store, f))
	return svc, store, f
}

func addUser(t *testing.T, store *memory.Store, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	store.AddUser(models.User{ID: id, Username: name, CreatedAt: time.Now()})
	return id
}

func seedTrade(t *testing.T, store *memory.Store, proposerID, receiverID uuid.UUID, status string) *models.Trade {
	t.Helper()
	now := time.Now()
	trade := &models.Trade{
		ID:              uuid.New(),
		ProposerID:      proposerID,
		ReceiverID:      receiverID,
		RequestedItemID: uuid.New(),
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, store.InsertTrade(context.Background(), trade))
	return trade
}

func TestUpdateStatusTransitions(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	proposer := addUser(t, store, "proposer")
	receiver := addUser(t, store, "receiver")
	outsider := addUser(t, store, "outsider")
	trade := seedTrade(t, store, proposer, receiver, models.TradeStatusPending)

	// Неизвестный статус
	_, err := svc.UpdateStatus(ctx, receiver, trade.ID, "frozen", "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	// Посторонний не видит обмен
	_, err = svc.UpdateStatus(ctx, outsider, trade.ID, models.TradeStatusAccepted, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindPermission))

	// Принять может только получатель
	_, err = svc.UpdateStatus(ctx, proposer, trade.ID, models.TradeStatusAccepted, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindPermission))

	// Отменить может только инициатор
	_, err = svc.UpdateStatus(ctx, receiver, trade.ID, models.TradeStatusCancelled, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindPermission))

	updated, err := svc.UpdateStatus(ctx, receiver, trade.ID, models.TradeStatusAccepted, "")
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusAccepted, updated.Status)

	// Повторное принятие — недопустимый переход
	_, err = svc.UpdateStatus(ctx, receiver, trade.ID, models.TradeStatusAccepted, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// В completed напрямую из accepted нельзя
	_, err = svc.UpdateStatus(ctx, receiver, trade.ID, models.TradeStatusCompleted, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// Отмена возможна только из pending
	_, err = svc.UpdateStatus(ctx, proposer, trade.ID, models.TradeStatusCancelled, "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// Спор открывает любая сторона принятого обмена
	updated, err = svc.UpdateStatus(ctx, proposer, trade.ID, models.TradeStatusDisputed, "предмет не получен")
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusDisputed, updated.Status)
}

func TestUpdateStatusSideEffects(t *testing.T) {
	svc, store, f := newTestService(t)
	ctx := context.Background()

	proposer := addUser(t, store, "proposer")
	receiver := addUser(t, store, "receiver")
	trade := seedTrade(t, store, proposer, receiver, models.TradeStatusPending)

	sub := f.Subscribe(feed.UserTopic(proposer), 8)
	defer sub.Unsubscribe()

	_, err := svc.UpdateStatus(ctx, receiver, trade.ID, models.TradeStatusAccepted, "")
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, feed.EventTradeUpdate, ev.Kind)
		require.NotNil(t, ev.Trade)
		assert.Equal(t, models.TradeStatusAccepted, ev.Trade.Status)
	case <-time.After(time.Second):
		t.Fatal("событие об обмене не опубликовано")
	}

	// Системное сообщение попадает в переписку обмена
	messages, err := store.ListByTrade(ctx, trade.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "Обмен принят", messages[0].Content)
	assert.Equal(t, receiver, messages[0].SenderID)
	assert.Equal(t, proposer, messages[0].ReceiverID)

	// Вторая сторона получает уведомление
	count, err := store.UnreadNotificationCount(ctx, proposer)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConfirmCompletion(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	proposer := addUser(t, store, "proposer")
	receiver := addUser(t, store, "receiver")

	// По непринятому обмену подтверждение недоступно
	pending := seedTrade(t, store, proposer, receiver, models.TradeStatusPending)
	_, err := svc.ConfirmCompletion(ctx, proposer, pending.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	trade := seedTrade(t, store, proposer, receiver, models.TradeStatusAccepted)

	confirmed, err := svc.ConfirmCompletion(ctx, proposer, trade.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.ProposerConfirmed)
	assert.False(t, confirmed.ReceiverConfirmed)
	assert.Equal(t, models.TradeStatusAccepted, confirmed.Status)

	// Повторное подтверждение той же стороной ничего не меняет
	confirmed, err = svc.ConfirmCompletion(ctx, proposer, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusAccepted, confirmed.Status)

	// Подтверждение второй стороны завершает обмен
	confirmed, err = svc.ConfirmCompletion(ctx, receiver, trade.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.ProposerConfirmed)
	assert.True(t, confirmed.ReceiverConfirmed)
	assert.Equal(t, models.TradeStatusCompleted, confirmed.Status)

	// По завершенному обмену подтверждение идемпотентно
	confirmed, err = svc.ConfirmCompletion(ctx, receiver, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusCompleted, confirmed.Status)
}

func TestHistoryAndStats(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	user := addUser(t, store, "user")
	other := addUser(t, store, "other")

	seedTrade(t, store, user, other, models.TradeStatusPending)
	seedTrade(t, store, other, user, models.TradeStatusAccepted)
	completed := seedTrade(t, store, user, other, models.TradeStatusCompleted)
	seedTrade(t, store, user, other, models.TradeStatusDisputed)
	seedTrade(t, store, other, addUser(t, store, "third"), models.TradeStatusPending)

	all, err := svc.History(ctx, user, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	done, err := svc.History(ctx, user, models.TradeStatusCompleted)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, completed.ID, done[0].ID)

	_, err = svc.History(ctx, user, "frozen")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	stats, err := svc.Stats(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Disputed)
}

func TestSubmitReview(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	proposer := addUser(t, store, "proposer")
	receiver := addUser(t, store, "receiver")
	trade := seedTrade(t, store, proposer, receiver, models.TradeStatusAccepted)

	_, err := svc.SubmitReview(ctx, proposer, trade.ID, ReviewInput{Rating: 0})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	// Отзыв только по завершенному обмену
	_, err = svc.SubmitReview(ctx, proposer, trade.ID, ReviewInput{Rating: 5})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	done := seedTrade(t, store, proposer, receiver, models.TradeStatusCompleted)
	review, err := svc.SubmitReview(ctx, proposer, done.ID, ReviewInput{Rating: 4, Comment: "все честно"})
	require.NoError(t, err)
	assert.Equal(t, receiver, review.ReviewedUserID)

	// Повторный отзыв обновляет оценку, записи не плодятся
	_, err = svc.SubmitReview(ctx, proposer, done.ID, ReviewInput{Rating: 2})
	require.NoError(t, err)

	reviews, err := svc.Reviews(ctx, receiver, done.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 2, reviews[0].Rating)

	// Отзыв о вызвавшем тоже виден в его списке
	mine, err := svc.UserReviews(ctx, receiver)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestReportDispute(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	proposer := addUser(t, store, "proposer")
	receiver := addUser(t, store, "receiver")

	trade := seedTrade(t, store, proposer, receiver, models.TradeStatusAccepted)

	_, err := svc.ReportDispute(ctx, proposer, trade.ID, DisputeInput{Reason: "item_not_as_described"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	pending := seedTrade(t, store, proposer, receiver, models.TradeStatusPending)
	_, err = svc.ReportDispute(ctx, proposer, pending.ID, DisputeInput{Description: "не тот предмет"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// Регистрация спора сама по себе статус обмена не меняет
	dispute, err := svc.ReportDispute(ctx, proposer, trade.ID, DisputeInput{
		Reason:      "item_not_as_described",
		Description: "предмет не соответствует описанию",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)
	assert.Equal(t, proposer, dispute.ReportedBy)

	updated, err := store.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusAccepted, updated.Status)

	// Перевод в disputed — отдельный переход, доступный любой стороне
	disputed, err := svc.UpdateStatus(ctx, proposer, trade.ID, models.TradeStatusDisputed, dispute.Description)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusDisputed, disputed.Status)

	// Неизвестная причина нормализуется
	done := seedTrade(t, store, proposer, receiver, models.TradeStatusCompleted)
	dispute, err = svc.ReportDispute(ctx, receiver, done.ID, DisputeInput{
		Reason:      "телепатия",
		Description: "что-то пошло не так",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DisputeReasonOther, dispute.Reason)

	disputes, err := svc.UserDisputes(ctx, proposer)
	require.NoError(t, err)
	assert.Len(t, disputes, 1)
}

func TestSaveDeliveryDetails(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	proposer := addUser(t, store, "proposer")
	receiver := addUser(t, store, "receiver")
	trade := seedTrade(t, store, proposer, receiver, models.TradeStatusAccepted)

	_, err := svc.SaveDeliveryDetails(ctx, proposer, trade.ID, DeliveryDetailsInput{DeliveryMethod: "телепортация"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	pending := seedTrade(t, store, proposer, receiver, models.TradeStatusPending)
	_, err = svc.SaveDeliveryDetails(ctx, proposer, pending.ID, DeliveryDetailsInput{DeliveryMethod: models.ExchangeModeMeetup})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	location := "парк Горького"
	details, err := svc.SaveDeliveryDetails(ctx, proposer, trade.ID, DeliveryDetailsInput{
		DeliveryMethod: models.ExchangeModeMeetup,
		MeetupLocation: &location,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeModeMeetup, details.DeliveryMethod)

	// Повторное сохранение перезаписывает единственную запись
	tracking := "RR123456789RU"
	_, err = svc.SaveDeliveryDetails(ctx, receiver, trade.ID, DeliveryDetailsInput{
		DeliveryMethod: models.ExchangeModeShipping,
		TrackingNumber: &tracking,
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, proposer, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Details)
	assert.Equal(t, models.ExchangeModeShipping, got.Details.DeliveryMethod)
	require.NotNil(t, got.Details.TrackingNumber)
	assert.Equal(t, tracking, *got.Details.TrackingNumber)
	assert.Nil(t, got.Details.MeetupLocation)
}

func TestCompletionSummary(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	proposer := addUser(t, store, "proposer")
	receiver := addUser(t, store, "receiver")
	trade := seedTrade(t, store, proposer, receiver, models.TradeStatusCompleted)

	_, err := svc.SubmitReview(ctx, proposer, trade.ID, ReviewInput{Rating: 5})
	require.NoError(t, err)
	_, err = svc.ReportDispute(ctx, receiver, trade.ID, DisputeInput{Description: "спорный момент"})
	require.NoError(t, err)

	summary, err := svc.CompletionSummary(ctx, proposer, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.ID, summary.Trade.ID)
	require.NotNil(t, summary.Trade.Proposer)
	assert.Equal(t, "proposer", summary.Trade.Proposer.Username)
	assert.Len(t, summary.Reviews, 1)
	assert.Len(t, summary.Disputes, 1)
	assert.Nil(t, summary.Details)

	// Посторонним сводка недоступна
	outsider := addUser(t, store, "outsider")
	_, err = svc.CompletionSummary(ctx, outsider, trade.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPermission))
}
