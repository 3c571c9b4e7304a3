package badge

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
	return NewService(store, store, f), store, f
}

func seedMessage(t *testing.T, store *memory.Store, senderID, receiverID uuid.UUID) {
	t.Helper()
	msg := &models.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    "привет",
		Type:       models.MessageTypeText,
		Status:     models.MessageStatusSent,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.InsertMessage(context.Background(), msg))
}

func seedNotifications(t *testing.T, store *memory.Store, f *feed.Feed, userID uuid.UUID, n int) {
	t.Helper()
	dispatcher := notifier.NewService(store, f)
	for i := 0; i < n; i++ {
		dispatcher.Notify(context.Background(), []uuid.UUID{userID}, models.NotificationTypeTradeUpdate,
			"Обновление обмена", "Статус обмена изменился", map[string]any{"index": i})
	}
}

func TestCounts(t *testing.T) {
	svc, store, f := newTestService(t)
	ctx := context.Background()

	user := uuid.New()
	other := uuid.New()

	counts, err := svc.Counts(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)

	seedMessage(t, store, other, user)
	seedMessage(t, store, other, user)
	seedNotifications(t, store, f, user, 1)
	// Чужое непрочитанное не учитывается
	seedMessage(t, store, user, other)

	counts, err = svc.Counts(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Messages)
	assert.Equal(t, 1, counts.Notifications)
	assert.Equal(t, 3, counts.Total)
}

func TestRefreshPublishesCounts(t *testing.T) {
	svc, store, f := newTestService(t)
	ctx := context.Background()

	user := uuid.New()
	seedMessage(t, store, uuid.New(), user)

	sub := f.Subscribe(feed.UserTopic(user), 4)
	defer sub.Unsubscribe()

	svc.Refresh(ctx, user)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, feed.EventBadgeUpdate, ev.Kind)
		require.NotNil(t, ev.Counts)
		assert.Equal(t, 1, ev.Counts.Messages)
		assert.Equal(t, 1, ev.Counts.Total)
	case <-time.After(time.Second):
		t.Fatal("событие с бейджами не опубликовано")
	}
}

func TestNotificationsPagination(t *testing.T) {
	svc, store, f := newTestService(t)
	ctx := context.Background()

	user := uuid.New()
	seedNotifications(t, store, f, user, 5)

	page, err := svc.Notifications(ctx, user, 3, 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	rest, err := svc.Notifications(ctx, user, 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	// Неположительный лимит заменяется лимитом по умолчанию
	all, err := svc.Notifications(ctx, user, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMarkReadOperations(t *testing.T) {
	svc, store, f := newTestService(t)
	ctx := context.Background()

	user := uuid.New()
	stranger := uuid.New()
	seedNotifications(t, store, f, user, 3)

	page, err := svc.Notifications(ctx, user, 10, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)

	// Чужое уведомление отметить нельзя
	err = svc.MarkRead(ctx, stranger, page[0].ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	require.NoError(t, svc.MarkRead(ctx, user, page[0].ID))
	counts, err := svc.Counts(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Notifications)

	require.NoError(t, svc.MarkAllRead(ctx, user))
	counts, err = svc.Counts(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Notifications)

	// Удаление убирает уведомление из ленты
	require.NoError(t, svc.Delete(ctx, user, page[1].ID))
	page, err = svc.Notifications(ctx, user, 10, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	err = svc.Delete(ctx, user, uuid.New())
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}
