package chat

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
	svc := NewService(store, store, store, f, notifier.NewService(store, f))
	return svc, store, f
}

func addUser(t *testing.T, store *memory.Store, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	store.AddUser(models.User{ID: id, Username: name, CreatedAt: time.Now()})
	return id
}

func TestSendAndFetchMarksRead(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	alice := addUser(t, store, "alice")
	bob := addUser(t, store, "bob")

	msg, err := svc.Send(ctx, alice, bob, nil, "привет", "")
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeText, msg.Type)
	assert.Equal(t, models.MessageStatusSent, msg.Status)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "alice", msg.Sender.Username)

	count, err := svc.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Чтение переписки отмечает входящие сообщения прочитанными
	messages, err := svc.Fetch(ctx, bob, alice, 0, nil)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.NotNil(t, messages[0].ReadAt)

	count, err = svc.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// У отправителя непрочитанных нет
	count, err = svc.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSendValidation(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	alice := addUser(t, store, "alice")
	bob := addUser(t, store, "bob")

	// Нулевые идентификаторы отклоняются до обращения к справочнику
	_, err := svc.Send(ctx, uuid.Nil, bob, nil, "привет", "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.Send(ctx, alice, uuid.Nil, nil, "привет", "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.Send(ctx, alice, bob, nil, "", "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.Send(ctx, alice, alice, nil, "сам себе", "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.Send(ctx, alice, bob, nil, "привет", "video")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.Send(ctx, alice, uuid.New(), nil, "привет", "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestSendNotifiesReceiver(t *testing.T) {
	svc, store, f := newTestService(t)
	ctx := context.Background()

	alice := addUser(t, store, "alice")
	bob := addUser(t, store, "bob")

	sub := f.Subscribe(feed.ConversationTopic(alice, bob), 4)
	defer sub.Unsubscribe()

	_, err := svc.Send(ctx, alice, bob, nil, "привет", "")
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, feed.EventMessageNew, ev.Kind)
		require.NotNil(t, ev.Message)
		assert.Equal(t, "привет", ev.Message.Content)
	case <-time.After(time.Second):
		t.Fatal("событие о новом сообщении не опубликовано")
	}

	// Получателю создано уведомление
	count, err := store.UnreadNotificationCount(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFetchPublishesReadReceipts(t *testing.T) {
	svc, store, f := newTestService(t)
	ctx := context.Background()

	alice := addUser(t, store, "alice")
	bob := addUser(t, store, "bob")

	first, err := svc.Send(ctx, alice, bob, nil, "первое", "")
	require.NoError(t, err)
	second, err := svc.Send(ctx, alice, bob, nil, "второе", "")
	require.NoError(t, err)

	sub := f.Subscribe(feed.ConversationTopic(alice, bob), 8)
	defer sub.Unsubscribe()

	_, err = svc.Fetch(ctx, bob, alice, 0, nil)
	require.NoError(t, err)

	// По каждому прочитанному сообщению приходит событие с его идентификатором,
	// отправителю не нужно перечитывать страницу
	read := map[uuid.UUID]bool{}
	deadline := time.After(time.Second)
	for len(read) < 2 {
		select {
		case ev := <-sub.Events():
			require.Equal(t, feed.EventMessageRead, ev.Kind)
			require.NotNil(t, ev.Message)
			require.NotNil(t, ev.Message.ReadAt)
			assert.Equal(t, alice, ev.Message.SenderID)
			read[ev.Message.ID] = true
		case <-deadline:
			t.Fatal("события о прочтении не опубликованы")
		}
	}
	assert.True(t, read[first.ID])
	assert.True(t, read[second.ID])
}

func TestFetchPagination(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	alice := addUser(t, store, "alice")
	bob := addUser(t, store, "bob")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		msg := &models.Message{
			ID:         uuid.New(),
			SenderID:   alice,
			ReceiverID: bob,
			Content:    "msg",
			Type:       models.MessageTypeText,
			Status:     models.MessageStatusSent,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.InsertMessage(ctx, msg))
	}

	// Последние 2 сообщения окна, по возрастанию
	page, err := svc.Fetch(ctx, alice, bob, 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.Before(page[1].CreatedAt))

	// Страница старше курсора
	older, err := svc.Fetch(ctx, alice, bob, 10, &page[0].CreatedAt)
	require.NoError(t, err)
	assert.Len(t, older, 3)
	for _, m := range older {
		assert.True(t, m.CreatedAt.Before(page[0].CreatedAt))
	}
}

func TestSoftDelete(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	alice := addUser(t, store, "alice")
	bob := addUser(t, store, "bob")
	outsider := addUser(t, store, "outsider")

	msg, err := svc.Send(ctx, alice, bob, nil, "удали меня", "")
	require.NoError(t, err)

	// Посторонний удалять не может, стороны переписки — могут
	err = svc.SoftDelete(ctx, outsider, msg.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPermission))

	require.NoError(t, svc.SoftDelete(ctx, bob, msg.ID))

	// Повторное удаление идемпотентно
	require.NoError(t, svc.SoftDelete(ctx, alice, msg.ID))

	// Удаленное сообщение не возвращается и не считается непрочитанным
	messages, err := svc.Fetch(ctx, bob, alice, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, messages)

	count, err := svc.UnreadCount(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	err = svc.SoftDelete(ctx, alice, uuid.New())
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestMessagesByTrade(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	alice := addUser(t, store, "alice")
	bob := addUser(t, store, "bob")
	eve := addUser(t, store, "eve")

	tradeID := uuid.New()
	itemID := uuid.New()
	require.NoError(t, store.InsertTrade(ctx, &models.Trade{
		ID:              tradeID,
		ProposerID:      alice,
		ReceiverID:      bob,
		RequestedItemID: itemID,
		Status:          models.TradeStatusAccepted,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}))

	_, err := svc.Send(ctx, alice, bob, &tradeID, "по обмену", "")
	require.NoError(t, err)

	messages, err := svc.MessagesByTrade(ctx, bob, tradeID)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	// Третий пользователь переписку обмена не видит
	_, err = svc.MessagesByTrade(ctx, eve, tradeID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindPermission))

	// Отправка от третьего лица с привязкой к чужому обмену запрещена
	_, err = svc.Send(ctx, eve, bob, &tradeID, "я мимо проходил", "")
	assert.True(t, apperrors.IsKind(err, apperrors.KindPermission))
}

func TestPartners(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	alice := addUser(t, store, "alice")
	bob := addUser(t, store, "bob")
	carol := addUser(t, store, "carol")

	_, err := svc.Send(ctx, bob, alice, nil, "первое", "")
	require.NoError(t, err)
	_, err = svc.Send(ctx, carol, alice, nil, "второе", "")
	require.NoError(t, err)
	_, err = svc.Send(ctx, carol, alice, nil, "третье", "")
	require.NoError(t, err)

	partners, err := svc.Partners(ctx, alice)
	require.NoError(t, err)
	require.Len(t, partners, 2)

	// Свежая переписка первой, непрочитанные посчитаны по собеседнику
	assert.Equal(t, "carol", partners[0].User.Username)
	assert.Equal(t, 2, partners[0].UnreadCount)
	assert.Equal(t, "bob", partners[1].User.Username)
	assert.Equal(t, 1, partners[1].UnreadCount)
}
