package feed

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationTopicSymmetric(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	assert.Equal(t, ConversationTopic(a, b), ConversationTopic(b, a))
	assert.NotEqual(t, ConversationTopic(a, b), ConversationTopic(a, uuid.New()))
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	f := NewFeed()
	defer f.Close()

	topic := UserTopic(uuid.New())
	sub1 := f.Subscribe(topic, 4)
	sub2 := f.Subscribe(topic, 4)

	f.Publish(topic, Event{Kind: EventBadgeUpdate})

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, EventBadgeUpdate, ev.Kind)
			assert.NotEqual(t, uuid.Nil, ev.ID)
		case <-time.After(time.Second):
			t.Fatal("событие не доставлено")
		}
	}
}

func TestPublishDoesNotBlockOnFullBuffer(t *testing.T) {
	f := NewFeed()
	defer f.Close()

	topic := UserTopic(uuid.New())
	sub := f.Subscribe(topic, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			f.Publish(topic, Event{Kind: EventMessageNew})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("публикация заблокировалась на медленном подписчике")
	}

	// В буфере ровно одно событие, остальные потеряны
	assert.Len(t, sub.Events(), 1)
}

func TestUnsubscribeIdempotent(t *testing.T) {
	f := NewFeed()
	defer f.Close()

	topic := UserTopic(uuid.New())
	sub := f.Subscribe(topic, 4)

	sub.Unsubscribe()
	sub.Unsubscribe()

	_, open := <-sub.Events()
	assert.False(t, open)

	// Публикация в топик без подписчиков безопасна
	f.Publish(topic, Event{Kind: EventMessageNew})
}

func TestCloseClosesSubscriberChannels(t *testing.T) {
	f := NewFeed()
	sub := f.Subscribe(UserTopic(uuid.New()), 4)

	f.Close()

	_, open := <-sub.Events()
	require.False(t, open)

	// Подписка после закрытия сразу получает закрытый канал
	late := f.Subscribe(UserTopic(uuid.New()), 4)
	_, open = <-late.Events()
	assert.False(t, open)
}
