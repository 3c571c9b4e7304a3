// Package feed — внутрипроцессная шина событий реального времени.
// Доставка at-least-once: потребители дедуплицируют по id события,
// медленный подписчик теряет события, но не блокирует публикацию.
package feed

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/models"
)

// Виды событий
const (
	EventMessageNew    = "message.new"
	EventMessageRead   = "message.read"
	EventMessageDelete = "message.delete"
	EventTradeUpdate   = "trade.update"
	EventNotification  = "notification.new"
	EventBadgeUpdate   = "badge.update"
)

// Event — единица доставки; заполнено поле, соответствующее Kind
type Event struct {
	ID      uuid.UUID            `json:"id"`
	Kind    string               `json:"kind"`
	Message *models.Message      `json:"message,omitempty"`
	Trade   *models.Trade        `json:"trade,omitempty"`
	Notice  *models.Notification `json:"notification,omitempty"`
	Counts  *models.BadgeCounts  `json:"counts,omitempty"`
}

// ConversationTopic возвращает топик переписки пары пользователей.
// Идентификаторы сортируются, обе стороны получают один и тот же топик.
func ConversationTopic(a, b uuid.UUID) string {
	first, second := a.String(), b.String()
	if strings.Compare(first, second) > 0 {
		first, second = second, first
	}
	return "conv:" + first + ":" + second
}

// UserTopic возвращает персональный топик пользователя
func UserTopic(id uuid.UUID) string {
	return "user:" + id.String()
}

// Subscription — подписка на один топик
type Subscription struct {
	feed  *Feed
	topic string
	ch    chan Event

	once sync.Once
}

// Events возвращает канал событий подписки. Канал закрывается
// при Unsubscribe или при закрытии шины.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Unsubscribe снимает подписку; повторные вызовы безопасны.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.feed.remove(s)
		close(s.ch)
	})
}

// Feed рассылает события подписчикам по топикам
type Feed struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	closed bool
}

// NewFeed создает пустую шину
func NewFeed() *Feed {
	return &Feed{topics: make(map[string]map[*Subscription]struct{})}
}

// Subscribe создает подписку на топик с буфером buffer событий.
// После закрытия шины возвращает подписку с уже закрытым каналом.
func (f *Feed) Subscribe(topic string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscription{feed: f, topic: topic, ch: make(chan Event, buffer)}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	subs, ok := f.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		f.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	f.mu.Unlock()

	return sub
}

// Publish рассылает событие подписчикам топика. Никогда не блокируется:
// при переполненном буфере подписчика событие для него теряется.
func (f *Feed) Publish(topic string, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for sub := range f.topics[topic] {
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// Close закрывает шину и каналы всех подписчиков
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	topics := f.topics
	f.topics = make(map[string]map[*Subscription]struct{})
	f.mu.Unlock()

	for _, subs := range topics {
		for sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs, ok := f.topics[sub.topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(f.topics, sub.topic)
	}
}
