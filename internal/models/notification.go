package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы уведомлений
const (
	NotificationTypeTradeProposal = "trade_proposal"
	NotificationTypeTradeUpdate   = "trade_update"
	NotificationTypeNewMessage    = "new_message"
	NotificationTypeTradeReview   = "trade_review"
	NotificationTypeTradeDispute  = "trade_dispute"
)

// Notification представляет уведомление пользователя
type Notification struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// BadgeCounts — количество непрочитанного, всегда пересчитывается из исходных
// таблиц, а не ведется как счетчик.
type BadgeCounts struct {
	Messages      int `json:"messages"`
	Notifications int `json:"notifications"`
	Total         int `json:"total"`
}
