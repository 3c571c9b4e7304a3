package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы и статусы сообщений
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"

	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
)

// Message представляет сообщение между двумя пользователями.
// После отправки изменяются только read_at и deleted_at.
type Message struct {
	ID         uuid.UUID  `json:"id"`
	SenderID   uuid.UUID  `json:"sender_id"`
	ReceiverID uuid.UUID  `json:"receiver_id"`
	TradeID    *uuid.UUID `json:"trade_id,omitempty"`
	Content    string     `json:"content"`
	Type       string     `json:"type"`   // text, image
	Status     string     `json:"status"` // sent, delivered
	CreatedAt  time.Time  `json:"created_at"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`

	// Дополнительные поля для API
	Sender *User `json:"sender,omitempty"`
}

// Deleted сообщает, скрыто ли сообщение мягким удалением.
func (m *Message) Deleted() bool {
	return m.DeletedAt != nil
}

// ConversationPartner представляет собеседника в списке чатов
type ConversationPartner struct {
	User          User       `json:"user"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int        `json:"unread_count"`
}
