package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы предложений обмена
const (
	ProposalStatusPending   = "pending"
	ProposalStatusAccepted  = "accepted"
	ProposalStatusRejected  = "rejected"
	ProposalStatusCancelled = "cancelled"
)

// Статусы обменов
const (
	TradeStatusPending   = "pending"
	TradeStatusAccepted  = "accepted"
	TradeStatusRejected  = "rejected"
	TradeStatusCancelled = "cancelled"
	TradeStatusCompleted = "completed"
	TradeStatusDisputed  = "disputed"
)

// Способы обмена
const (
	ExchangeModeMeetup   = "meetup"
	ExchangeModeShipping = "shipping"
	ExchangeModeOnline   = "online"
)

// TradeProposal представляет предложение обмена по конкретному объявлению.
// На пару (item_id, proposer_id) допускается не более одного pending-предложения.
type TradeProposal struct {
	ID                      uuid.UUID  `json:"id"`
	ItemID                  uuid.UUID  `json:"item_id"`
	ProposerID              uuid.UUID  `json:"proposer_id"`
	ProposedItemID          *uuid.UUID `json:"proposed_item_id,omitempty"`
	ProposedItemDescription string     `json:"proposed_item_description"`
	Message                 string     `json:"message,omitempty"`
	ExchangeMode            string     `json:"exchange_mode,omitempty"`
	Status                  string     `json:"status"` // pending, accepted, rejected, cancelled
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`

	// Дополнительные поля для API
	Item *Item `json:"item,omitempty"`
}

// Terminal сообщает, находится ли предложение в конечном статусе.
func (p *TradeProposal) Terminal() bool {
	return p.Status != ProposalStatusPending
}

// Trade представляет взаимно согласованный обмен, созданный при принятии предложения.
// Пара offered_item_id/requested_item_id после создания неизменяема.
type Trade struct {
	ID                uuid.UUID  `json:"id"`
	ProposerID        uuid.UUID  `json:"proposer_id"`
	ReceiverID        uuid.UUID  `json:"receiver_id"`
	OfferedItemID     *uuid.UUID `json:"offered_item_id,omitempty"`
	RequestedItemID   uuid.UUID  `json:"requested_item_id"`
	Status            string     `json:"status"`
	ProposerConfirmed bool       `json:"proposer_confirmed"`
	ReceiverConfirmed bool       `json:"receiver_confirmed"`
	TradeNotes        string     `json:"trade_notes,omitempty"`
	ExchangeMode      string     `json:"exchange_mode,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Дополнительные поля для API
	OfferedItem   *Item          `json:"offered_item,omitempty"`
	RequestedItem *Item          `json:"requested_item,omitempty"`
	Proposer      *User          `json:"proposer,omitempty"`
	Receiver      *User          `json:"receiver,omitempty"`
	Details       *TradeDetails  `json:"trade_details,omitempty"`
	Reviews       []TradeReview  `json:"trade_reviews,omitempty"`
	Disputes      []TradeDispute `json:"trade_disputes,omitempty"`
}

// Participant сообщает, является ли пользователь стороной обмена.
func (t *Trade) Participant(userID uuid.UUID) bool {
	return t.ProposerID == userID || t.ReceiverID == userID
}

// OtherParty возвращает вторую сторону обмена.
func (t *Trade) OtherParty(userID uuid.UUID) uuid.UUID {
	if t.ProposerID == userID {
		return t.ReceiverID
	}
	return t.ProposerID
}

// TradeDetails содержит данные о доставке, не более одной записи на обмен.
// Поля местоположения независимо опциональны.
type TradeDetails struct {
	TradeID         uuid.UUID  `json:"trade_id"`
	DeliveryMethod  string     `json:"delivery_method"`
	MeetupLocation  *string    `json:"meetup_location,omitempty"`
	MeetupDateTime  *time.Time `json:"meetup_date_time,omitempty"`
	ShippingAddress *string    `json:"shipping_address,omitempty"`
	TrackingNumber  *string    `json:"tracking_number,omitempty"`
	ContactInfo     *string    `json:"contact_info,omitempty"`
	Notes           *string    `json:"delivery_notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TradeReview представляет отзыв по завершенному обмену.
// Не более одного отзыва на (trade_id, reviewer_id, reviewed_user_id) — upsert.
type TradeReview struct {
	ID             uuid.UUID `json:"id"`
	TradeID        uuid.UUID `json:"trade_id"`
	ReviewerID     uuid.UUID `json:"reviewer_id"`
	ReviewedUserID uuid.UUID `json:"reviewed_user_id"`
	Rating         int       `json:"rating"` // 1..5
	Comment        string    `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Статусы споров
const (
	DisputeStatusOpen     = "open"
	DisputeStatusResolved = "resolved"
)

// Допустимые причины споров; неизвестные причины приводятся к DisputeReasonOther
const (
	DisputeReasonNotAsDescribed  = "item_not_as_described"
	DisputeReasonDamaged         = "item_damaged"
	DisputeReasonNoCommunication = "no_communication"
	DisputeReasonNoShow          = "no_show"
	DisputeReasonShipping        = "shipping_issues"
	DisputeReasonFraud           = "fraud"
	DisputeReasonOther           = "other"
)

// NormalizeDisputeReason приводит причину спора к допустимому значению.
func NormalizeDisputeReason(reason string) string {
	switch reason {
	case DisputeReasonNotAsDescribed, DisputeReasonDamaged, DisputeReasonNoCommunication,
		DisputeReasonNoShow, DisputeReasonShipping, DisputeReasonFraud, DisputeReasonOther:
		return reason
	default:
		return DisputeReasonOther
	}
}

// TradeDispute представляет спор по обмену. Сам по себе статус обмена не меняет.
type TradeDispute struct {
	ID           uuid.UUID `json:"id"`
	TradeID      uuid.UUID `json:"trade_id"`
	ReportedBy   uuid.UUID `json:"reported_by"`
	Reason       string    `json:"reason"`
	Description  string    `json:"description"`
	EvidenceURLs []string  `json:"evidence_urls,omitempty"`
	Status       string    `json:"status"` // open, resolved
	Resolution   *string   `json:"resolution,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TradeStats — сводная статистика обменов пользователя
type TradeStats struct {
	Total                 int           `json:"total"`
	Completed             int           `json:"completed"`
	Pending               int           `json:"pending"`
	Disputed              int           `json:"disputed"`
	AverageCompletionTime time.Duration `json:"average_completion_ms"`
}

// TradeCompletionSummary — сводка по завершению обмена
type TradeCompletionSummary struct {
	Trade    Trade          `json:"trade"`
	Details  *TradeDetails  `json:"trade_details,omitempty"`
	Reviews  []TradeReview  `json:"trade_reviews"`
	Disputes []TradeDispute `json:"trade_disputes"`
}
