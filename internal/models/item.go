package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы объявлений
const (
	ItemStatusAvailable = "available"
	ItemStatusBartered  = "bartered"
	ItemStatusDraft     = "draft"
)

// Item представляет объявление в каталоге. Ядро обменов читает владельца и
// переключает статус, саму схему объявления оно не определяет.
type Item struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Status      string    `json:"status"` // available, bartered, draft
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
