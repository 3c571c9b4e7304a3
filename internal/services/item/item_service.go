// Package item — минимальный каталог объявлений, достаточный для
// предложений обмена: создание, просмотр и список своих объявлений.
package item

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/apperrors"
	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/storage"
)

// Service реализует операции над объявлениями
type Service struct {
	items storage.ItemStore
}

// NewService создает сервис объявлений
func NewService(items storage.ItemStore) *Service {
	return &Service{items: items}
}

// CreateInput — параметры нового объявления
type CreateInput struct {
	Title       string
	Description string
	ImageURL    string
	Draft       bool
}

// Create создает объявление
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in CreateInput) (*models.Item, error) {
	if in.Title == "" {
		return nil, apperrors.Validation("название обязательно")
	}

	status := models.ItemStatusAvailable
	if in.Draft {
		status = models.ItemStatusDraft
	}

	now := time.Now()
	item := &models.Item{
		ID:          uuid.New(),
		UserID:      ownerID,
		Title:       in.Title,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.items.InsertItem(ctx, item); err != nil {
		return nil, apperrors.Internal(err, "ошибка сохранения объявления")
	}
	return item, nil
}

// Get возвращает объявление по ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := s.items.GetItem(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, apperrors.NotFound("объявление не найдено")
		}
		return nil, apperrors.Internal(err, "ошибка получения объявления")
	}
	return item, nil
}

// ListMine возвращает объявления владельца, новые первыми
func (s *Service) ListMine(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error) {
	items, err := s.items.ListItemsByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Internal(err, "ошибка получения объявлений")
	}
	return items, nil
}

// Publish переводит черновик в доступные для обмена
func (s *Service) Publish(ctx context.Context, ownerID, itemID uuid.UUID) (*models.Item, error) {
	item, err := s.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != ownerID {
		return nil, apperrors.Permission("публиковать можно только свои объявления")
	}
	if item.Status == models.ItemStatusAvailable {
		return item, nil
	}
	if item.Status != models.ItemStatusDraft {
		return nil, apperrors.Conflict("объявление в статусе %q нельзя опубликовать", item.Status)
	}

	now := time.Now()
	if err := s.items.SetItemStatus(ctx, itemID, models.ItemStatusAvailable, now); err != nil {
		return nil, apperrors.Internal(err, "ошибка публикации объявления")
	}
	item.Status = models.ItemStatusAvailable
	item.UpdatedAt = now
	return item, nil
}
