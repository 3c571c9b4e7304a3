package postgres

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/storage"
)

func (s *Store) InsertItem(ctx context.Context, item *models.Item) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO items (id, user_id, title, description, image_url, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, item.ID, item.UserID, item.Title, item.Description, item.ImageURL, item.Status, item.CreatedAt, item.UpdatedAt)
	return err
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := s.pool.QueryRow(ctx, `
        SELECT id, user_id, title, description, image_url, status, created_at, updated_at
        FROM items
        WHERE id = $1
    `, id).Scan(
		&item.ID,
		&item.UserID,
		&item.Title,
		&item.Description,
		&item.ImageURL,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) SetItemStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE items SET status = $1, updated_at = $2 WHERE id = $3
    `, status, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListItemsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, user_id, title, description, image_url, status, created_at, updated_at
        FROM items
        WHERE user_id = $1
        ORDER BY created_at DESC
    `, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.Title,
			&item.Description,
			&item.ImageURL,
			&item.Status,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			log.Printf("Ошибка сканирования объявления: %v", err)
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
