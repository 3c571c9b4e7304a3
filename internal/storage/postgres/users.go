package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/storage"
)

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, `
        SELECT id, telegram_id, username, first_name, last_name, avatar_url, created_at
        FROM users
        WHERE id = $1
    `, id).Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) UpsertTelegramUser(ctx context.Context, user *models.User) (*models.User, error) {
	var out models.User
	err := s.pool.QueryRow(ctx, `
        INSERT INTO users (id, telegram_id, username, first_name, last_name, avatar_url, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (telegram_id) DO UPDATE SET
            username = EXCLUDED.username,
            first_name = EXCLUDED.first_name,
            last_name = EXCLUDED.last_name,
            avatar_url = EXCLUDED.avatar_url
        RETURNING id, telegram_id, username, first_name, last_name, avatar_url, created_at
    `, user.ID, user.TelegramID, user.Username, user.FirstName, user.LastName, user.AvatarURL, user.CreatedAt).Scan(
		&out.ID,
		&out.TelegramID,
		&out.Username,
		&out.FirstName,
		&out.LastName,
		&out.AvatarURL,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
