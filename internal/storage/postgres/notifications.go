package postgres

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/storage"
)

func (s *Store) InsertNotification(ctx context.Context, n *models.Notification) error {
	var data []byte
	if n.Data != nil {
		var err error
		data, err = json.Marshal(n.Data)
		if err != nil {
			return err
		}
	}
	_, err := s.pool.Exec(ctx, `
        INSERT INTO notifications (id, user_id, type, title, body, data, read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, n.ID, n.UserID, n.Type, n.Title, n.Body, data, n.Read, n.CreatedAt)
	return err
}

func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, user_id, type, title, body, data, read, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var data []byte
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Title,
			&n.Body,
			&data,
			&n.Read,
			&n.CreatedAt,
		); err != nil {
			log.Printf("Ошибка сканирования уведомления: %v", err)
			continue
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				log.Printf("Ошибка разбора данных уведомления %s: %v", n.ID, err)
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *Store) UnreadNotificationCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false
    `, userID).Scan(&count)
	return count, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2
    `, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
        UPDATE notifications SET read = true WHERE user_id = $1 AND read = false
    `, userID)
	return err
}

func (s *Store) DeleteNotification(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
        DELETE FROM notifications WHERE id = $1 AND user_id = $2
    `, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
