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

func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO messages (id, sender_id, receiver_id, trade_id, content, type, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, msg.ID, msg.SenderID, msg.ReceiverID, msg.TradeID, msg.Content, msg.Type, msg.Status, msg.CreatedAt)
	return err
}

func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := s.pool.QueryRow(ctx, `
        SELECT id, sender_id, receiver_id, trade_id, content, type, status, created_at, read_at, deleted_at
        FROM messages
        WHERE id = $1
    `, id).Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.TradeID,
		&msg.Content,
		&msg.Type,
		&msg.Status,
		&msg.CreatedAt,
		&msg.ReadAt,
		&msg.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (s *Store) ListBetween(ctx context.Context, userID, otherUserID uuid.UUID, limit int, before *time.Time) ([]models.Message, error) {
	// Берем последние limit сообщений окна и разворачиваем по возрастанию
	query := `
        SELECT id, sender_id, receiver_id, trade_id, content, type, status, created_at, read_at, deleted_at
        FROM (
            SELECT m.id, m.sender_id, m.receiver_id, m.trade_id, m.content, m.type, m.status,
                   m.created_at, m.read_at, m.deleted_at
            FROM messages m
            WHERE ((m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1))
              AND m.deleted_at IS NULL
              AND ($3::timestamptz IS NULL OR m.created_at < $3)
            ORDER BY m.created_at DESC
            LIMIT $4
        ) page
        ORDER BY created_at ASC
    `

	rows, err := s.pool.Query(ctx, query, userID, otherUserID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.TradeID,
			&msg.Content,
			&msg.Type,
			&msg.Status,
			&msg.CreatedAt,
			&msg.ReadAt,
			&msg.DeletedAt,
		); err != nil {
			log.Printf("Ошибка сканирования сообщения: %v", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *Store) ListByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, sender_id, receiver_id, trade_id, content, type, status, created_at, read_at, deleted_at
        FROM messages
        WHERE trade_id = $1 AND deleted_at IS NULL
        ORDER BY created_at ASC
    `, tradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.TradeID,
			&msg.Content,
			&msg.Type,
			&msg.Status,
			&msg.CreatedAt,
			&msg.ReadAt,
			&msg.DeletedAt,
		); err != nil {
			log.Printf("Ошибка сканирования сообщения: %v", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *Store) MarkMessagesRead(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
        UPDATE messages
        SET read_at = $1
        WHERE id = ANY($2) AND read_at IS NULL
    `, at, ids)
	return err
}

func (s *Store) SoftDeleteMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE messages
        SET deleted_at = $1
        WHERE id = $2 AND deleted_at IS NULL
    `, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Либо сообщения нет, либо оно уже удалено — второй случай идемпотентен
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return storage.ErrNotFound
		}
	}
	return nil
}

func (s *Store) UnreadMessageCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
        SELECT COUNT(*)
        FROM messages
        WHERE receiver_id = $1 AND read_at IS NULL AND deleted_at IS NULL
    `, userID).Scan(&count)
	return count, err
}

func (s *Store) Partners(ctx context.Context, userID uuid.UUID) ([]models.ConversationPartner, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT u.id, u.username, u.first_name, u.last_name, u.avatar_url,
               MAX(m.created_at) AS last_message_at,
               COUNT(m.id) FILTER (WHERE m.receiver_id = $1 AND m.read_at IS NULL) AS unread_count
        FROM messages m
        JOIN users u ON u.id = CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END
        WHERE (m.sender_id = $1 OR m.receiver_id = $1) AND m.deleted_at IS NULL
        GROUP BY u.id, u.username, u.first_name, u.last_name, u.avatar_url
        ORDER BY last_message_at DESC NULLS LAST
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partners []models.ConversationPartner
	for rows.Next() {
		var p models.ConversationPartner
		if err := rows.Scan(
			&p.User.ID,
			&p.User.Username,
			&p.User.FirstName,
			&p.User.LastName,
			&p.User.AvatarURL,
			&p.LastMessageAt,
			&p.UnreadCount,
		); err != nil {
			log.Printf("Ошибка сканирования собеседника: %v", err)
			continue
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}
