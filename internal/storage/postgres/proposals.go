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

func (s *Store) InsertProposal(ctx context.Context, p *models.TradeProposal) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO trade_proposals (id, item_id, proposer_id, proposed_item_id, proposed_item_description,
                                     message, exchange_mode, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, p.ID, p.ItemID, p.ProposerID, p.ProposedItemID, p.ProposedItemDescription,
		p.Message, p.ExchangeMode, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *Store) GetProposal(ctx context.Context, id uuid.UUID) (*models.TradeProposal, error) {
	var p models.TradeProposal
	err := s.pool.QueryRow(ctx, `
        SELECT id, item_id, proposer_id, proposed_item_id, proposed_item_description,
               message, exchange_mode, status, created_at, updated_at
        FROM trade_proposals
        WHERE id = $1
    `, id).Scan(
		&p.ID,
		&p.ItemID,
		&p.ProposerID,
		&p.ProposedItemID,
		&p.ProposedItemDescription,
		&p.Message,
		&p.ExchangeMode,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) HasPendingProposal(ctx context.Context, itemID, proposerID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
        SELECT EXISTS(
            SELECT 1 FROM trade_proposals
            WHERE item_id = $1 AND proposer_id = $2 AND status = 'pending'
        )
    `, itemID, proposerID).Scan(&exists)
	return exists, err
}

func (s *Store) UpdateProposalStatus(ctx context.Context, id uuid.UUID, expect, to string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE trade_proposals
        SET status = $1, updated_at = $2
        WHERE id = $3 AND status = $4
    `, to, at, id, expect)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM trade_proposals WHERE id = $1)`, id).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, storage.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) ListProposalsForUser(ctx context.Context, userID uuid.UUID) ([]models.TradeProposal, error) {
	// Пользователь видит предложения, которые отправил, и предложения по своим объявлениям
	rows, err := s.pool.Query(ctx, `
        SELECT p.id, p.item_id, p.proposer_id, p.proposed_item_id, p.proposed_item_description,
               p.message, p.exchange_mode, p.status, p.created_at, p.updated_at,
               i.id, i.user_id, i.title, i.status
        FROM trade_proposals p
        JOIN items i ON i.id = p.item_id
        WHERE p.proposer_id = $1 OR i.user_id = $1
        ORDER BY p.created_at DESC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proposals []models.TradeProposal
	for rows.Next() {
		var p models.TradeProposal
		var item models.Item
		if err := rows.Scan(
			&p.ID,
			&p.ItemID,
			&p.ProposerID,
			&p.ProposedItemID,
			&p.ProposedItemDescription,
			&p.Message,
			&p.ExchangeMode,
			&p.Status,
			&p.CreatedAt,
			&p.UpdatedAt,
			&item.ID,
			&item.UserID,
			&item.Title,
			&item.Status,
		); err != nil {
			log.Printf("Ошибка сканирования предложения: %v", err)
			continue
		}
		p.Item = &item
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

func (s *Store) AcceptProposal(ctx context.Context, proposalID, receiverID uuid.UUID, now time.Time) (*storage.AcceptResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var p models.TradeProposal
	err = tx.QueryRow(ctx, `
        SELECT id, item_id, proposer_id, proposed_item_id, message, exchange_mode, status
        FROM trade_proposals
        WHERE id = $1
        FOR UPDATE
    `, proposalID).Scan(
		&p.ID,
		&p.ItemID,
		&p.ProposerID,
		&p.ProposedItemID,
		&p.Message,
		&p.ExchangeMode,
		&p.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if p.Status != models.ProposalStatusPending {
		return nil, storage.ErrStaleStatus
	}

	if _, err := tx.Exec(ctx, `
        UPDATE trade_proposals SET status = 'accepted', updated_at = $1 WHERE id = $2
    `, now, proposalID); err != nil {
		return nil, err
	}

	res := &storage.AcceptResult{}

	// Снимаем конкурирующие pending-предложения по тому же объявлению
	rows, err := tx.Query(ctx, `
        UPDATE trade_proposals
        SET status = 'cancelled', updated_at = $1
        WHERE item_id = $2 AND id != $3 AND status = 'pending'
        RETURNING id, item_id, proposer_id, proposed_item_id, proposed_item_description,
                  message, exchange_mode, status, created_at, updated_at
    `, now, p.ItemID, proposalID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c models.TradeProposal
		if err := rows.Scan(
			&c.ID,
			&c.ItemID,
			&c.ProposerID,
			&c.ProposedItemID,
			&c.ProposedItemDescription,
			&c.Message,
			&c.ExchangeMode,
			&c.Status,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, err
		}
		res.CancelledProposals = append(res.CancelledProposals, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Идемпотентный поиск существующего обмена по четверке идентификаторов
	var trade models.Trade
	err = tx.QueryRow(ctx, `
        SELECT id, proposer_id, receiver_id, offered_item_id, requested_item_id, status,
               proposer_confirmed, receiver_confirmed, trade_notes, exchange_mode, created_at, updated_at
        FROM trades
        WHERE requested_item_id = $1 AND proposer_id = $2 AND receiver_id = $3
          AND offered_item_id IS NOT DISTINCT FROM $4
    `, p.ItemID, p.ProposerID, receiverID, p.ProposedItemID).Scan(
		&trade.ID,
		&trade.ProposerID,
		&trade.ReceiverID,
		&trade.OfferedItemID,
		&trade.RequestedItemID,
		&trade.Status,
		&trade.ProposerConfirmed,
		&trade.ReceiverConfirmed,
		&trade.TradeNotes,
		&trade.ExchangeMode,
		&trade.CreatedAt,
		&trade.UpdatedAt,
	)
	switch {
	case err == nil:
		// Обмен уже существует, новый не создаем
	case errors.Is(err, pgx.ErrNoRows):
		trade = models.Trade{
			ID:              uuid.New(),
			ProposerID:      p.ProposerID,
			ReceiverID:      receiverID,
			OfferedItemID:   p.ProposedItemID,
			RequestedItemID: p.ItemID,
			Status:          models.TradeStatusAccepted,
			TradeNotes:      p.Message,
			ExchangeMode:    p.ExchangeMode,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO trades (id, proposer_id, receiver_id, offered_item_id, requested_item_id, status,
                                proposer_confirmed, receiver_confirmed, trade_notes, exchange_mode, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        `, trade.ID, trade.ProposerID, trade.ReceiverID, trade.OfferedItemID, trade.RequestedItemID,
			trade.Status, false, false, trade.TradeNotes, trade.ExchangeMode, trade.CreatedAt, trade.UpdatedAt); err != nil {
			return nil, err
		}
		res.TradeCreated = true
	default:
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
        UPDATE items SET status = 'bartered', updated_at = $1 WHERE id = $2
    `, now, p.ItemID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	res.Trade = &trade
	return res, nil
}
