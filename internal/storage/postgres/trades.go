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

const tradeColumns = `id, proposer_id, receiver_id, offered_item_id, requested_item_id, status,
               proposer_confirmed, receiver_confirmed, trade_notes, exchange_mode, created_at, updated_at`

func scanTrade(row pgx.Row) (*models.Trade, error) {
	var t models.Trade
	err := row.Scan(
		&t.ID,
		&t.ProposerID,
		&t.ReceiverID,
		&t.OfferedItemID,
		&t.RequestedItemID,
		&t.Status,
		&t.ProposerConfirmed,
		&t.ReceiverConfirmed,
		&t.TradeNotes,
		&t.ExchangeMode,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) InsertTrade(ctx context.Context, t *models.Trade) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO trades (id, proposer_id, receiver_id, offered_item_id, requested_item_id, status,
                            proposer_confirmed, receiver_confirmed, trade_notes, exchange_mode, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, t.ID, t.ProposerID, t.ReceiverID, t.OfferedItemID, t.RequestedItemID, t.Status,
		t.ProposerConfirmed, t.ReceiverConfirmed, t.TradeNotes, t.ExchangeMode, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Store) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	t, err := scanTrade(s.pool.QueryRow(ctx, `
        SELECT `+tradeColumns+`
        FROM trades
        WHERE id = $1
    `, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *Store) UpdateTradeStatus(ctx context.Context, id uuid.UUID, to string, at time.Time, expect ...string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        UPDATE trades
        SET status = $1, updated_at = $2
        WHERE id = $3 AND status = ANY($4)
    `, to, at, id, expect)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM trades WHERE id = $1)`, id).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, storage.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) SetTradeConfirmed(ctx context.Context, id uuid.UUID, proposerSide bool, at time.Time) (*models.Trade, error) {
	column := "receiver_confirmed"
	if proposerSide {
		column = "proposer_confirmed"
	}
	t, err := scanTrade(s.pool.QueryRow(ctx, `
        UPDATE trades
        SET `+column+` = true, updated_at = CASE WHEN `+column+` THEN updated_at ELSE $1 END
        WHERE id = $2
        RETURNING `+tradeColumns+`
    `, at, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTradesForUser(ctx context.Context, userID uuid.UUID, status string) ([]models.Trade, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT `+tradeColumns+`
        FROM trades
        WHERE (proposer_id = $1 OR receiver_id = $1)
          AND ($2 = '' OR status = $2)
        ORDER BY created_at DESC
    `, userID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			log.Printf("Ошибка сканирования обмена: %v", err)
			continue
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}

// --- TradeDetailsStore ---

func (s *Store) UpsertTradeDetails(ctx context.Context, d *models.TradeDetails) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO trade_details (trade_id, delivery_method, meetup_location, meetup_date_time,
                                   shipping_address, tracking_number, contact_info, delivery_notes,
                                   created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (trade_id) DO UPDATE SET
            delivery_method = EXCLUDED.delivery_method,
            meetup_location = EXCLUDED.meetup_location,
            meetup_date_time = EXCLUDED.meetup_date_time,
            shipping_address = EXCLUDED.shipping_address,
            tracking_number = EXCLUDED.tracking_number,
            contact_info = EXCLUDED.contact_info,
            delivery_notes = EXCLUDED.delivery_notes,
            updated_at = EXCLUDED.updated_at
    `, d.TradeID, d.DeliveryMethod, d.MeetupLocation, d.MeetupDateTime,
		d.ShippingAddress, d.TrackingNumber, d.ContactInfo, d.Notes,
		d.CreatedAt, d.UpdatedAt)
	return err
}

func (s *Store) GetTradeDetails(ctx context.Context, tradeID uuid.UUID) (*models.TradeDetails, error) {
	var d models.TradeDetails
	err := s.pool.QueryRow(ctx, `
        SELECT trade_id, delivery_method, meetup_location, meetup_date_time,
               shipping_address, tracking_number, contact_info, delivery_notes,
               created_at, updated_at
        FROM trade_details
        WHERE trade_id = $1
    `, tradeID).Scan(
		&d.TradeID,
		&d.DeliveryMethod,
		&d.MeetupLocation,
		&d.MeetupDateTime,
		&d.ShippingAddress,
		&d.TrackingNumber,
		&d.ContactInfo,
		&d.Notes,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// --- ReviewStore ---

func (s *Store) UpsertReview(ctx context.Context, r *models.TradeReview) error {
	// Повторный отзыв той же пары обновляет оценку и комментарий
	return s.pool.QueryRow(ctx, `
        INSERT INTO trade_reviews (id, trade_id, reviewer_id, reviewed_user_id, rating, comment, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (trade_id, reviewer_id, reviewed_user_id) DO UPDATE SET
            rating = EXCLUDED.rating,
            comment = EXCLUDED.comment
        RETURNING id
    `, r.ID, r.TradeID, r.ReviewerID, r.ReviewedUserID, r.Rating, r.Comment, r.CreatedAt).Scan(&r.ID)
}

func (s *Store) ListReviewsByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.TradeReview, error) {
	return s.listReviews(ctx, `
        SELECT id, trade_id, reviewer_id, reviewed_user_id, rating, comment, created_at
        FROM trade_reviews
        WHERE trade_id = $1
        ORDER BY created_at DESC
    `, tradeID)
}

func (s *Store) ListReviewsByUser(ctx context.Context, userID uuid.UUID) ([]models.TradeReview, error) {
	return s.listReviews(ctx, `
        SELECT id, trade_id, reviewer_id, reviewed_user_id, rating, comment, created_at
        FROM trade_reviews
        WHERE reviewer_id = $1 OR reviewed_user_id = $1
        ORDER BY created_at DESC
    `, userID)
}

func (s *Store) listReviews(ctx context.Context, query string, args ...any) ([]models.TradeReview, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []models.TradeReview
	for rows.Next() {
		var r models.TradeReview
		if err := rows.Scan(
			&r.ID,
			&r.TradeID,
			&r.ReviewerID,
			&r.ReviewedUserID,
			&r.Rating,
			&r.Comment,
			&r.CreatedAt,
		); err != nil {
			log.Printf("Ошибка сканирования отзыва: %v", err)
			continue
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// --- DisputeStore ---

func (s *Store) InsertDispute(ctx context.Context, d *models.TradeDispute) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO trade_disputes (id, trade_id, reported_by, reason, description, evidence_urls, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, d.ID, d.TradeID, d.ReportedBy, d.Reason, d.Description, d.EvidenceURLs, d.Status, d.CreatedAt)
	return err
}

func (s *Store) ListDisputesByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.TradeDispute, error) {
	return s.listDisputes(ctx, `
        SELECT id, trade_id, reported_by, reason, description, evidence_urls, status, resolution, created_at
        FROM trade_disputes
        WHERE trade_id = $1
        ORDER BY created_at DESC
    `, tradeID)
}

func (s *Store) ListDisputesByUser(ctx context.Context, userID uuid.UUID) ([]models.TradeDispute, error) {
	return s.listDisputes(ctx, `
        SELECT id, trade_id, reported_by, reason, description, evidence_urls, status, resolution, created_at
        FROM trade_disputes
        WHERE reported_by = $1
        ORDER BY created_at DESC
    `, userID)
}

func (s *Store) listDisputes(ctx context.Context, query string, args ...any) ([]models.TradeDispute, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var disputes []models.TradeDispute
	for rows.Next() {
		var d models.TradeDispute
		if err := rows.Scan(
			&d.ID,
			&d.TradeID,
			&d.ReportedBy,
			&d.Reason,
			&d.Description,
			&d.EvidenceURLs,
			&d.Status,
			&d.Resolution,
			&d.CreatedAt,
		); err != nil {
			log.Printf("Ошибка сканирования спора: %v", err)
			continue
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}
