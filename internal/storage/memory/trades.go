package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/storage"
)

// --- ProposalStore ---

func (s *Store) InsertProposal(ctx context.Context, p *models.TradeProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.proposals[p.ID] = &cp
	return nil
}

func (s *Store) GetProposal(ctx context.Context, id uuid.UUID) (*models.TradeProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) HasPendingProposal(ctx context.Context, itemID, proposerID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.proposals {
		if p.ItemID == itemID && p.ProposerID == proposerID && p.Status == models.ProposalStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateProposalStatus(ctx context.Context, id uuid.UUID, expect, to string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if p.Status != expect {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = at
	return true, nil
}

func (s *Store) ListProposalsForUser(ctx context.Context, userID uuid.UUID) ([]models.TradeProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TradeProposal
	for _, p := range s.proposals {
		received := false
		if item, ok := s.items[p.ItemID]; ok && item.UserID == userID {
			received = true
		}
		if p.ProposerID != userID && !received {
			continue
		}
		cp := *p
		if item, ok := s.items[p.ItemID]; ok {
			ic := *item
			cp.Item = &ic
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AcceptProposal(ctx context.Context, proposalID, receiverID uuid.UUID, now time.Time) (*storage.AcceptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[proposalID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	// Проверка статуса в момент записи: проигравший конкурентный писатель
	// получает ErrStaleStatus и перечитывает состояние.
	if p.Status != models.ProposalStatusPending {
		return nil, storage.ErrStaleStatus
	}
	p.Status = models.ProposalStatusAccepted
	p.UpdatedAt = now

	res := &storage.AcceptResult{}

	// Снимаем конкурирующие pending-предложения по тому же объявлению
	for _, other := range s.proposals {
		if other.ID == p.ID || other.ItemID != p.ItemID || other.Status != models.ProposalStatusPending {
			continue
		}
		other.Status = models.ProposalStatusCancelled
		other.UpdatedAt = now
		res.CancelledProposals = append(res.CancelledProposals, *other)
	}

	// Идемпотентный поиск существующего обмена по четверке идентификаторов
	var trade *models.Trade
	for _, t := range s.trades {
		if t.RequestedItemID != p.ItemID || t.ProposerID != p.ProposerID || t.ReceiverID != receiverID {
			continue
		}
		if !sameOptionalID(t.OfferedItemID, p.ProposedItemID) {
			continue
		}
		trade = t
		break
	}
	if trade == nil {
		trade = &models.Trade{
			ID:              uuid.New(),
			ProposerID:      p.ProposerID,
			ReceiverID:      receiverID,
			OfferedItemID:   copyOptionalID(p.ProposedItemID),
			RequestedItemID: p.ItemID,
			Status:          models.TradeStatusAccepted,
			TradeNotes:      p.Message,
			ExchangeMode:    p.ExchangeMode,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		s.trades[trade.ID] = trade
		res.TradeCreated = true
	}

	if item, ok := s.items[p.ItemID]; ok {
		item.Status = models.ItemStatusBartered
		item.UpdatedAt = now
	}

	cp := *trade
	res.Trade = &cp
	return res, nil
}

func sameOptionalID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyOptionalID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}

// --- TradeStore ---

func (s *Store) InsertTrade(ctx context.Context, t *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.trades[t.ID] = &cp
	return nil
}

func (s *Store) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trades[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) UpdateTradeStatus(ctx context.Context, id uuid.UUID, to string, at time.Time, expect ...string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	allowed := false
	for _, from := range expect {
		if t.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = at
	return true, nil
}

func (s *Store) SetTradeConfirmed(ctx context.Context, id uuid.UUID, proposerSide bool, at time.Time) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if proposerSide {
		if !t.ProposerConfirmed {
			t.ProposerConfirmed = true
			t.UpdatedAt = at
		}
	} else {
		if !t.ReceiverConfirmed {
			t.ReceiverConfirmed = true
			t.UpdatedAt = at
		}
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ListTradesForUser(ctx context.Context, userID uuid.UUID, status string) ([]models.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Trade
	for _, t := range s.trades {
		if t.ProposerID != userID && t.ReceiverID != userID {
			continue
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- TradeDetailsStore ---

func (s *Store) UpsertTradeDetails(ctx context.Context, d *models.TradeDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	if existing, ok := s.details[d.TradeID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	s.details[d.TradeID] = &cp
	return nil
}

func (s *Store) GetTradeDetails(ctx context.Context, tradeID uuid.UUID) (*models.TradeDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.details[tradeID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// --- ReviewStore ---

func (s *Store) UpsertReview(ctx context.Context, r *models.TradeReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reviews {
		if existing.TradeID == r.TradeID && existing.ReviewerID == r.ReviewerID &&
			existing.ReviewedUserID == r.ReviewedUserID {
			existing.Rating = r.Rating
			existing.Comment = r.Comment
			r.ID = existing.ID
			return nil
		}
	}
	cp := *r
	s.reviews[r.ID] = &cp
	return nil
}

func (s *Store) ListReviewsByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.TradeReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TradeReview
	for _, r := range s.reviews {
		if r.TradeID == tradeID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListReviewsByUser(ctx context.Context, userID uuid.UUID) ([]models.TradeReview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TradeReview
	for _, r := range s.reviews {
		if r.ReviewerID == userID || r.ReviewedUserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- DisputeStore ---

func (s *Store) InsertDispute(ctx context.Context, d *models.TradeDispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.disputes[d.ID] = &cp
	return nil
}

func (s *Store) ListDisputesByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.TradeDispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TradeDispute
	for _, d := range s.disputes {
		if d.TradeID == tradeID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListDisputesByUser(ctx context.Context, userID uuid.UUID) ([]models.TradeDispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TradeDispute
	for _, d := range s.disputes {
		if d.ReportedBy == userID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
