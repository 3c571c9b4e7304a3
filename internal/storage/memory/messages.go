package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/storage"
)

func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (s *Store) ListBetween(ctx context.Context, userID, otherUserID uuid.UUID, limit int, before *time.Time) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Message
	for _, msg := range s.messages {
		if msg.DeletedAt != nil {
			continue
		}
		pair := (msg.SenderID == userID && msg.ReceiverID == otherUserID) ||
			(msg.SenderID == otherUserID && msg.ReceiverID == userID)
		if !pair {
			continue
		}
		if before != nil && !msg.CreatedAt.Before(*before) {
			continue
		}
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	// Страница — последние limit сообщений окна, по возрастанию
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Store) ListByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Message
	for _, msg := range s.messages {
		if msg.DeletedAt != nil || msg.TradeID == nil || *msg.TradeID != tradeID {
			continue
		}
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkMessagesRead(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		msg, ok := s.messages[id]
		if !ok || msg.ReadAt != nil {
			continue
		}
		t := at
		msg.ReadAt = &t
	}
	return nil
}

func (s *Store) SoftDeleteMessage(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return storage.ErrNotFound
	}
	if msg.DeletedAt == nil {
		t := at
		msg.DeletedAt = &t
	}
	return nil
}

func (s *Store) UnreadMessageCount(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, msg := range s.messages {
		if msg.ReceiverID == userID && msg.ReadAt == nil && msg.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (s *Store) Partners(ctx context.Context, userID uuid.UUID) ([]models.ConversationPartner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type agg struct {
		last   time.Time
		unread int
	}
	byUser := make(map[uuid.UUID]*agg)
	for _, msg := range s.messages {
		if msg.DeletedAt != nil {
			continue
		}
		var other uuid.UUID
		switch userID {
		case msg.SenderID:
			other = msg.ReceiverID
		case msg.ReceiverID:
			other = msg.SenderID
		default:
			continue
		}
		a := byUser[other]
		if a == nil {
			a = &agg{}
			byUser[other] = a
		}
		if msg.CreatedAt.After(a.last) {
			a.last = msg.CreatedAt
		}
		if msg.ReceiverID == userID && msg.ReadAt == nil {
			a.unread++
		}
	}

	out := make([]models.ConversationPartner, 0, len(byUser))
	for id, a := range byUser {
		p := models.ConversationPartner{UnreadCount: a.unread}
		last := a.last
		p.LastMessageAt = &last
		if user, ok := s.users[id]; ok {
			p.User = *user
		} else {
			p.User = models.User{ID: id}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(*out[j].LastMessageAt)
	})
	return out, nil
}
