// Package memory — потокобезопасная реализация хранилищ в памяти.
// Используется тестами и локальной разработкой; контракт тот же, что у postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/models"
	"github.com/rajivgeraev/barterhaven-api/internal/storage"
)

// Store реализует все интерфейсы storage поверх map под общим мьютексом.
// Общий мьютекс заодно делает AcceptProposal атомарным.
type Store struct {
	mu            sync.RWMutex
	messages      map[uuid.UUID]*models.Message
	proposals     map[uuid.UUID]*models.TradeProposal
	trades        map[uuid.UUID]*models.Trade
	details       map[uuid.UUID]*models.TradeDetails
	reviews       map[uuid.UUID]*models.TradeReview
	disputes      map[uuid.UUID]*models.TradeDispute
	items         map[uuid.UUID]*models.Item
	users         map[uuid.UUID]*models.User
	notifications map[uuid.UUID]*models.Notification
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		messages:      make(map[uuid.UUID]*models.Message),
		proposals:     make(map[uuid.UUID]*models.TradeProposal),
		trades:        make(map[uuid.UUID]*models.Trade),
		details:       make(map[uuid.UUID]*models.TradeDetails),
		reviews:       make(map[uuid.UUID]*models.TradeReview),
		disputes:      make(map[uuid.UUID]*models.TradeDispute),
		items:         make(map[uuid.UUID]*models.Item),
		users:         make(map[uuid.UUID]*models.User),
		notifications: make(map[uuid.UUID]*models.Notification),
	}
}

// --- ItemStore ---

func (s *Store) InsertItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *Store) SetItemStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return storage.ErrNotFound
	}
	item.Status = status
	item.UpdatedAt = at
	return nil
}

func (s *Store) ListItemsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Item
	for _, item := range s.items {
		if item.UserID == ownerID {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- UserStore ---

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *Store) UpsertTelegramUser(ctx context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.TelegramID != 0 && existing.TelegramID == user.TelegramID {
			existing.Username = user.Username
			existing.FirstName = user.FirstName
			existing.LastName = user.LastName
			existing.AvatarURL = user.AvatarURL
			cp := *existing
			return &cp, nil
		}
	}
	cp := *user
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

// AddUser добавляет пользователя напрямую (для тестов)
func (s *Store) AddUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := user
	s.users[user.ID] = &cp
}

