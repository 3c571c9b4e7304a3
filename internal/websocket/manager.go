// Package websocket — шлюз реального времени: пробрасывает события feed
// в WebSocket-соединения клиентов.
package websocket

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rajivgeraev/barterhaven-api/internal/feed"
	"github.com/rajivgeraev/barterhaven-api/internal/utils"
)

// Manager представляет центральный менеджер для всех WebSocket соединений
type Manager struct {
	feed       *feed.Feed
	jwtService *utils.JWTService
	upgrader   websocket.Upgrader

	clientsMutex sync.RWMutex
	clients      map[uuid.UUID]*Client
}

// NewManager создает новый экземпляр Manager
func NewManager(f *feed.Feed, jwtService *utils.JWTService) *Manager {
	return &Manager{
		feed:       f,
		jwtService: jwtService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Запросы приходят из Telegram Mini App, origin не фильтруем
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[uuid.UUID]*Client),
	}
}

// ServeWS апгрейдит HTTP-запрос до WebSocket. Токен передается
// в query-параметре, заголовки недоступны браузерному WebSocket API.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	rawUserID, err := m.jwtService.ExtractUserID(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusUnauthorized)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Ошибка апгрейда WebSocket: %v", err)
		return
	}

	client := NewClient(userID, conn, m)
	client.Start()
}

// AddClient регистрирует нового клиента
func (m *Manager) AddClient(client *Client) {
	m.clientsMutex.Lock()
	m.clients[client.ID] = client
	m.clientsMutex.Unlock()

	log.Printf("WebSocket client %s connected for user %s", client.ID, client.UserID)
}

// RemoveClient удаляет клиента
func (m *Manager) RemoveClient(clientID uuid.UUID) {
	m.clientsMutex.Lock()
	client, exists := m.clients[clientID]
	delete(m.clients, clientID)
	m.clientsMutex.Unlock()

	if !exists {
		return
	}

	client.dropSubscriptions()
	log.Printf("WebSocket client %s disconnected for user %s", clientID, client.UserID)
}

// Shutdown корректно завершает работу менеджера WebSocket
func (m *Manager) Shutdown() {
	m.clientsMutex.Lock()
	clients := m.clients
	m.clients = make(map[uuid.UUID]*Client)
	m.clientsMutex.Unlock()

	for _, client := range clients {
		client.dropSubscriptions()
		client.conn.Close()
	}
}
