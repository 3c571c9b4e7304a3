package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rajivgeraev/barterhaven-api/internal/feed"
)

const (
	// Максимальное время ожидания для pong от клиента
	pongWait = 60 * time.Second

	// Отправлять ping-сообщения клиенту с этим интервалом
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения от клиента
	maxMessageSize = 512 * 1024 // 512KB

	// Размер буфера для отправляемых сообщений
	writeBufferSize = 256

	// Сколько последних ID событий помнить для дедупликации
	dedupeWindow = 256
)

// Client представляет собой отдельное WebSocket соединение.
// Клиент всегда подписан на свой персональный топик; подписки на
// переписки он открывает и закрывает control-сообщениями.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID

	conn      *websocket.Conn
	send      chan []byte // Буферизованный канал исходящих сообщений
	manager   *Manager
	closeChan chan struct{}
	closeOnce sync.Once

	subsMutex sync.Mutex
	subs      map[string]*feed.Subscription

	// Шина доставляет at-least-once, повторы отбрасываем по ID события
	seenMutex sync.Mutex
	seen      map[uuid.UUID]struct{}
	seenOrder []uuid.UUID
}

// NewClient создает новый экземпляр Client
func NewClient(userID uuid.UUID, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:        uuid.New(),
		UserID:    userID,
		conn:      conn,
		send:      make(chan []byte, writeBufferSize),
		manager:   manager,
		closeChan: make(chan struct{}),
		subs:      make(map[string]*feed.Subscription),
		seen:      make(map[uuid.UUID]struct{}),
	}
}

// Start запускает клиентские горутины для чтения и записи
func (c *Client) Start() {
	// Добавляем клиент к менеджеру
	c.manager.AddClient(c)

	// Персональный топик подключен всегда
	c.subscribe(feed.UserTopic(c.UserID))

	// Запускаем горутины для чтения и записи
	go c.readPump()
	go c.writePump()
}

// subscribe открывает подписку на топик и запускает пересылку событий
func (c *Client) subscribe(topic string) {
	c.subsMutex.Lock()
	if _, exists := c.subs[topic]; exists {
		c.subsMutex.Unlock()
		return
	}
	sub := c.manager.feed.Subscribe(topic, writeBufferSize)
	c.subs[topic] = sub
	c.subsMutex.Unlock()

	go c.forward(sub)
}

// unsubscribe закрывает подписку на топик
func (c *Client) unsubscribe(topic string) {
	c.subsMutex.Lock()
	sub, exists := c.subs[topic]
	delete(c.subs, topic)
	c.subsMutex.Unlock()

	if exists {
		sub.Unsubscribe()
	}
}

// dropSubscriptions снимает все подписки клиента
func (c *Client) dropSubscriptions() {
	c.subsMutex.Lock()
	subs := c.subs
	c.subs = make(map[string]*feed.Subscription)
	c.subsMutex.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// forward пересылает события подписки в канал отправки
func (c *Client) forward(sub *feed.Subscription) {
	for event := range sub.Events() {
		if c.alreadySeen(event.ID) {
			continue
		}

		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Error marshaling event: %v", err)
			continue
		}

		select {
		case c.send <- data:
			// Сообщение успешно добавлено в очередь отправки
		default:
			// Канал заполнен, клиент слишком медленный - закрываем соединение
			log.Printf("Send channel full for client %s, closing connection", c.ID)
			c.conn.Close()
			return
		}
	}
}

// alreadySeen отмечает ID события и сообщает, было ли оно уже доставлено
func (c *Client) alreadySeen(id uuid.UUID) bool {
	c.seenMutex.Lock()
	defer c.seenMutex.Unlock()

	if _, ok := c.seen[id]; ok {
		return true
	}
	c.seen[id] = struct{}{}
	c.seenOrder = append(c.seenOrder, id)
	if len(c.seenOrder) > dedupeWindow {
		oldest := c.seenOrder[0]
		c.seenOrder = c.seenOrder[1:]
		delete(c.seen, oldest)
	}
	return false
}

// readPump обрабатывает входящие сообщения от клиента
func (c *Client) readPump() {
	defer func() {
		c.manager.RemoveClient(c.ID)
		c.conn.Close()
		c.closeOnce.Do(func() { close(c.closeChan) })
	}()

	// Настраиваем соединение
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Бесконечный цикл чтения сообщений
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Unexpected close error: %v", err)
			}
			break
		}

		// Обрабатываем входящее сообщение
		c.handleIncomingMessage(message)
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Канал закрыт, отправляем сообщение о закрытии соединения
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Отправляем сообщение
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Error writing message: %v", err)
				return
			}
		case <-ticker.C:
			// Отправляем ping для поддержания соединения
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeChan:
			// Соединение закрыто
			return
		}
	}
}

// controlMessage — входящее control-сообщение клиента
type controlMessage struct {
	Type   string `json:"type"`
	PeerID string `json:"peer_id,omitempty"`
}

// handleIncomingMessage обрабатывает входящие сообщения от клиента
func (c *Client) handleIncomingMessage(message []byte) {
	var msg controlMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("Error unmarshaling control message: %v", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		peerID, err := uuid.Parse(msg.PeerID)
		if err != nil {
			log.Printf("Invalid peer_id in subscribe: %s", msg.PeerID)
			return
		}
		c.subscribe(feed.ConversationTopic(c.UserID, peerID))
	case "unsubscribe":
		peerID, err := uuid.Parse(msg.PeerID)
		if err != nil {
			return
		}
		c.unsubscribe(feed.ConversationTopic(c.UserID, peerID))
	case "ping":
		// Клиентский ping уровня приложения, отвечать не требуется
	default:
		log.Printf("Unhandled control message type: %s", msg.Type)
	}
}
