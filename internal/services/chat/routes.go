package chat

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/db"
	"github.com/rajivgeraev/barterhaven-api/internal/middleware"
	"github.com/rajivgeraev/barterhaven-api/internal/utils"
)

// Handler — HTTP-слой сервиса сообщений
type Handler struct {
	svc        *Service
	jwtService *utils.JWTService
}

// NewHandler создает HTTP-обработчики сервиса сообщений
func NewHandler(svc *Service, jwtService *utils.JWTService) *Handler {
	return &Handler{svc: svc, jwtService: jwtService}
}

// SetupRoutes настраивает маршруты для API сообщений
func (h *Handler) SetupRoutes(app *fiber.App) {
	// Группа для API сообщений
	api := app.Group("/api/messages")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(h.jwtService))

	// Маршрут для получения списка собеседников
	api.Get("/partners", h.GetPartners)

	// Маршрут для числа непрочитанных сообщений
	api.Get("/unread", h.GetUnreadCount)

	// Маршрут для переписки, привязанной к обмену
	api.Get("/trade/:id", h.GetTradeMessages)

	// Маршрут для получения переписки с собеседником
	api.Get("/:userId", h.GetConversation)

	// Маршрут для отправки сообщения
	api.Post("/", h.SendMessage)

	// Маршрут для удаления сообщения
	api.Delete("/:id", h.DeleteMessage)
}

// SendMessage отправляет новое сообщение
func (h *Handler) SendMessage(c fiber.Ctx) error {
	senderID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	var requestData struct {
		ReceiverID string `json:"receiver_id"`
		TradeID    string `json:"trade_id,omitempty"`
		Content    string `json:"content"`
		Type       string `json:"type,omitempty"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	receiverID, err := uuid.Parse(requestData.ReceiverID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID получателя"})
	}

	var tradeID *uuid.UUID
	if requestData.TradeID != "" {
		parsed, err := uuid.Parse(requestData.TradeID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID обмена"})
		}
		tradeID = &parsed
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	msg, err := h.svc.Send(ctx, senderID, receiverID, tradeID, requestData.Content, requestData.Type)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": msg,
		"success": true,
	})
}

// GetConversation возвращает переписку с собеседником
func (h *Handler) GetConversation(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	otherUserID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID собеседника"})
	}

	limit := fiber.Query(c, "limit", DefaultPageSize)
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	// Пагинация назад: before — время создания самого старого сообщения страницы
	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат параметра before"})
		}
		before = &parsed
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	messages, err := h.svc.Fetch(ctx, userID, otherUserID, limit, before)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"has_more": len(messages) == limit,
	})
}

// GetTradeMessages возвращает переписку, привязанную к обмену
func (h *Handler) GetTradeMessages(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID обмена"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	messages, err := h.svc.MessagesByTrade(ctx, userID, tradeID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}

// GetPartners возвращает список собеседников
func (h *Handler) GetPartners(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	partners, err := h.svc.Partners(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"partners": partners,
		"count":    len(partners),
	})
}

// GetUnreadCount возвращает число непрочитанных сообщений
func (h *Handler) GetUnreadCount(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	count, err := h.svc.UnreadCount(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"unread_count": count})
}

// DeleteMessage скрывает сообщение мягким удалением
func (h *Handler) DeleteMessage(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	messageID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID сообщения"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := h.svc.SoftDelete(ctx, userID, messageID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

// callerID извлекает UUID авторизованного пользователя из контекста запроса
func callerID(c fiber.Ctx) (uuid.UUID, bool) {
	raw, _ := c.Locals("userID").(string)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
