package badge

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/db"
	"github.com/rajivgeraev/barterhaven-api/internal/middleware"
	"github.com/rajivgeraev/barterhaven-api/internal/utils"
)

// Handler — HTTP-слой агрегатора бейджей
type Handler struct {
	svc        *Service
	jwtService *utils.JWTService
}

// NewHandler создает HTTP-обработчики агрегатора бейджей
func NewHandler(svc *Service, jwtService *utils.JWTService) *Handler {
	return &Handler{svc: svc, jwtService: jwtService}
}

// SetupRoutes настраивает маршруты для API бейджей и уведомлений
func (h *Handler) SetupRoutes(app *fiber.App) {
	// Группа для API уведомлений
	api := app.Group("/api/notifications")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(h.jwtService))

	// Маршрут для счетчиков непрочитанного
	api.Get("/badge", h.GetBadgeCounts)

	// Маршруты ленты уведомлений
	api.Get("/", h.GetNotifications)
	api.Put("/read-all", h.MarkAllRead)
	api.Put("/:id/read", h.MarkRead)
	api.Delete("/:id", h.DeleteNotification)
}

// GetBadgeCounts возвращает счетчики непрочитанного
func (h *Handler) GetBadgeCounts(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	counts, err := h.svc.Counts(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"badge": counts})
}

// GetNotifications возвращает страницу ленты уведомлений
func (h *Handler) GetNotifications(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	limit := fiber.Query(c, "limit", DefaultPageSize)
	offset := fiber.Query(c, "offset", 0)

	ctx, cancel := db.GetContext()
	defer cancel()

	notifications, err := h.svc.Notifications(ctx, userID, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// MarkRead отмечает уведомление прочитанным
func (h *Handler) MarkRead(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	notificationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID уведомления"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := h.svc.MarkRead(ctx, userID, notificationID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

// MarkAllRead отмечает все уведомления прочитанными
func (h *Handler) MarkAllRead(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := h.svc.MarkAllRead(ctx, userID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

// DeleteNotification удаляет уведомление из ленты
func (h *Handler) DeleteNotification(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	notificationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID уведомления"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := h.svc.Delete(ctx, userID, notificationID); err != nil {
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
