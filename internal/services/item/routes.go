package item

import (
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/db"
	"github.com/rajivgeraev/barterhaven-api/internal/middleware"
	"github.com/rajivgeraev/barterhaven-api/internal/utils"
)

// Handler — HTTP-слой каталога объявлений
type Handler struct {
	svc        *Service
	jwtService *utils.JWTService
}

// NewHandler создает HTTP-обработчики каталога
func NewHandler(svc *Service, jwtService *utils.JWTService) *Handler {
	return &Handler{svc: svc, jwtService: jwtService}
}

// SetupRoutes настраивает маршруты для API объявлений
func (h *Handler) SetupRoutes(app *fiber.App) {
	// Группа для API объявлений
	api := app.Group("/api/items")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(h.jwtService))

	// Маршрут для создания объявления
	api.Post("/", h.CreateItem)

	// Маршрут для своих объявлений
	api.Get("/my", h.GetMyItems)

	// Маршрут для объявления по ID
	api.Get("/:id", h.GetItem)

	// Маршрут для публикации черновика
	api.Put("/:id/publish", h.PublishItem)
}

// CreateItem создает новое объявление
func (h *Handler) CreateItem(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	var requestData struct {
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
		ImageURL    string `json:"image_url,omitempty"`
		Draft       bool   `json:"draft,omitempty"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	item, err := h.svc.Create(ctx, userID, CreateInput{
		Title:       requestData.Title,
		Description: requestData.Description,
		ImageURL:    requestData.ImageURL,
		Draft:       requestData.Draft,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"item":    item,
		"success": true,
	})
}

// GetMyItems возвращает объявления пользователя
func (h *Handler) GetMyItems(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	items, err := h.svc.ListMine(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"items": items,
		"count": len(items),
	})
}

// GetItem возвращает объявление по ID
func (h *Handler) GetItem(c fiber.Ctx) error {
	if _, ok := callerID(c); !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID объявления"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	item, err := h.svc.Get(ctx, itemID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"item": item})
}

// PublishItem публикует черновик объявления
func (h *Handler) PublishItem(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID объявления"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	item, err := h.svc.Publish(ctx, userID, itemID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"item":    item,
		"success": true,
	})
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
