package proposal

import (
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/db"
	"github.com/rajivgeraev/barterhaven-api/internal/middleware"
	"github.com/rajivgeraev/barterhaven-api/internal/utils"
)

// Handler — HTTP-слой сервиса предложений
type Handler struct {
	svc        *Service
	jwtService *utils.JWTService
}

// NewHandler создает HTTP-обработчики сервиса предложений
func NewHandler(svc *Service, jwtService *utils.JWTService) *Handler {
	return &Handler{svc: svc, jwtService: jwtService}
}

// SetupRoutes настраивает маршруты для API предложений обмена
func (h *Handler) SetupRoutes(app *fiber.App) {
	// Группа для API предложений
	api := app.Group("/api/proposals")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(h.jwtService))

	// Маршрут для создания предложения обмена
	api.Post("/", h.CreateProposal)

	// Маршрут для получения предложений пользователя
	api.Get("/", h.GetMyProposals)

	// Маршрут для действия над предложением
	api.Put("/:id/status", h.ResolveProposal)
}

// CreateProposal создает новое предложение обмена
func (h *Handler) CreateProposal(c fiber.Ctx) error {
	proposerID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	var requestData struct {
		ItemID                  string `json:"item_id"`
		ProposedItemID          string `json:"proposed_item_id,omitempty"`
		ProposedItemDescription string `json:"proposed_item_description,omitempty"`
		Message                 string `json:"message,omitempty"`
		ExchangeMode            string `json:"exchange_mode,omitempty"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	itemID, err := uuid.Parse(requestData.ItemID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID объявления"})
	}

	in := ProposeInput{
		ItemID:                  itemID,
		ProposedItemDescription: requestData.ProposedItemDescription,
		Message:                 requestData.Message,
		ExchangeMode:            requestData.ExchangeMode,
	}
	if requestData.ProposedItemID != "" {
		parsed, err := uuid.Parse(requestData.ProposedItemID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предлагаемого объявления"})
		}
		in.ProposedItemID = &parsed
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p, err := h.svc.Propose(ctx, proposerID, in)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"proposal": p,
		"success":  true,
	})
}

// GetMyProposals возвращает предложения пользователя
func (h *Handler) GetMyProposals(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	proposals, err := h.svc.ListForUser(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"proposals": proposals,
		"count":     len(proposals),
	})
}

// ResolveProposal применяет действие к предложению
func (h *Handler) ResolveProposal(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	proposalID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID предложения"})
	}

	var requestData struct {
		Action string `json:"action"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p, trade, err := h.svc.Resolve(ctx, userID, proposalID, requestData.Action)
	if err != nil {
		return err
	}

	response := fiber.Map{
		"proposal": p,
		"success":  true,
	}
	if trade != nil {
		response["trade"] = trade
	}

	return c.JSON(response)
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
