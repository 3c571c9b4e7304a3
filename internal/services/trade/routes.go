package trade

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/db"
	"github.com/rajivgeraev/barterhaven-api/internal/middleware"
	"github.com/rajivgeraev/barterhaven-api/internal/utils"
)

// Handler — HTTP-слой сервиса обменов
type Handler struct {
	svc        *Service
	jwtService *utils.JWTService
}

// NewHandler создает HTTP-обработчики сервиса обменов
func NewHandler(svc *Service, jwtService *utils.JWTService) *Handler {
	return &Handler{svc: svc, jwtService: jwtService}
}

// SetupRoutes настраивает маршруты для API обменов
func (h *Handler) SetupRoutes(app *fiber.App) {
	// Группа для API обменов
	api := app.Group("/api/trades")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(h.jwtService))

	// Маршрут для получения списка обменов пользователя
	api.Get("/", h.GetMyTrades)

	// Маршрут для статистики обменов
	api.Get("/stats", h.GetStats)

	// Маршруты отзывов и споров пользователя
	api.Get("/reviews", h.GetMyReviews)
	api.Get("/disputes", h.GetMyDisputes)

	// Маршруты конкретного обмена
	api.Get("/:id", h.GetTrade)
	api.Put("/:id/status", h.UpdateTradeStatus)
	api.Post("/:id/confirm", h.ConfirmCompletion)
	api.Get("/:id/summary", h.GetCompletionSummary)

	// Данные о доставке
	api.Put("/:id/details", h.SaveDeliveryDetails)

	// Отзывы и споры по обмену
	api.Get("/:id/reviews", h.GetTradeReviews)
	api.Post("/:id/reviews", h.SubmitReview)
	api.Get("/:id/disputes", h.GetTradeDisputes)
	api.Post("/:id/disputes", h.ReportDispute)
}

// GetMyTrades возвращает обмены пользователя
func (h *Handler) GetMyTrades(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	trades, err := h.svc.History(ctx, userID, c.Query("status"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"trades": trades,
		"count":  len(trades),
	})
}

// GetStats возвращает статистику обменов пользователя
func (h *Handler) GetStats(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	stats, err := h.svc.Stats(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"stats": stats})
}

// GetTrade возвращает обмен по ID
func (h *Handler) GetTrade(c fiber.Ctx) error {
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

	trade, err := h.svc.Get(ctx, userID, tradeID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"trade": trade})
}

// UpdateTradeStatus применяет переход статуса обмена
func (h *Handler) UpdateTradeStatus(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID обмена"})
	}

	var requestData struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	trade, err := h.svc.UpdateStatus(ctx, userID, tradeID, requestData.Status, requestData.Reason)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"trade":   trade,
		"success": true,
	})
}

// ConfirmCompletion фиксирует подтверждение завершения стороной
func (h *Handler) ConfirmCompletion(c fiber.Ctx) error {
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

	trade, err := h.svc.ConfirmCompletion(ctx, userID, tradeID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"trade":     trade,
		"completed": trade.ProposerConfirmed && trade.ReceiverConfirmed,
		"success":   true,
	})
}

// SaveDeliveryDetails сохраняет данные о доставке
func (h *Handler) SaveDeliveryDetails(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID обмена"})
	}

	var requestData struct {
		DeliveryMethod  string     `json:"delivery_method"`
		MeetupLocation  *string    `json:"meetup_location,omitempty"`
		MeetupDateTime  *time.Time `json:"meetup_date_time,omitempty"`
		ShippingAddress *string    `json:"shipping_address,omitempty"`
		TrackingNumber  *string    `json:"tracking_number,omitempty"`
		ContactInfo     *string    `json:"contact_info,omitempty"`
		Notes           *string    `json:"delivery_notes,omitempty"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	details, err := h.svc.SaveDeliveryDetails(ctx, userID, tradeID, DeliveryDetailsInput{
		DeliveryMethod:  requestData.DeliveryMethod,
		MeetupLocation:  requestData.MeetupLocation,
		MeetupDateTime:  requestData.MeetupDateTime,
		ShippingAddress: requestData.ShippingAddress,
		TrackingNumber:  requestData.TrackingNumber,
		ContactInfo:     requestData.ContactInfo,
		Notes:           requestData.Notes,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"trade_details": details,
		"success":       true,
	})
}

// SubmitReview сохраняет отзыв по завершенному обмену
func (h *Handler) SubmitReview(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID обмена"})
	}

	var requestData struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment,omitempty"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	review, err := h.svc.SubmitReview(ctx, userID, tradeID, ReviewInput{
		Rating:  requestData.Rating,
		Comment: requestData.Comment,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"review":  review,
		"success": true,
	})
}

// ReportDispute регистрирует спор по обмену
func (h *Handler) ReportDispute(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат ID обмена"})
	}

	var requestData struct {
		Reason       string   `json:"reason"`
		Description  string   `json:"description"`
		EvidenceURLs []string `json:"evidence_urls,omitempty"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	dispute, err := h.svc.ReportDispute(ctx, userID, tradeID, DisputeInput{
		Reason:       requestData.Reason,
		Description:  requestData.Description,
		EvidenceURLs: requestData.EvidenceURLs,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"dispute": dispute,
		"success": true,
	})
}

// GetTradeReviews возвращает отзывы по обмену
func (h *Handler) GetTradeReviews(c fiber.Ctx) error {
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

	reviews, err := h.svc.Reviews(ctx, userID, tradeID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"reviews": reviews, "count": len(reviews)})
}

// GetTradeDisputes возвращает споры по обмену
func (h *Handler) GetTradeDisputes(c fiber.Ctx) error {
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

	disputes, err := h.svc.Disputes(ctx, userID, tradeID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"disputes": disputes, "count": len(disputes)})
}

// GetMyReviews возвращает отзывы пользователя
func (h *Handler) GetMyReviews(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	reviews, err := h.svc.UserReviews(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"reviews": reviews, "count": len(reviews)})
}

// GetMyDisputes возвращает споры пользователя
func (h *Handler) GetMyDisputes(c fiber.Ctx) error {
	userID, ok := callerID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	disputes, err := h.svc.UserDisputes(ctx, userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"disputes": disputes, "count": len(disputes)})
}

// GetCompletionSummary возвращает сводку по завершению обмена
func (h *Handler) GetCompletionSummary(c fiber.Ctx) error {
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

	summary, err := h.svc.CompletionSummary(ctx, userID, tradeID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"summary": summary})
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
