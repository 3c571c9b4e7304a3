package main

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/apperrors"
	"github.com/rajivgeraev/barterhaven-api/internal/config"
	"github.com/rajivgeraev/barterhaven-api/internal/db"
	"github.com/rajivgeraev/barterhaven-api/internal/feed"
	"github.com/rajivgeraev/barterhaven-api/internal/notifier"
	"github.com/rajivgeraev/barterhaven-api/internal/services/auth"
	"github.com/rajivgeraev/barterhaven-api/internal/services/badge"
	"github.com/rajivgeraev/barterhaven-api/internal/services/chat"
	"github.com/rajivgeraev/barterhaven-api/internal/services/item"
	"github.com/rajivgeraev/barterhaven-api/internal/services/media"
	"github.com/rajivgeraev/barterhaven-api/internal/services/proposal"
	"github.com/rajivgeraev/barterhaven-api/internal/services/trade"
	"github.com/rajivgeraev/barterhaven-api/internal/storage/postgres"
	"github.com/rajivgeraev/barterhaven-api/internal/utils"
	"github.com/rajivgeraev/barterhaven-api/internal/websocket"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	// Инициализируем базу данных
	pool, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	jwtService := utils.NewJWTService(cfg.JWTSecret)

	// Шина событий реального времени
	eventFeed := feed.NewFeed()
	defer eventFeed.Close()

	// Диспетчер уведомлений и агрегатор бейджей
	dispatcher := notifier.NewService(store, eventFeed)
	badgeService := badge.NewService(store, store, eventFeed)
	dispatcher.OnNotify(func(ctx context.Context, userID uuid.UUID) {
		badgeService.Refresh(ctx, userID)
	})

	// Сервисы
	chatService := chat.NewService(store, store, store, eventFeed, dispatcher)
	chatService.OnUnreadChange(func(ctx context.Context, userID uuid.UUID) {
		badgeService.Refresh(ctx, userID)
	})
	proposalService := proposal.NewService(store, store, eventFeed, dispatcher)
	tradeService := trade.NewService(store, store, store, store, store, store, eventFeed, dispatcher)
	itemService := item.NewService(store)

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "BarterHaven API",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	// Регистрируем маршруты
	auth.NewAuthService(cfg, store).SetupRoutes(app)
	media.NewMediaService(cfg).SetupRoutes(app)
	chat.NewHandler(chatService, jwtService).SetupRoutes(app)
	proposal.NewHandler(proposalService, jwtService).SetupRoutes(app)
	trade.NewHandler(tradeService, jwtService).SetupRoutes(app)
	badge.NewHandler(badgeService, jwtService).SetupRoutes(app)
	item.NewHandler(itemService, jwtService).SetupRoutes(app)

	// WebSocket-шлюз реального времени
	wsManager := websocket.NewManager(eventFeed, jwtService)
	defer wsManager.Shutdown()
	app.Get("/ws", adaptor.HTTPHandlerFunc(wsManager.ServeWS))

	// Запускаем сервер
	log.Println("✅ BarterHaven API запущен на порту 8080")
	log.Fatal(app.Listen(":8080"))
}

// errorHandler обрабатывает ошибки Fiber и доменные ошибки сервисов
func errorHandler(c fiber.Ctx, err error) error {
	// Ошибки из Fiber приходят со своим статусом
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	code := fiber.StatusInternalServerError
	message := err.Error()

	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		code = fiber.StatusBadRequest
	case apperrors.KindPermission:
		code = fiber.StatusForbidden
	case apperrors.KindNotFound:
		code = fiber.StatusNotFound
	case apperrors.KindConflict:
		code = fiber.StatusConflict
	case apperrors.KindDependency:
		code = fiber.StatusBadGateway
	default:
		// Внутренние детали не раскрываем
		log.Printf("Внутренняя ошибка: %v", err)
		message = "Внутренняя ошибка сервера"
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
