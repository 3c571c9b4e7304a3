package auth

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/db"
	"github.com/rajivgeraev/barterhaven-api/internal/middleware"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(app *fiber.App) {
	app.Post("/api/auth/telegram", s.TelegramAuthHandler)

	// Защищенные маршруты
	protected := app.Group("/api")
	protected.Use(middleware.AuthMiddleware(s.jwtService))

	// Эндпоинт профиля
	protected.Get("/profile", func(c fiber.Ctx) error {
		raw, _ := c.Locals("userID").(string)
		userID, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Пользователь не авторизован"})
		}

		ctx, cancel := db.GetContext()
		defer cancel()

		user, err := s.users.GetUser(ctx, userID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Пользователь не найден"})
		}

		return c.JSON(fiber.Map{"user": user})
	})
}
