// Package media — подписанные параметры загрузки изображений в Cloudinary.
// Используется клиентом для фото объявлений и доказательств по спорам.
package media

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barterhaven-api/internal/config"
	"github.com/rajivgeraev/barterhaven-api/internal/middleware"
	"github.com/rajivgeraev/barterhaven-api/internal/utils"
)

// Папки загрузки по назначению
const (
	FolderItems    = "items"
	FolderEvidence = "evidence"
)

// MediaService предоставляет методы для работы с Cloudinary
type MediaService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewMediaService создает новый экземпляр MediaService
func NewMediaService(cfg *config.Config) *MediaService {
	return &MediaService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
}

// SetupRoutes настраивает маршруты для API загрузки
func (s *MediaService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Защищенные маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(s.jwtService))

	// Маршрут для получения параметров загрузки
	protected.Get("/upload/params", s.GenerateUploadParams)
}

// GenerateSignature создаёт корректную подпись для Cloudinary
func (s *MediaService) GenerateSignature(params map[string]string) string {
	// Сортируем ключи параметров
	var keys []string
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Формируем строку для подписи
	var signParts []string
	for _, k := range keys {
		signParts = append(signParts, fmt.Sprintf("%s=%s", k, params[k]))
	}
	signatureString := strings.Join(signParts, "&")

	// Добавляем API-секрет в конец строки
	signatureString += s.cfg.CloudinaryConfig.APISecret

	// Создаем SHA-1 хеш
	h := sha1.New()
	h.Write([]byte(signatureString))

	// Возвращаем подпись в виде шестнадцатеричной строки
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateUploadParams создаёт параметры для загрузки изображений
func (s *MediaService) GenerateUploadParams(c fiber.Ctx) error {
	// Папка определяет назначение загрузки
	folder := c.Query("folder", FolderItems)
	if folder != FolderItems && folder != FolderEvidence {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неизвестная папка загрузки"})
	}

	// Генерируем ID группы загрузки, если не передан
	uploadGroupID := c.Query("upload_group_id")
	if uploadGroupID == "" {
		uploadGroupID = uuid.New().String()
	}

	// Текущий timestamp
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	// Параметры для подписи
	params := map[string]string{
		"timestamp":     timestamp,
		"folder":        folder,
		"upload_preset": s.cfg.CloudinaryConfig.UploadPreset,
	}

	// Генерируем подпись
	signature := s.GenerateSignature(params)

	// Возвращаем параметры
	return c.JSON(fiber.Map{
		"timestamp":       timestamp,
		"signature":       signature,
		"api_key":         s.cfg.CloudinaryConfig.APIKey,
		"cloud_name":      s.cfg.CloudinaryConfig.CloudName,
		"folder":          folder,
		"upload_preset":   s.cfg.CloudinaryConfig.UploadPreset,
		"upload_group_id": uploadGroupID,
	})
}
