package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradewatch-api/internal/dto"
	"github.com/noah-isme/gradewatch-api/internal/service"
	"github.com/noah-isme/gradewatch-api/internal/utils"
)

// UserHandler manages registration and account maintenance endpoints.
type UserHandler struct {
	users     service.UserService
	jwtSecret string
	tokenTTL  time.Duration
	logger    zerolog.Logger
}

// NewUserHandler constructs a handler instance.
func NewUserHandler(users service.UserService, jwtSecret string, tokenTTL time.Duration, logger zerolog.Logger) *UserHandler {
	if tokenTTL <= 0 {
		tokenTTL = 30 * 24 * time.Hour
	}
	return &UserHandler{
		users:     users,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger.With().Str("component", "user_handler").Logger(),
	}
}

// RegisterPublic binds the unauthenticated routes.
func (h *UserHandler) RegisterPublic(router fiber.Router) {
	router.Post("/register", h.register)
}

// Register binds the authenticated account routes.
func (h *UserHandler) Register(router fiber.Router) {
	router.Get("/me", h.me)
	router.Put("/me/password", h.updatePassword)
	router.Put("/me/portal-id", h.updatePortalID)
	router.Put("/me/academic-status", h.updateAcademicStatus)
}

type registerResponse struct {
	User  dto.UserResponse `json:"user"`
	Token string           `json:"token"`
}

func (h *UserHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.users.Register(c.UserContext(), payload)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			return utils.SendError(c, fiber.StatusConflict, "chat id already registered")
		}
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	token, err := h.issueToken(user.ChatID, "user")
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to sign token")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to issue token")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "registered", registerResponse{
		User:  user,
		Token: token,
	})
}

func (h *UserHandler) me(c *fiber.Ctx) error {
	chatID, ok := chatIDFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	user, err := h.users.Get(c.UserContext(), chatID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "profile", user)
}

func (h *UserHandler) updatePassword(c *fiber.Ctx) error {
	chatID, ok := chatIDFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.UpdatePasswordRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.users.UpdatePassword(c.UserContext(), chatID, payload); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	return utils.SendSuccess(c, "password updated", nil)
}

type updatePortalIDRequest struct {
	PortalID string `json:"portal_id"`
}

func (h *UserHandler) updatePortalID(c *fiber.Ctx) error {
	chatID, ok := chatIDFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload updatePortalIDRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.users.UpdatePortalID(c.UserContext(), chatID, payload.PortalID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	return utils.SendSuccess(c, "portal id updated", nil)
}

func (h *UserHandler) updateAcademicStatus(c *fiber.Ctx) error {
	chatID, ok := chatIDFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.UpdateAcademicStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.users.UpdateAcademicStatus(c.UserContext(), chatID, payload); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	return utils.SendSuccess(c, "academic status updated", nil)
}

func (h *UserHandler) issueToken(chatID int64, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub":     strconv.FormatInt(chatID, 10),
		"chat_id": chatID,
		"role":    role,
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(h.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.jwtSecret))
}
