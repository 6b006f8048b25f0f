package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradewatch-api/internal/service"
	"github.com/noah-isme/gradewatch-api/internal/utils"
)

// SyncHandler exposes the sweep trigger and the on-demand refresh endpoint.
type SyncHandler struct {
	sync   service.SyncService
	logger zerolog.Logger
}

// NewSyncHandler constructs a handler instance.
func NewSyncHandler(sync service.SyncService, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		sync:   sync,
		logger: logger.With().Str("component", "sync_handler").Logger(),
	}
}

// Register binds the authenticated sync routes.
func (h *SyncHandler) Register(router fiber.Router) {
	router.Post("/refresh", h.refresh)
}

// RegisterAdmin binds the admin-only sweep trigger.
func (h *SyncHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/sweep", h.runSweep)
}

// refresh queues an on-demand sync for the caller. Results come back through
// notifications, so the response is an acknowledgement only.
func (h *SyncHandler) refresh(c *fiber.Ctx) error {
	chatID, ok := chatIDFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	yearScope := c.Query("year")

	if err := h.sync.RequestUserSync(c.UserContext(), chatID, yearScope); err != nil {
		if errors.Is(err, service.ErrSyncCooldown) {
			return utils.SendError(c, fiber.StatusTooManyRequests, "sync already requested recently, please wait")
		}
		if errors.Is(err, service.ErrUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendAccepted(c, "sync queued, you will be notified")
}

// runSweep fires one sweep in the background regardless of the cron schedule.
func (h *SyncHandler) runSweep(c *fiber.Ctx) error {
	go func() {
		ctx := context.Background()
		if err := h.sync.RunSweep(ctx); err != nil {
			h.logger.Error().Err(err).Msg("manually triggered sweep failed")
		}
	}()

	return utils.SendAccepted(c, "sweep started")
}
