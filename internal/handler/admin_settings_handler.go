package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradewatch-api/internal/dto"
	"github.com/noah-isme/gradewatch-api/internal/service"
	"github.com/noah-isme/gradewatch-api/internal/utils"
)

// AdminSettingsHandler manages operational toggles.
type AdminSettingsHandler struct {
	sync   service.SyncService
	logger zerolog.Logger
}

// NewAdminSettingsHandler constructs a handler instance.
func NewAdminSettingsHandler(sync service.SyncService, logger zerolog.Logger) *AdminSettingsHandler {
	return &AdminSettingsHandler{
		sync:   sync,
		logger: logger.With().Str("component", "admin_settings_handler").Logger(),
	}
}

// Register binds the settings routes.
func (h *AdminSettingsHandler) Register(router fiber.Router) {
	router.Get("/sweep", h.getSweep)
	router.Put("/sweep", h.setSweep)
}

func (h *AdminSettingsHandler) getSweep(c *fiber.Ctx) error {
	enabled, err := h.sync.SweepEnabled(c.UserContext())
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}
	return utils.SendSuccess(c, "sweep setting", dto.SweepToggleResponse{Enabled: enabled})
}

func (h *AdminSettingsHandler) setSweep(c *fiber.Ctx) error {
	var payload dto.SweepToggleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.sync.SetSweepEnabled(c.UserContext(), payload.Enabled); err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	h.logger.Info().Bool("enabled", payload.Enabled).Msg("sweep toggle changed")
	return utils.SendSuccess(c, "sweep setting updated", dto.SweepToggleResponse{Enabled: payload.Enabled})
}
