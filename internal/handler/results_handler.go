package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gradewatch-api/internal/service"
	"github.com/noah-isme/gradewatch-api/internal/utils"
)

// ResultsHandler serves the stored, decrypted grade read model.
type ResultsHandler struct {
	results service.ResultsService
	logger  zerolog.Logger
}

// NewResultsHandler constructs a handler instance.
func NewResultsHandler(results service.ResultsService, logger zerolog.Logger) *ResultsHandler {
	return &ResultsHandler{
		results: results,
		logger:  logger.With().Str("component", "results_handler").Logger(),
	}
}

// Register binds the results routes.
func (h *ResultsHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/assessments/:courseCode", h.assessment)
}

func (h *ResultsHandler) list(c *fiber.Ctx) error {
	chatID, ok := chatIDFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	terms, err := h.results.GetResults(c.UserContext(), chatID, c.Query("year"))
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "results", terms)
}

func (h *ResultsHandler) assessment(c *fiber.Ctx) error {
	chatID, ok := chatIDFromContext(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	courseCode := c.Params("courseCode")
	if courseCode == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "course code required")
	}

	assessment, err := h.results.GetAssessment(c.UserContext(), chatID, courseCode)
	if err != nil {
		if errors.Is(err, service.ErrAssessmentNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "no assessment stored for this course")
		}
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "assessment", assessment)
}
