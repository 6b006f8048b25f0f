package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gradewatch-api/internal/models"
	"github.com/noah-isme/gradewatch-api/internal/repository"
)

// AuditService records the durable action trail. Writes are best effort: a
// failed insert is logged but never propagated to the caller.
type AuditService interface {
	Log(ctx context.Context, chatID *int64, action string, metadata map[string]interface{})
	LatestSince(ctx context.Context, chatID int64, action string, since time.Time) (*models.AuditLog, error)
}

type auditService struct {
	repo   repository.AuditRepository
	source string
	logger zerolog.Logger
}

// NewAuditService constructs the audit trail service.
func NewAuditService(repo repository.AuditRepository, source string, logger zerolog.Logger) AuditService {
	if source == "" {
		source = "api"
	}
	return &auditService{
		repo:   repo,
		source: source,
		logger: logger.With().Str("component", "audit_service").Logger(),
	}
}

func (s *auditService) Log(ctx context.Context, chatID *int64, action string, metadata map[string]interface{}) {
	entry := models.AuditLog{
		ChatID: chatID,
		Action: action,
		Source: s.source,
	}

	if len(metadata) > 0 {
		payload, err := json.Marshal(metadata)
		if err != nil {
			s.logger.Warn().Err(err).Str("action", action).Msg("failed to encode audit metadata")
		} else {
			entry.Metadata = datatypes.JSON(payload)
		}
	}

	if err := s.repo.Create(ctx, &entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to write audit entry")
	}
}

// LatestSince returns the newest matching entry after the cutoff, or nil when
// the user has no matching entry in the window.
func (s *auditService) LatestSince(ctx context.Context, chatID int64, action string, since time.Time) (*models.AuditLog, error) {
	entry, err := s.repo.LatestByAction(ctx, chatID, action, since)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}
