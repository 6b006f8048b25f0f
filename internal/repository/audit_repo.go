package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gradewatch-api/internal/models"
)

// AuditRepository handles persistence for the audit trail.
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	LatestByAction(ctx context.Context, chatID int64, action string, since time.Time) (models.AuditLog, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository constructs a repository backed by GORM.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// LatestByAction returns the newest matching entry at or after the cutoff.
// Duplicate entries per user are expected, so only the newest is read.
func (r *auditRepository) LatestByAction(ctx context.Context, chatID int64, action string, since time.Time) (models.AuditLog, error) {
	var entry models.AuditLog
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND action = ? AND created_at > ?", chatID, action, since).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		return models.AuditLog{}, err
	}
	return entry, nil
}
