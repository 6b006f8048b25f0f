package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audit actions recorded by the service.
const (
	AuditSweepStart       = "SWEEP_START"
	AuditSweepEnd         = "SWEEP_END"
	AuditSweepSkipped     = "SWEEP_SKIPPED"
	AuditGradeUpdated     = "GRADE_UPDATED"
	AuditGPAUpdated       = "GPA_UPDATED"
	AuditRefreshRequested = "REFRESH_REQUESTED"
	AuditUserRegistered   = "USER_REGISTERED"
	AuditPasswordUpdated  = "PASSWORD_UPDATED"
	AuditStatusUpdated    = "ACADEMIC_STATUS_UPDATED"
	AuditPortalIDUpdated  = "PORTAL_ID_UPDATED"
)

// AuditLog records a durable trail of service actions. The most recent
// REFRESH_REQUESTED entry per user backs the on-demand sync cooldown.
type AuditLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID    *int64         `gorm:"index" json:"chat_id"`
	Action    string         `gorm:"size:100;index;not null" json:"action"`
	Metadata  datatypes.JSON `json:"metadata"`
	Source    string         `gorm:"size:100;default:api" json:"source"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns the row id.
func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
