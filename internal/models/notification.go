package models

import "time"

// Notification types emitted by the grade sync pipeline.
const (
	NotificationGrade      = "grade"
	NotificationAssessment = "assessment"
	NotificationSummary    = "summary"
	NotificationCredential = "credential"
	NotificationSync       = "sync"
)

// Notification is a message delivered to one user. Delivery is best effort;
// the persisted row is the source of truth for the in-app feed.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    int64     `gorm:"index;not null" json:"chat_id"`
	Type      string    `gorm:"size:64" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
