package models

import "time"

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered student whose portal account is tracked.
type User struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	ChatID          int64       `gorm:"uniqueIndex;not null" json:"chat_id"`
	Username        string      `gorm:"size:255" json:"username"`
	PortalID        string      `gorm:"size:50;index;not null" json:"portal_id"`
	CampusID        string      `gorm:"size:50" json:"campus_id"`
	DepartmentID    string      `gorm:"size:50" json:"department_id"`
	AcademicYear    string      `gorm:"size:50" json:"academic_year"`
	Semester        string      `gorm:"size:50" json:"semester"`
	Role            string      `gorm:"size:50;default:user" json:"role"`
	CredentialValid bool        `gorm:"default:true" json:"credential_valid"`
	Credential      *Credential `json:"-"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Credential stores one encrypted portal password per user. It is recreated
// whenever the password changes and decrypted only for the duration of a
// single portal operation.
type Credential struct {
	UserID     uint      `gorm:"primaryKey" json:"user_id"`
	Ciphertext string    `gorm:"type:text;not null" json:"-"`
	Nonce      string    `gorm:"size:255;not null" json:"-"`
	Algorithm  string    `gorm:"size:50;default:xchacha20poly1305" json:"algorithm"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
