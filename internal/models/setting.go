package models

import "time"

// SettingSweepEnabled gates the periodic sweep. The value is read at the
// start of every sweep, so flipping it takes effect on the next run.
const SettingSweepEnabled = "sweep_enabled"

// Setting is a persisted key/value pair for operational toggles.
type Setting struct {
	Key         string    `gorm:"primaryKey;size:100" json:"key"`
	Value       string    `gorm:"type:text;not null" json:"value"`
	Description string    `gorm:"type:text" json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}
