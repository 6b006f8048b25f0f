package dto

// UserSyncRequest triggers an on-demand portal check for one user.
type UserSyncRequest struct {
	YearScope string `json:"year_scope" validate:"omitempty,max=50"`
}

// SweepToggleRequest flips the persisted sweep gate.
type SweepToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// SweepToggleResponse reports the current state of the sweep gate.
type SweepToggleResponse struct {
	Enabled bool `json:"enabled"`
}
