package dto

// RegisterRequest registers a user and their portal credential.
type RegisterRequest struct {
	ChatID       int64  `json:"chat_id" validate:"required"`
	Username     string `json:"username" validate:"omitempty,max=255"`
	PortalID     string `json:"portal_id" validate:"required,max=50"`
	Password     string `json:"password" validate:"required,min=1,max=128"`
	CampusID     string `json:"campus_id" validate:"required,max=50"`
	DepartmentID string `json:"department_id" validate:"required,max=50"`
}

// UpdatePasswordRequest replaces the stored portal password.
type UpdatePasswordRequest struct {
	Password string `json:"password" validate:"required,min=1,max=128"`
}

// UpdateAcademicStatusRequest changes the user's tracked year and semester.
type UpdateAcademicStatusRequest struct {
	AcademicYear string `json:"academic_year" validate:"omitempty,max=100"`
	Semester     string `json:"semester" validate:"omitempty,max=50"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ChatID          int64  `json:"chat_id"`
	Username        string `json:"username"`
	PortalID        string `json:"portal_id"`
	CampusID        string `json:"campus_id"`
	DepartmentID    string `json:"department_id"`
	AcademicYear    string `json:"academic_year"`
	Semester        string `json:"semester"`
	CredentialValid bool   `json:"credential_valid"`
}
