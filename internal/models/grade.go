package models

import "time"

// NotGraded is the portal's sentinel for a course whose final letter has not
// been published yet.
const NotGraded = "NG"

// Grade holds one user's final letter for one course in one term. Letter,
// CourseName, CreditHour and ECTS are stored encrypted; an empty Nonce marks
// a legacy row stored in clear.
type Grade struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ChatID        int64     `gorm:"index;uniqueIndex:uq_grade,priority:1;not null" json:"chat_id"`
	CampusID      string    `gorm:"size:50" json:"campus_id"`
	DepartmentID  string    `gorm:"size:50" json:"department_id"`
	CourseCode    string    `gorm:"size:50;uniqueIndex:uq_grade,priority:2;not null" json:"course_code"`
	CourseName    string    `gorm:"size:512" json:"course_name"`
	AcademicYear  string    `gorm:"size:100;uniqueIndex:uq_grade,priority:3" json:"academic_year"`
	Semester      string    `gorm:"size:50;uniqueIndex:uq_grade,priority:4" json:"semester"`
	YearLevel     string    `gorm:"size:50" json:"year_level"`
	YearNumber    int       `json:"year_number"`
	Letter        string    `gorm:"size:255" json:"letter"`
	CreditHour    string    `gorm:"size:255" json:"credit_hour"`
	ECTS          string    `gorm:"size:255" json:"ects"`
	Nonce         string    `gorm:"size:255" json:"-"`
	LastUpdatedAt time.Time `gorm:"autoUpdateTime" json:"last_updated_at"`
}

// Assessment holds the full mark breakdown for one user's course as an
// encrypted JSON blob. ContentHash is a hash of the normalized breakdown and
// is the only value consulted for change detection, so rows can be compared
// without decrypting.
type Assessment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ChatID        int64     `gorm:"index;uniqueIndex:uq_assessment,priority:1;not null" json:"chat_id"`
	CampusID      string    `gorm:"size:50" json:"campus_id"`
	DepartmentID  string    `gorm:"size:50" json:"department_id"`
	CourseCode    string    `gorm:"size:50;uniqueIndex:uq_assessment,priority:2;not null" json:"course_code"`
	AcademicYear  string    `gorm:"size:100" json:"academic_year"`
	Semester      string    `gorm:"size:50" json:"semester"`
	YearLevel     string    `gorm:"size:50" json:"year_level"`
	YearNumber    int       `json:"year_number"`
	Payload       string    `gorm:"type:text" json:"-"`
	Nonce         string    `gorm:"size:255" json:"-"`
	ContentHash   string    `gorm:"size:64;index" json:"-"`
	LastUpdatedAt time.Time `gorm:"autoUpdateTime" json:"last_updated_at"`
}

// SemesterResult holds one user's GPA block for one term. SGPA, CGPA and
// Status are stored encrypted under a single nonce; the three fields are
// always rewritten together.
type SemesterResult struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ChatID        int64     `gorm:"index;uniqueIndex:uq_semester_result,priority:1;not null" json:"chat_id"`
	AcademicYear  string    `gorm:"size:100;uniqueIndex:uq_semester_result,priority:2" json:"academic_year"`
	Semester      string    `gorm:"size:50;uniqueIndex:uq_semester_result,priority:3" json:"semester"`
	YearLevel     string    `gorm:"size:50" json:"year_level"`
	YearNumber    int       `json:"year_number"`
	SGPA          string    `gorm:"size:255" json:"sgpa"`
	CGPA          string    `gorm:"size:255" json:"cgpa"`
	Status        string    `gorm:"size:255" json:"status"`
	Nonce         string    `gorm:"size:255" json:"-"`
	LastUpdatedAt time.Time `gorm:"autoUpdateTime" json:"last_updated_at"`
}
