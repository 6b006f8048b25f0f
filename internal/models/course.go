package models

import "time"

// Course is the global de-duplicated catalog entry for a course offered in a
// given campus, department and term. Entries are created on first sighting
// and never updated within a term.
type Course struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CourseCode   string    `gorm:"size:50;uniqueIndex:uq_course,priority:1;not null" json:"course_code"`
	CourseName   string    `gorm:"size:512;not null" json:"course_name"`
	CampusID     string    `gorm:"size:50;uniqueIndex:uq_course,priority:2" json:"campus_id"`
	DepartmentID string    `gorm:"size:50;uniqueIndex:uq_course,priority:3" json:"department_id"`
	AcademicYear string    `gorm:"size:100;uniqueIndex:uq_course,priority:4" json:"academic_year"`
	Semester     string    `gorm:"size:50;uniqueIndex:uq_course,priority:5" json:"semester"`
	CreatedAt    time.Time `json:"created_at"`
}
