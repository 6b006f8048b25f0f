package dto

// GradeResponse is a single decrypted grade row.
type GradeResponse struct {
	CourseCode string `json:"course_code"`
	CourseName string `json:"course_name"`
	Letter     string `json:"letter"`
	CreditHour string `json:"credit_hour"`
	ECTS       string `json:"ects,omitempty"`
}

// TermResultResponse groups the grades and summary of one semester.
type TermResultResponse struct {
	AcademicYear string          `json:"academic_year"`
	Semester     string          `json:"semester"`
	YearLevel    string          `json:"year_level,omitempty"`
	SGPA         string          `json:"sgpa,omitempty"`
	CGPA         string          `json:"cgpa,omitempty"`
	Status       string          `json:"status,omitempty"`
	Grades       []GradeResponse `json:"grades"`
}

// AssessmentComponentResponse is one scored component of a course.
type AssessmentComponentResponse struct {
	Name   string `json:"name"`
	Weight string `json:"weight"`
	Result string `json:"result"`
}

// AssessmentResponse is the decrypted assessment breakdown of a course.
type AssessmentResponse struct {
	CourseCode string                        `json:"course_code"`
	Components []AssessmentComponentResponse `json:"components"`
	Total      string                        `json:"total,omitempty"`
}
