package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gradewatch-api/internal/models"
)

// CourseRepository maintains the global course catalog.
type CourseRepository interface {
	Ensure(ctx context.Context, course *models.Course) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs a repository backed by GORM.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

// Ensure creates the catalog entry on first sighting. An existing entry for
// the same code and term is left untouched.
func (r *courseRepository) Ensure(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).
		Where(models.Course{
			CourseCode:   course.CourseCode,
			CampusID:     course.CampusID,
			DepartmentID: course.DepartmentID,
			AcademicYear: course.AcademicYear,
			Semester:     course.Semester,
		}).
		FirstOrCreate(course).Error
}
