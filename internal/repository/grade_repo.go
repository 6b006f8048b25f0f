package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gradewatch-api/internal/models"
)

// GradeRepository handles persistence for grade, assessment and semester
// result rows. Stored values are opaque to the repository; encryption and
// comparison happen in the service layer.
type GradeRepository interface {
	FindGrade(ctx context.Context, chatID int64, courseCode, academicYear, semester string) (models.Grade, error)
	CreateGrade(ctx context.Context, grade *models.Grade) error
	UpdateGrade(ctx context.Context, grade *models.Grade) error
	ListGrades(ctx context.Context, chatID int64) ([]models.Grade, error)

	FindAssessment(ctx context.Context, chatID int64, courseCode string) (models.Assessment, error)
	CreateAssessment(ctx context.Context, assessment *models.Assessment) error
	UpdateAssessment(ctx context.Context, assessment *models.Assessment) error

	FindSemesterResult(ctx context.Context, chatID int64, academicYear, semester string) (models.SemesterResult, error)
	CreateSemesterResult(ctx context.Context, result *models.SemesterResult) error
	UpdateSemesterResult(ctx context.Context, result *models.SemesterResult) error
	ListSemesterResults(ctx context.Context, chatID int64) ([]models.SemesterResult, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository constructs a repository backed by GORM.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) FindGrade(ctx context.Context, chatID int64, courseCode, academicYear, semester string) (models.Grade, error) {
	var grade models.Grade
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND course_code = ? AND academic_year = ? AND semester = ?",
			chatID, courseCode, academicYear, semester).
		First(&grade).Error
	if err != nil {
		return models.Grade{}, err
	}
	return grade, nil
}

func (r *gradeRepository) CreateGrade(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Create(grade).Error
}

func (r *gradeRepository) UpdateGrade(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Save(grade).Error
}

func (r *gradeRepository) ListGrades(ctx context.Context, chatID int64) ([]models.Grade, error) {
	var grades []models.Grade
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("academic_year, semester, course_code").
		Find(&grades).Error
	if err != nil {
		return nil, err
	}
	return grades, nil
}

func (r *gradeRepository) FindAssessment(ctx context.Context, chatID int64, courseCode string) (models.Assessment, error) {
	var assessment models.Assessment
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND course_code = ?", chatID, courseCode).
		First(&assessment).Error
	if err != nil {
		return models.Assessment{}, err
	}
	return assessment, nil
}

func (r *gradeRepository) CreateAssessment(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}

func (r *gradeRepository) UpdateAssessment(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Save(assessment).Error
}

func (r *gradeRepository) FindSemesterResult(ctx context.Context, chatID int64, academicYear, semester string) (models.SemesterResult, error) {
	var result models.SemesterResult
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND academic_year = ? AND semester = ?", chatID, academicYear, semester).
		First(&result).Error
	if err != nil {
		return models.SemesterResult{}, err
	}
	return result, nil
}

func (r *gradeRepository) CreateSemesterResult(ctx context.Context, result *models.SemesterResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *gradeRepository) UpdateSemesterResult(ctx context.Context, result *models.SemesterResult) error {
	return r.db.WithContext(ctx).Save(result).Error
}

func (r *gradeRepository) ListSemesterResults(ctx context.Context, chatID int64) ([]models.SemesterResult, error) {
	var results []models.SemesterResult
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("academic_year, semester").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
