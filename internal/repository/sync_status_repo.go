package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gradewatch-api/internal/models"
)

// SyncStatusRepository handles persistence for context-group sync bookkeeping.
type SyncStatusRepository interface {
	Find(ctx context.Context, key models.GroupKey) (models.GroupSyncStatus, error)
	Save(ctx context.Context, status *models.GroupSyncStatus) error
}

type syncStatusRepository struct {
	db *gorm.DB
}

// NewSyncStatusRepository constructs a repository backed by GORM.
func NewSyncStatusRepository(db *gorm.DB) SyncStatusRepository {
	return &syncStatusRepository{db: db}
}

func (r *syncStatusRepository) Find(ctx context.Context, key models.GroupKey) (models.GroupSyncStatus, error) {
	var status models.GroupSyncStatus
	err := r.db.WithContext(ctx).
		Where("campus_id = ? AND department_id = ? AND academic_year = ? AND semester = ?",
			key.CampusID, key.DepartmentID, key.AcademicYear, key.Semester).
		First(&status).Error
	if err != nil {
		return models.GroupSyncStatus{}, err
	}
	return status, nil
}

// Save writes the status row, creating it on first use. The unique index on
// the group key serializes concurrent sweeps touching the same group.
func (r *syncStatusRepository) Save(ctx context.Context, status *models.GroupSyncStatus) error {
	return r.db.WithContext(ctx).Save(status).Error
}
