package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gradewatch-api/internal/models"
)

// SettingRepository handles persistence for operational toggles.
type SettingRepository interface {
	Get(ctx context.Context, key string) (models.Setting, error)
	Set(ctx context.Context, key, value, description string) error
}

type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository constructs a repository backed by GORM.
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) Get(ctx context.Context, key string) (models.Setting, error) {
	var setting models.Setting
	if err := r.db.WithContext(ctx).First(&setting, "key = ?", key).Error; err != nil {
		return models.Setting{}, err
	}
	return setting, nil
}

func (r *settingRepository) Set(ctx context.Context, key, value, description string) error {
	setting := models.Setting{Key: key, Value: value, Description: description}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
		}).
		Create(&setting).Error
}
