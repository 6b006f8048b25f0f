package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gradewatch-api/internal/models"
)

// UserRepository handles persistence for users and their credentials.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	FindByChatID(ctx context.Context, chatID int64) (models.User, error)
	ListContextGroups(ctx context.Context) ([]models.GroupKey, error)
	ListGroupMembers(ctx context.Context, key models.GroupKey) ([]models.User, error)
	MarkCredentialInvalid(ctx context.Context, userID uint) error
	UpsertCredential(ctx context.Context, credential *models.Credential) error
	FindCredential(ctx context.Context, userID uint) (models.Credential, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) FindByChatID(ctx context.Context, chatID int64) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

// ListContextGroups returns the distinct context groups of the user base.
func (r *userRepository) ListContextGroups(ctx context.Context) ([]models.GroupKey, error) {
	var groups []models.GroupKey
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Distinct("campus_id", "department_id", "academic_year", "semester").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// ListGroupMembers returns a group's credential-valid members.
func (r *userRepository) ListGroupMembers(ctx context.Context, key models.GroupKey) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("campus_id = ? AND department_id = ? AND academic_year = ? AND semester = ? AND credential_valid = ?",
			key.CampusID, key.DepartmentID, key.AcademicYear, key.Semester, true).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) MarkCredentialInvalid(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("credential_valid", false).Error
}

func (r *userRepository) UpsertCredential(ctx context.Context, credential *models.Credential) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"ciphertext", "nonce", "algorithm", "updated_at"}),
		}).
		Create(credential).Error
}

func (r *userRepository) FindCredential(ctx context.Context, userID uint) (models.Credential, error) {
	var credential models.Credential
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&credential).Error; err != nil {
		return models.Credential{}, err
	}
	return credential, nil
}
