package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gradewatch-api/internal/crypto"
	"github.com/noah-isme/gradewatch-api/internal/dto"
	"github.com/noah-isme/gradewatch-api/internal/models"
	"github.com/noah-isme/gradewatch-api/internal/repository"
)

// ErrUserNotFound is returned when no user exists for the given chat id.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists is returned when registering an already registered chat id.
var ErrUserExists = errors.New("user already registered")

// UserService manages user accounts and their encrypted portal credentials.
type UserService interface {
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error)
	Get(ctx context.Context, chatID int64) (dto.UserResponse, error)
	UpdatePassword(ctx context.Context, chatID int64, payload dto.UpdatePasswordRequest) error
	UpdatePortalID(ctx context.Context, chatID int64, portalID string) error
	UpdateAcademicStatus(ctx context.Context, chatID int64, payload dto.UpdateAcademicStatusRequest) error
	DecryptedPassword(ctx context.Context, userID uint) (string, error)
}

type userService struct {
	repo      repository.UserRepository
	vault     *crypto.Vault
	audit     AuditService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo repository.UserRepository, vault *crypto.Vault, audit AuditService, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		vault:     vault,
		audit:     audit,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	if _, err := s.repo.FindByChatID(ctx, payload.ChatID); err == nil {
		return dto.UserResponse{}, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, fmt.Errorf("lookup user: %w", err)
	}

	user := models.User{
		ChatID:          payload.ChatID,
		Username:        strings.TrimSpace(payload.Username),
		PortalID:        strings.TrimSpace(payload.PortalID),
		CampusID:        strings.TrimSpace(payload.CampusID),
		DepartmentID:    strings.TrimSpace(payload.DepartmentID),
		Role:            models.RoleUser,
		CredentialValid: true,
	}

	if err := s.repo.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, fmt.Errorf("create user: %w", err)
	}

	if err := s.storeCredential(ctx, user.ID, payload.Password); err != nil {
		return dto.UserResponse{}, err
	}

	s.audit.Log(ctx, &user.ChatID, models.AuditUserRegistered, map[string]interface{}{
		"portal_id": user.PortalID,
		"campus_id": user.CampusID,
	})

	return newUserResponse(user), nil
}

func (s *userService) Get(ctx context.Context, chatID int64) (dto.UserResponse, error) {
	user, err := s.findUser(ctx, chatID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return newUserResponse(user), nil
}

// UpdatePassword replaces the stored credential and re-enables the account
// for sweeps.
func (s *userService) UpdatePassword(ctx context.Context, chatID int64, payload dto.UpdatePasswordRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	user, err := s.findUser(ctx, chatID)
	if err != nil {
		return err
	}

	if err := s.storeCredential(ctx, user.ID, payload.Password); err != nil {
		return err
	}

	if !user.CredentialValid {
		user.CredentialValid = true
		if err := s.repo.Update(ctx, &user); err != nil {
			return fmt.Errorf("reactivate user: %w", err)
		}
	}

	s.audit.Log(ctx, &chatID, models.AuditPasswordUpdated, nil)
	return nil
}

func (s *userService) UpdatePortalID(ctx context.Context, chatID int64, portalID string) error {
	portalID = strings.TrimSpace(portalID)
	if portalID == "" {
		return errors.New("portal id is required")
	}

	user, err := s.findUser(ctx, chatID)
	if err != nil {
		return err
	}

	user.PortalID = portalID
	if err := s.repo.Update(ctx, &user); err != nil {
		return fmt.Errorf("update portal id: %w", err)
	}

	s.audit.Log(ctx, &chatID, models.AuditPortalIDUpdated, map[string]interface{}{
		"portal_id": portalID,
	})
	return nil
}

func (s *userService) UpdateAcademicStatus(ctx context.Context, chatID int64, payload dto.UpdateAcademicStatusRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	user, err := s.findUser(ctx, chatID)
	if err != nil {
		return err
	}

	if year := strings.TrimSpace(payload.AcademicYear); year != "" {
		user.AcademicYear = year
	}
	if semester := strings.TrimSpace(payload.Semester); semester != "" {
		user.Semester = semester
	}

	if err := s.repo.Update(ctx, &user); err != nil {
		return fmt.Errorf("update academic status: %w", err)
	}

	s.audit.Log(ctx, &chatID, models.AuditStatusUpdated, map[string]interface{}{
		"academic_year": user.AcademicYear,
		"semester":      user.Semester,
	})
	return nil
}

// DecryptedPassword returns the plaintext portal password for the duration of
// a single portal session. Callers must not persist it.
func (s *userService) DecryptedPassword(ctx context.Context, userID uint) (string, error) {
	credential, err := s.repo.FindCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("load credential: %w", err)
	}

	plaintext, err := s.vault.Decrypt(credential.Ciphertext, credential.Nonce)
	if err != nil {
		return "", fmt.Errorf("decrypt credential: %w", err)
	}
	return plaintext, nil
}

func (s *userService) storeCredential(ctx context.Context, userID uint, password string) error {
	ciphertext, nonce, err := s.vault.Encrypt(password)
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}

	credential := models.Credential{
		UserID:     userID,
		Ciphertext: ciphertext,
		Nonce:      nonce,
	}
	if err := s.repo.UpsertCredential(ctx, &credential); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

func (s *userService) findUser(ctx context.Context, chatID int64) (models.User, error) {
	user, err := s.repo.FindByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func newUserResponse(user models.User) dto.UserResponse {
	return dto.UserResponse{
		ChatID:          user.ChatID,
		Username:        user.Username,
		PortalID:        user.PortalID,
		CampusID:        user.CampusID,
		DepartmentID:    user.DepartmentID,
		AcademicYear:    user.AcademicYear,
		Semester:        user.Semester,
		CredentialValid: user.CredentialValid,
	}
}
