package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradewatch-api/internal/dto"
	"github.com/noah-isme/gradewatch-api/internal/repository"
)

func newTestUserService(t *testing.T) (UserService, repository.UserRepository) {
	t.Helper()
	db := openTestDB(t)
	users := repository.NewUserRepository(db)
	audit := NewAuditService(repository.NewAuditRepository(db), "test", zerolog.Nop())
	svc := NewUserService(users, testVault(t), audit, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	return svc, users
}

func TestUserServiceRegisterEncryptsCredential(t *testing.T) {
	svc, users := newTestUserService(t)
	ctx := context.Background()

	response, err := svc.Register(ctx, dto.RegisterRequest{
		ChatID:       100,
		Username:     "abebe",
		PortalID:     "ugr/25351/14",
		Password:     "portal-secret",
		CampusID:     "main",
		DepartmentID: "cs",
	})
	require.NoError(t, err)
	require.True(t, response.CredentialValid)

	user, err := users.FindByChatID(ctx, 100)
	require.NoError(t, err)

	credential, err := users.FindCredential(ctx, user.ID)
	require.NoError(t, err)
	require.NotEqual(t, "portal-secret", credential.Ciphertext)
	require.NotEmpty(t, credential.Nonce)

	plaintext, err := svc.DecryptedPassword(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "portal-secret", plaintext)
}

func TestUserServiceRegisterRejectsDuplicateChatID(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	payload := dto.RegisterRequest{
		ChatID:       100,
		PortalID:     "ugr/25351/14",
		Password:     "portal-secret",
		CampusID:     "main",
		DepartmentID: "cs",
	}
	_, err := svc.Register(ctx, payload)
	require.NoError(t, err)

	_, err = svc.Register(ctx, payload)
	require.ErrorIs(t, err, ErrUserExists)
}

func TestUserServiceUpdatePasswordReactivatesAccount(t *testing.T) {
	svc, users := newTestUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, dto.RegisterRequest{
		ChatID:       100,
		PortalID:     "ugr/25351/14",
		Password:     "old-secret",
		CampusID:     "main",
		DepartmentID: "cs",
	})
	require.NoError(t, err)

	user, err := users.FindByChatID(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, users.MarkCredentialInvalid(ctx, user.ID))

	require.NoError(t, svc.UpdatePassword(ctx, 100, dto.UpdatePasswordRequest{Password: "new-secret"}))

	user, err = users.FindByChatID(ctx, 100)
	require.NoError(t, err)
	require.True(t, user.CredentialValid)

	plaintext, err := svc.DecryptedPassword(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "new-secret", plaintext)
}

func TestUserServiceUpdateAcademicStatus(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, dto.RegisterRequest{
		ChatID:       100,
		PortalID:     "ugr/25351/14",
		Password:     "portal-secret",
		CampusID:     "main",
		DepartmentID: "cs",
	})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateAcademicStatus(ctx, 100, dto.UpdateAcademicStatusRequest{
		AcademicYear: "2017/18",
		Semester:     "II",
	}))

	response, err := svc.Get(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, "2017/18", response.AcademicYear)
	require.Equal(t, "II", response.Semester)

	_, err = svc.Get(ctx, 999)
	require.ErrorIs(t, err, ErrUserNotFound)
}
