package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gradewatch-api/internal/crypto"
	"github.com/noah-isme/gradewatch-api/internal/models"
	"github.com/noah-isme/gradewatch-api/internal/portal"
	"github.com/noah-isme/gradewatch-api/internal/repository"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Credential{},
		&models.Course{},
		&models.Grade{},
		&models.Assessment{},
		&models.SemesterResult{},
		&models.GroupSyncStatus{},
		&models.Setting{},
		&models.AuditLog{},
		&models.Notification{},
	))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())
	})

	return db
}

func testVault(t *testing.T) *crypto.Vault {
	t.Helper()
	vault, err := crypto.NewVault(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return vault
}

func newTestDetector(t *testing.T) (ChangeDetector, repository.GradeRepository, *crypto.Vault) {
	db := openTestDB(t)
	vault := testVault(t)
	grades := repository.NewGradeRepository(db)
	courses := repository.NewCourseRepository(db)
	return NewChangeDetector(grades, courses, vault, zerolog.Nop()), grades, vault
}

func TestChangeDetectorGradeLifecycle(t *testing.T) {
	detector, grades, vault := newTestDetector(t)
	ctx := context.Background()

	user := models.User{ID: 1, ChatID: 100, CampusID: "main", DepartmentID: "cs"}
	course := portal.ParsedCourse{
		AcademicYear: "2017/18",
		Semester:     "I",
		YearLevel:    "Year III",
		YearNumber:   3,
		CourseName:   "Operating Systems",
		CourseCode:   "SECT-3082",
		CreditHour:   "3",
		Letter:       models.NotGraded,
	}

	// First sighting of an ungraded course is stored silently.
	changed, _, err := detector.ApplyGrade(ctx, user, course)
	require.NoError(t, err)
	require.False(t, changed)

	// The letter appearing later counts as a release.
	course.Letter = "A"
	changed, message, err := detector.ApplyGrade(ctx, user, course)
	require.NoError(t, err)
	require.True(t, changed)
	require.Contains(t, message, "released")
	require.Contains(t, message, "SECT-3082")

	// Re-applying identical data is a no-op.
	changed, _, err = detector.ApplyGrade(ctx, user, course)
	require.NoError(t, err)
	require.False(t, changed)

	// A different letter reports both the old and the new value.
	course.Letter = "B+"
	changed, message, err = detector.ApplyGrade(ctx, user, course)
	require.NoError(t, err)
	require.True(t, changed)
	require.Contains(t, message, "A -> B+")

	stored, err := grades.FindGrade(ctx, user.ChatID, "SECT-3082", "2017/18", "I")
	require.NoError(t, err)
	letter, err := vault.Decrypt(stored.Letter, stored.Nonce)
	require.NoError(t, err)
	require.Equal(t, "B+", letter)
	name, err := vault.Decrypt(stored.CourseName, stored.Nonce)
	require.NoError(t, err)
	require.Equal(t, "Operating Systems", name)
}

func TestChangeDetectorGradeCreateVisibleLetterNotifies(t *testing.T) {
	detector, _, _ := newTestDetector(t)

	user := models.User{ID: 1, ChatID: 100, CampusID: "main", DepartmentID: "cs"}
	course := portal.ParsedCourse{
		AcademicYear: "2017/18",
		Semester:     "I",
		CourseName:   "Calculus",
		CourseCode:   "MATH-1011",
		Letter:       "A-",
	}

	changed, message, err := detector.ApplyGrade(context.Background(), user, course)
	require.NoError(t, err)
	require.True(t, changed)
	require.Contains(t, message, "A-")
}

func TestChangeDetectorPendingEmptyLetterStoredSilently(t *testing.T) {
	detector, grades, vault := newTestDetector(t)
	ctx := context.Background()

	user := models.User{ID: 1, ChatID: 100, CampusID: "main", DepartmentID: "cs"}
	course := portal.ParsedCourse{
		AcademicYear: "2017/18",
		Semester:     "I",
		CourseName:   "Probability Theory",
		CourseCode:   "MATH-3101",
		CreditHour:   "3",
		Letter:       "",
	}

	// The portal leaves the grade cell blank until marking finishes.
	changed, _, err := detector.ApplyGrade(ctx, user, course)
	require.NoError(t, err)
	require.False(t, changed)

	stored, err := grades.FindGrade(ctx, user.ChatID, "MATH-3101", "2017/18", "I")
	require.NoError(t, err)
	require.NotEmpty(t, stored.Nonce)
	name, err := vault.Decrypt(stored.CourseName, stored.Nonce)
	require.NoError(t, err)
	require.Equal(t, "Probability Theory", name)

	changed, _, err = detector.ApplyGrade(ctx, user, course)
	require.NoError(t, err)
	require.False(t, changed)

	course.Letter = "B"
	changed, message, err := detector.ApplyGrade(ctx, user, course)
	require.NoError(t, err)
	require.True(t, changed)
	require.Contains(t, message, "released")
	require.Contains(t, message, "B")
}

func TestChangeDetectorAssessmentHashIgnoresOrder(t *testing.T) {
	detector, _, _ := newTestDetector(t)
	ctx := context.Background()

	user := models.User{ID: 1, ChatID: 100, CampusID: "main", DepartmentID: "cs"}
	course := portal.ParsedCourse{
		AcademicYear: "2017/18",
		Semester:     "I",
		CourseName:   "Networking",
		CourseCode:   "SECT-3061",
	}

	detail := portal.Detail{
		Course: "Networking",
		Components: []portal.Component{
			{Name: "Quiz", Weight: "10%", Result: "8"},
			{Name: "Final Exam", Weight: "50%", Result: "42"},
		},
		Total: "50",
	}

	changed, message, err := detector.ApplyAssessment(ctx, user, course, detail)
	require.NoError(t, err)
	require.True(t, changed)
	require.Contains(t, message, "released")

	// The same breakdown in a different order must hash identically.
	reordered := portal.Detail{
		Course: "Networking",
		Components: []portal.Component{
			{Name: "Final Exam", Weight: "50%", Result: "42"},
			{Name: "Quiz", Weight: "10%", Result: "8"},
		},
		Total: "50",
	}
	changed, _, err = detector.ApplyAssessment(ctx, user, course, reordered)
	require.NoError(t, err)
	require.False(t, changed)

	// A changed component result is a real update.
	reordered.Components[1].Result = "9"
	changed, message, err = detector.ApplyAssessment(ctx, user, course, reordered)
	require.NoError(t, err)
	require.True(t, changed)
	require.Contains(t, message, "updated")
}

func TestChangeDetectorAssessmentTotalChangeCarriesDelta(t *testing.T) {
	detector, _, _ := newTestDetector(t)
	ctx := context.Background()

	user := models.User{ID: 1, ChatID: 100, CampusID: "main", DepartmentID: "cs"}
	course := portal.ParsedCourse{
		AcademicYear: "2017/18",
		Semester:     "I",
		CourseName:   "Networking",
		CourseCode:   "SECT-3061",
	}

	detail := portal.Detail{
		Course: "Networking",
		Components: []portal.Component{
			{Name: "Quiz", Weight: "10%", Result: "8"},
			{Name: "Mid Exam", Weight: "30%", Result: "24"},
		},
		Total: "40",
	}

	changed, _, err := detector.ApplyAssessment(ctx, user, course, detail)
	require.NoError(t, err)
	require.True(t, changed)

	// A new component moves the running total; the message carries both values.
	detail.Components = append(detail.Components, portal.Component{Name: "Lab", Weight: "10%", Result: "5"})
	detail.Total = "45"
	changed, message, err := detector.ApplyAssessment(ctx, user, course, detail)
	require.NoError(t, err)
	require.True(t, changed)
	require.Contains(t, message, "40 -> 45")

	// A reshuffled result with the same total stays generic.
	detail.Components[0].Result = "7"
	detail.Components[1].Result = "25"
	changed, message, err = detector.ApplyAssessment(ctx, user, course, detail)
	require.NoError(t, err)
	require.True(t, changed)
	require.Contains(t, message, "details updated")
	require.NotContains(t, message, "->")
}

func TestChangeDetectorAssessmentUnscoredCreateIsSilent(t *testing.T) {
	detector, _, _ := newTestDetector(t)

	user := models.User{ID: 1, ChatID: 100}
	course := portal.ParsedCourse{AcademicYear: "2017/18", Semester: "I", CourseCode: "SECT-3061", CourseName: "Networking"}
	detail := portal.Detail{
		Course: "Networking",
		Components: []portal.Component{
			{Name: "Quiz", Weight: "10%", Result: ""},
			{Name: "Final Exam", Weight: "50%", Result: "NG"},
		},
	}

	changed, _, err := detector.ApplyAssessment(context.Background(), user, course, detail)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestChangeDetectorSummaryRewritesAllFieldsTogether(t *testing.T) {
	detector, grades, vault := newTestDetector(t)
	ctx := context.Background()

	user := models.User{ID: 1, ChatID: 100}
	summary := portal.ParsedSummary{
		AcademicYear: "2017/18",
		Semester:     "I",
		YearLevel:    "Year III",
		YearNumber:   3,
		SGPA:         "3.88",
		CGPA:         "3.64",
		Status:       "Promoted",
	}

	changed, message, err := detector.ApplySummary(ctx, user, summary)
	require.NoError(t, err)
	require.True(t, changed)
	require.Contains(t, message, "3.88")

	changed, _, err = detector.ApplySummary(ctx, user, summary)
	require.NoError(t, err)
	require.False(t, changed)

	before, err := grades.FindSemesterResult(ctx, user.ChatID, "2017/18", "I")
	require.NoError(t, err)

	summary.CGPA = "3.70"
	changed, _, err = detector.ApplySummary(ctx, user, summary)
	require.NoError(t, err)
	require.True(t, changed)

	after, err := grades.FindSemesterResult(ctx, user.ChatID, "2017/18", "I")
	require.NoError(t, err)
	require.NotEqual(t, before.Nonce, after.Nonce)

	sgpa, err := vault.Decrypt(after.SGPA, after.Nonce)
	require.NoError(t, err)
	require.Equal(t, "3.88", sgpa)
	cgpa, err := vault.Decrypt(after.CGPA, after.Nonce)
	require.NoError(t, err)
	require.Equal(t, "3.70", cgpa)
	status, err := vault.Decrypt(after.Status, after.Nonce)
	require.NoError(t, err)
	require.Equal(t, "Promoted", status)
}

func TestChangeDetectorSummarySGPAChangeCarriesDelta(t *testing.T) {
	detector, _, _ := newTestDetector(t)
	ctx := context.Background()

	user := models.User{ID: 1, ChatID: 100}
	summary := portal.ParsedSummary{
		AcademicYear: "2017/18",
		Semester:     "I",
		SGPA:         "3.40",
		CGPA:         "3.60",
		Status:       "Promoted",
	}

	changed, _, err := detector.ApplySummary(ctx, user, summary)
	require.NoError(t, err)
	require.True(t, changed)

	summary.SGPA = "3.88"
	changed, message, err := detector.ApplySummary(ctx, user, summary)
	require.NoError(t, err)
	require.True(t, changed)
	require.Contains(t, message, "3.40 -> 3.88")
}
