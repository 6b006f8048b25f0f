package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gradewatch-api/internal/crypto"
	"github.com/noah-isme/gradewatch-api/internal/models"
	"github.com/noah-isme/gradewatch-api/internal/portal"
	"github.com/noah-isme/gradewatch-api/internal/repository"
)

// ChangeDetector compares freshly scraped portal data against the stored
// rows and persists the result. Each Apply method reports whether the stored
// state changed in a way worth telling the user about, along with the
// user-facing message.
type ChangeDetector interface {
	ApplyGrade(ctx context.Context, user models.User, course portal.ParsedCourse) (bool, string, error)
	ApplyAssessment(ctx context.Context, user models.User, course portal.ParsedCourse, detail portal.Detail) (bool, string, error)
	ApplySummary(ctx context.Context, user models.User, summary portal.ParsedSummary) (bool, string, error)
}

type changeDetector struct {
	grades  repository.GradeRepository
	courses repository.CourseRepository
	vault   *crypto.Vault
	logger  zerolog.Logger
}

// NewChangeDetector constructs a change detector.
func NewChangeDetector(grades repository.GradeRepository, courses repository.CourseRepository, vault *crypto.Vault, logger zerolog.Logger) ChangeDetector {
	return &changeDetector{
		grades:  grades,
		courses: courses,
		vault:   vault,
		logger:  logger.With().Str("component", "change_detector").Logger(),
	}
}

// ApplyGrade upserts one final letter. A newly seen course whose letter is
// still the not-graded sentinel is stored silently; everything else that
// differs from the stored letter produces a message.
func (d *changeDetector) ApplyGrade(ctx context.Context, user models.User, course portal.ParsedCourse) (bool, string, error) {
	if err := d.courses.Ensure(ctx, &models.Course{
		CourseCode:   course.CourseCode,
		CourseName:   course.CourseName,
		CampusID:     user.CampusID,
		DepartmentID: user.DepartmentID,
		AcademicYear: course.AcademicYear,
		Semester:     course.Semester,
	}); err != nil {
		d.logger.Warn().Err(err).Str("course", course.CourseCode).Msg("failed to ensure course catalog entry")
	}

	existing, err := d.grades.FindGrade(ctx, user.ChatID, course.CourseCode, course.AcademicYear, course.Semester)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := d.createGrade(ctx, user, course); err != nil {
			return false, "", err
		}
		if notGraded(course.Letter) {
			return false, "", nil
		}
		message := fmt.Sprintf("Grade released for %s (%s): %s", course.CourseName, course.CourseCode, course.Letter)
		return true, message, nil
	}
	if err != nil {
		return false, "", fmt.Errorf("lookup grade: %w", err)
	}

	oldLetter, err := d.vault.Decrypt(existing.Letter, existing.Nonce)
	if err != nil {
		return false, "", fmt.Errorf("decrypt stored grade: %w", err)
	}

	if oldLetter == course.Letter {
		return false, "", nil
	}

	if err := d.rewriteGrade(ctx, &existing, course); err != nil {
		return false, "", err
	}

	var message string
	if notGraded(oldLetter) {
		message = fmt.Sprintf("Grade released for %s (%s): %s", course.CourseName, course.CourseCode, course.Letter)
	} else {
		message = fmt.Sprintf("Grade changed for %s (%s): %s -> %s", course.CourseName, course.CourseCode, oldLetter, course.Letter)
	}
	return true, message, nil
}

// ApplyAssessment upserts one course's mark breakdown. Change detection runs
// on a hash of the normalized breakdown so stored rows never need decryption.
func (d *changeDetector) ApplyAssessment(ctx context.Context, user models.User, course portal.ParsedCourse, detail portal.Detail) (bool, string, error) {
	hash, payload, err := assessmentDigest(detail)
	if err != nil {
		return false, "", err
	}

	existing, err := d.grades.FindAssessment(ctx, user.ChatID, course.CourseCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ciphertext, nonce, err := d.vault.Encrypt(string(payload))
		if err != nil {
			return false, "", fmt.Errorf("encrypt assessment: %w", err)
		}
		row := models.Assessment{
			ChatID:       user.ChatID,
			CampusID:     user.CampusID,
			DepartmentID: user.DepartmentID,
			CourseCode:   course.CourseCode,
			AcademicYear: course.AcademicYear,
			Semester:     course.Semester,
			YearLevel:    course.YearLevel,
			YearNumber:   course.YearNumber,
			Payload:      ciphertext,
			Nonce:        nonce,
			ContentHash:  hash,
		}
		if err := d.grades.CreateAssessment(ctx, &row); err != nil {
			return false, "", fmt.Errorf("create assessment: %w", err)
		}
		if !hasScoredComponent(detail) {
			return false, "", nil
		}
		message := fmt.Sprintf("Assessment results released for %s (%s)", course.CourseName, course.CourseCode)
		return true, message, nil
	}
	if err != nil {
		return false, "", fmt.Errorf("lookup assessment: %w", err)
	}

	if existing.ContentHash == hash {
		return false, "", nil
	}

	oldTotal := d.storedAssessmentTotal(existing)

	ciphertext, nonce, err := d.vault.Encrypt(string(payload))
	if err != nil {
		return false, "", fmt.Errorf("encrypt assessment: %w", err)
	}
	existing.Payload = ciphertext
	existing.Nonce = nonce
	existing.ContentHash = hash
	existing.AcademicYear = course.AcademicYear
	existing.Semester = course.Semester
	existing.YearLevel = course.YearLevel
	existing.YearNumber = course.YearNumber
	if err := d.grades.UpdateAssessment(ctx, &existing); err != nil {
		return false, "", fmt.Errorf("update assessment: %w", err)
	}

	var message string
	if oldTotal != "" && detail.Total != "" && oldTotal != detail.Total {
		message = fmt.Sprintf("Assessment total changed for %s (%s): %s -> %s", course.CourseName, course.CourseCode, oldTotal, detail.Total)
	} else {
		message = fmt.Sprintf("Assessment details updated for %s (%s)", course.CourseName, course.CourseCode)
	}
	return true, message, nil
}

// storedAssessmentTotal opens the stored breakdown and returns its running
// total, or an empty string when the payload cannot be read.
func (d *changeDetector) storedAssessmentTotal(row models.Assessment) string {
	stored, err := d.vault.Decrypt(row.Payload, row.Nonce)
	if err != nil {
		d.logger.Warn().Err(err).Str("course", row.CourseCode).Msg("failed to decrypt stored assessment")
		return ""
	}

	var old portal.Detail
	if err := json.Unmarshal([]byte(stored), &old); err != nil {
		d.logger.Warn().Err(err).Str("course", row.CourseCode).Msg("failed to decode stored assessment")
		return ""
	}
	return old.Total
}

// ApplySummary upserts one term's GPA block. SGPA, CGPA and status are
// treated as a single unit: any difference rewrites all three under a fresh
// nonce.
func (d *changeDetector) ApplySummary(ctx context.Context, user models.User, summary portal.ParsedSummary) (bool, string, error) {
	existing, err := d.grades.FindSemesterResult(ctx, user.ChatID, summary.AcademicYear, summary.Semester)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row := models.SemesterResult{
			ChatID:       user.ChatID,
			AcademicYear: summary.AcademicYear,
			Semester:     summary.Semester,
			YearLevel:    summary.YearLevel,
			YearNumber:   summary.YearNumber,
		}
		if err := d.encryptSummary(&row, summary); err != nil {
			return false, "", err
		}
		if err := d.grades.CreateSemesterResult(ctx, &row); err != nil {
			return false, "", fmt.Errorf("create semester result: %w", err)
		}
		if summary.SGPA == "" && summary.CGPA == "" {
			return false, "", nil
		}
		return true, summaryMessage(summary), nil
	}
	if err != nil {
		return false, "", fmt.Errorf("lookup semester result: %w", err)
	}

	oldSGPA, err := d.vault.Decrypt(existing.SGPA, existing.Nonce)
	if err != nil {
		return false, "", fmt.Errorf("decrypt semester result: %w", err)
	}
	oldCGPA, err := d.vault.Decrypt(existing.CGPA, existing.Nonce)
	if err != nil {
		return false, "", fmt.Errorf("decrypt semester result: %w", err)
	}
	oldStatus, err := d.vault.Decrypt(existing.Status, existing.Nonce)
	if err != nil {
		return false, "", fmt.Errorf("decrypt semester result: %w", err)
	}

	if oldSGPA == summary.SGPA && oldCGPA == summary.CGPA && oldStatus == summary.Status {
		return false, "", nil
	}

	existing.YearLevel = summary.YearLevel
	existing.YearNumber = summary.YearNumber
	if err := d.encryptSummary(&existing, summary); err != nil {
		return false, "", err
	}
	if err := d.grades.UpdateSemesterResult(ctx, &existing); err != nil {
		return false, "", fmt.Errorf("update semester result: %w", err)
	}

	return true, summaryUpdateMessage(summary, oldSGPA), nil
}

func (d *changeDetector) createGrade(ctx context.Context, user models.User, course portal.ParsedCourse) error {
	row := models.Grade{
		ChatID:       user.ChatID,
		CampusID:     user.CampusID,
		DepartmentID: user.DepartmentID,
		CourseCode:   course.CourseCode,
		AcademicYear: course.AcademicYear,
		Semester:     course.Semester,
		YearLevel:    course.YearLevel,
		YearNumber:   course.YearNumber,
	}
	if err := d.encryptGradeFields(&row, course); err != nil {
		return err
	}
	if err := d.grades.CreateGrade(ctx, &row); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

func (d *changeDetector) rewriteGrade(ctx context.Context, row *models.Grade, course portal.ParsedCourse) error {
	row.YearLevel = course.YearLevel
	row.YearNumber = course.YearNumber
	if err := d.encryptGradeFields(row, course); err != nil {
		return err
	}
	if err := d.grades.UpdateGrade(ctx, row); err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	return nil
}

// encryptGradeFields rewrites all encrypted columns of a grade row under one
// fresh nonce. The nonce is generated up front; a pending course may have an
// empty letter and must still get a usable row nonce.
func (d *changeDetector) encryptGradeFields(row *models.Grade, course portal.ParsedCourse) error {
	nonce, err := d.vault.NewNonce()
	if err != nil {
		return fmt.Errorf("encrypt grade: %w", err)
	}
	letter, err := d.vault.EncryptWithNonce(course.Letter, nonce)
	if err != nil {
		return fmt.Errorf("encrypt grade: %w", err)
	}
	name, err := d.vault.EncryptWithNonce(course.CourseName, nonce)
	if err != nil {
		return fmt.Errorf("encrypt grade: %w", err)
	}
	credit, err := d.vault.EncryptWithNonce(course.CreditHour, nonce)
	if err != nil {
		return fmt.Errorf("encrypt grade: %w", err)
	}
	ects, err := d.vault.EncryptWithNonce(course.ECTS, nonce)
	if err != nil {
		return fmt.Errorf("encrypt grade: %w", err)
	}

	row.Letter = letter
	row.CourseName = name
	row.CreditHour = credit
	row.ECTS = ects
	row.Nonce = nonce
	return nil
}

func (d *changeDetector) encryptSummary(row *models.SemesterResult, summary portal.ParsedSummary) error {
	nonce, err := d.vault.NewNonce()
	if err != nil {
		return fmt.Errorf("encrypt semester result: %w", err)
	}
	sgpa, err := d.vault.EncryptWithNonce(summary.SGPA, nonce)
	if err != nil {
		return fmt.Errorf("encrypt semester result: %w", err)
	}
	cgpa, err := d.vault.EncryptWithNonce(summary.CGPA, nonce)
	if err != nil {
		return fmt.Errorf("encrypt semester result: %w", err)
	}
	status, err := d.vault.EncryptWithNonce(summary.Status, nonce)
	if err != nil {
		return fmt.Errorf("encrypt semester result: %w", err)
	}

	row.SGPA = sgpa
	row.CGPA = cgpa
	row.Status = status
	row.Nonce = nonce
	return nil
}

// assessmentDigest normalizes the breakdown so component order never affects
// the hash, and returns both the hash and the canonical payload to store.
func assessmentDigest(detail portal.Detail) (string, []byte, error) {
	components := make([]portal.Component, len(detail.Components))
	copy(components, detail.Components)
	sort.Slice(components, func(i, j int) bool {
		return components[i].Name < components[j].Name
	})

	canonical := portal.Detail{
		Course:     detail.Course,
		Components: components,
		Total:      detail.Total,
	}

	payload, err := json.Marshal(canonical)
	if err != nil {
		return "", nil, fmt.Errorf("encode assessment: %w", err)
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), payload, nil
}

func hasScoredComponent(detail portal.Detail) bool {
	for _, component := range detail.Components {
		result := strings.TrimSpace(component.Result)
		if result != "" && !notGraded(result) {
			return true
		}
	}
	return false
}

func notGraded(letter string) bool {
	trimmed := strings.TrimSpace(letter)
	return trimmed == "" || strings.EqualFold(trimmed, models.NotGraded)
}

func summaryMessage(summary portal.ParsedSummary) string {
	parts := []string{fmt.Sprintf("Semester results updated for %s %s", summary.AcademicYear, summary.Semester)}
	if summary.SGPA != "" {
		parts = append(parts, "SGPA "+summary.SGPA)
	}
	if summary.CGPA != "" {
		parts = append(parts, "CGPA "+summary.CGPA)
	}
	if summary.Status != "" {
		parts = append(parts, summary.Status)
	}
	return strings.Join(parts, ", ")
}

// summaryUpdateMessage carries the term-GPA movement when the SGPA itself
// changed; other field changes fall back to the full summary.
func summaryUpdateMessage(summary portal.ParsedSummary, oldSGPA string) string {
	if oldSGPA != "" && summary.SGPA != "" && oldSGPA != summary.SGPA {
		return fmt.Sprintf("SGPA updated for %s %s: %s -> %s", summary.AcademicYear, summary.Semester, oldSGPA, summary.SGPA)
	}
	return summaryMessage(summary)
}
