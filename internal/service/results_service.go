package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gradewatch-api/internal/crypto"
	"github.com/noah-isme/gradewatch-api/internal/dto"
	"github.com/noah-isme/gradewatch-api/internal/models"
	"github.com/noah-isme/gradewatch-api/internal/portal"
	"github.com/noah-isme/gradewatch-api/internal/repository"
)

// ErrAssessmentNotFound is returned when no breakdown is stored for a course.
var ErrAssessmentNotFound = errors.New("assessment not found")

// ResultsService is the decrypted read model over stored grades.
type ResultsService interface {
	GetResults(ctx context.Context, chatID int64, yearScope string) ([]dto.TermResultResponse, error)
	GetAssessment(ctx context.Context, chatID int64, courseCode string) (dto.AssessmentResponse, error)
}

type resultsService struct {
	grades repository.GradeRepository
	vault  *crypto.Vault
	logger zerolog.Logger
}

// NewResultsService constructs the results read model.
func NewResultsService(grades repository.GradeRepository, vault *crypto.Vault, logger zerolog.Logger) ResultsService {
	return &resultsService{
		grades: grades,
		vault:  vault,
		logger: logger.With().Str("component", "results_service").Logger(),
	}
}

// GetResults returns stored grades grouped by term, oldest term first. A
// non-empty year scope keeps only terms whose year level or academic year
// matches it.
func (s *resultsService) GetResults(ctx context.Context, chatID int64, yearScope string) ([]dto.TermResultResponse, error) {
	grades, err := s.grades.ListGrades(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	summaries, err := s.grades.ListSemesterResults(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list semester results: %w", err)
	}

	type termKey struct {
		academicYear string
		semester     string
	}

	terms := make(map[termKey]*dto.TermResultResponse)
	order := make([]termKey, 0)

	termFor := func(key termKey, yearLevel string) *dto.TermResultResponse {
		if term, ok := terms[key]; ok {
			return term
		}
		term := &dto.TermResultResponse{
			AcademicYear: key.academicYear,
			Semester:     key.semester,
			YearLevel:    yearLevel,
			Grades:       []dto.GradeResponse{},
		}
		terms[key] = term
		order = append(order, key)
		return term
	}

	yearNumbers := make(map[termKey]int)

	for _, grade := range grades {
		key := termKey{grade.AcademicYear, grade.Semester}
		term := termFor(key, grade.YearLevel)
		yearNumbers[key] = grade.YearNumber

		row, err := s.decryptGrade(grade)
		if err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", chatID).Str("course", grade.CourseCode).Msg("skipping undecryptable grade row")
			continue
		}
		term.Grades = append(term.Grades, row)
	}

	for _, summary := range summaries {
		key := termKey{summary.AcademicYear, summary.Semester}
		term := termFor(key, summary.YearLevel)
		yearNumbers[key] = summary.YearNumber

		sgpa, err := s.vault.Decrypt(summary.SGPA, summary.Nonce)
		if err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("skipping undecryptable semester result")
			continue
		}
		cgpa, err := s.vault.Decrypt(summary.CGPA, summary.Nonce)
		if err != nil {
			continue
		}
		status, err := s.vault.Decrypt(summary.Status, summary.Nonce)
		if err != nil {
			continue
		}

		term.SGPA = sgpa
		term.CGPA = cgpa
		term.Status = status
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if yearNumbers[a] != yearNumbers[b] {
			return yearNumbers[a] < yearNumbers[b]
		}
		if a.academicYear != b.academicYear {
			return a.academicYear < b.academicYear
		}
		return a.semester < b.semester
	})

	responses := make([]dto.TermResultResponse, 0, len(order))
	for _, key := range order {
		term := terms[key]
		if !matchesYear(term.YearLevel, term.AcademicYear, yearScope) {
			continue
		}
		responses = append(responses, *term)
	}
	return responses, nil
}

func (s *resultsService) GetAssessment(ctx context.Context, chatID int64, courseCode string) (dto.AssessmentResponse, error) {
	row, err := s.grades.FindAssessment(ctx, chatID, courseCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentResponse{}, ErrAssessmentNotFound
		}
		return dto.AssessmentResponse{}, fmt.Errorf("lookup assessment: %w", err)
	}

	payload, err := s.vault.Decrypt(row.Payload, row.Nonce)
	if err != nil {
		return dto.AssessmentResponse{}, fmt.Errorf("decrypt assessment: %w", err)
	}

	var detail portal.Detail
	if err := json.Unmarshal([]byte(payload), &detail); err != nil {
		return dto.AssessmentResponse{}, fmt.Errorf("decode assessment: %w", err)
	}

	components := make([]dto.AssessmentComponentResponse, 0, len(detail.Components))
	for _, component := range detail.Components {
		components = append(components, dto.AssessmentComponentResponse{
			Name:   component.Name,
			Weight: component.Weight,
			Result: component.Result,
		})
	}

	return dto.AssessmentResponse{
		CourseCode: row.CourseCode,
		Components: components,
		Total:      detail.Total,
	}, nil
}

func (s *resultsService) decryptGrade(grade models.Grade) (dto.GradeResponse, error) {
	letter, err := s.vault.Decrypt(grade.Letter, grade.Nonce)
	if err != nil {
		return dto.GradeResponse{}, err
	}
	name, err := s.vault.Decrypt(grade.CourseName, grade.Nonce)
	if err != nil {
		return dto.GradeResponse{}, err
	}
	credit, err := s.vault.Decrypt(grade.CreditHour, grade.Nonce)
	if err != nil {
		return dto.GradeResponse{}, err
	}
	ects, err := s.vault.Decrypt(grade.ECTS, grade.Nonce)
	if err != nil {
		return dto.GradeResponse{}, err
	}

	return dto.GradeResponse{
		CourseCode: grade.CourseCode,
		CourseName: name,
		Letter:     letter,
		CreditHour: credit,
		ECTS:       ects,
	}, nil
}
