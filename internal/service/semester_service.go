package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/portal-api/internal/dto"
	"github.com/noah-isme/portal-api/internal/models"
	"github.com/noah-isme/portal-api/internal/timeline"
	appErrors "github.com/noah-isme/portal-api/pkg/errors"
)

type semesterRepository interface {
	List(ctx context.Context, filter models.SemesterFilter) ([]models.Semester, int, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	FindActive(ctx context.Context) (*models.Semester, error)
	Create(ctx context.Context, semester *models.Semester) error
}

// SemesterService orchestrates semester workflows.
type SemesterService struct {
	repo      semesterRepository
	validator *validator.Validate
	logger    *zap.Logger
	loc       *time.Location
}

// NewSemesterService creates a new semester service instance.
func NewSemesterService(repo semesterRepository, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *SemesterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SemesterService{repo: repo, validator: validate, logger: logger, loc: loc}
}

// List returns paginated semesters.
func (s *SemesterService) List(ctx context.Context, query dto.SemesterQuery) ([]models.Semester, *models.Pagination, error) {
	page, size := models.NormalisePage(query.Page, query.PageSize)
	filter := models.SemesterFilter{IsActive: query.Active, Page: page, PageSize: size, SortBy: query.SortBy, SortOrder: query.SortOrder}
	semesters, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	return semesters, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a semester by ID.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester")
	}
	return semester, nil
}

// GetActive returns the currently active semester.
func (s *SemesterService) GetActive(ctx context.Context) (*models.Semester, error) {
	semester, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "active semester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active semester")
	}
	return semester, nil
}

// Range resolves a semester id to the calendar dates it spans.
func (s *SemesterService) Range(ctx context.Context, id string) (timeline.DateRange, error) {
	semester, err := s.Get(ctx, id)
	if err != nil {
		return timeline.DateRange{}, err
	}
	return semester.Range(s.loc), nil
}

// Create validates and stores a semester. Dates follow the same ISO-8601 rules
// as course dates and are rejected when malformed.
func (s *SemesterService) Create(ctx context.Context, req dto.SemesterRequest) (*models.Semester, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}
	start, end, err := parseInterval(req.StartDate, req.EndDate, "", s.loc)
	if err != nil {
		return nil, err
	}

	semester := &models.Semester{Name: req.Name, StartDate: start, EndDate: end, IsActive: req.IsActive}
	if err := s.repo.Create(ctx, semester); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create semester")
	}
	s.logger.Info("semester created", zap.String("semester_id", semester.ID), zap.Bool("active", semester.IsActive))
	return semester, nil
}

// parseInterval parses a start/end pair and requires start <= end. Failures
// come back as a 400 naming the offending field.
func parseInterval(rawStart, rawEnd, recordID string, loc *time.Location) (time.Time, time.Time, error) {
	var issues []timeline.ValidationIssue
	start, err := timeline.ParseInstant(rawStart, loc)
	if err != nil {
		issues = append(issues, dateIssue(recordID, "startDate", rawStart, err))
	}
	end, err := timeline.ParseInstant(rawEnd, loc)
	if err != nil {
		issues = append(issues, dateIssue(recordID, "endDate", rawEnd, err))
	}
	if len(issues) == 0 && start.After(end) {
		issues = append(issues, dateIssue(recordID, "endDate", rawEnd, errors.New("end date is before start date")))
	}
	if len(issues) > 0 {
		return time.Time{}, time.Time{}, appErrors.FromValidation(&timeline.ValidationError{Issues: issues})
	}
	return start, end, nil
}

func dateIssue(recordID, field, value string, err error) timeline.ValidationIssue {
	return timeline.ValidationIssue{
		Kind:     timeline.IssueMalformedDate,
		RecordID: recordID,
		Field:    field,
		Index:    -1,
		Value:    value,
		Reason:   err.Error(),
	}
}
