package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/portal-api/internal/dto"
	"github.com/noah-isme/portal-api/internal/models"
	"github.com/noah-isme/portal-api/internal/timeline"
	appErrors "github.com/noah-isme/portal-api/pkg/errors"
)

const defaultMaxScore = 100

type assignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
}

type submissionRepository interface {
	Upsert(ctx context.Context, submission *models.Submission) error
	ListByAssignments(ctx context.Context, assignmentIDs []string, studentID string) ([]models.Submission, error)
	FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	Grade(ctx context.Context, id string, score float64, feedback *string, gradedBy string, gradedAt time.Time) error
}

type assignmentCourseReader interface {
	ListAll(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type assignmentEnrollmentReader interface {
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	CountByCourse(ctx context.Context, courseID string) (int, error)
}

// AssignmentService serves assignments annotated with the viewer's derived
// status and accepts submissions.
type AssignmentService struct {
	assignments assignmentRepository
	submissions submissionRepository
	courses     assignmentCourseReader
	enrollments assignmentEnrollmentReader
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	loc         *time.Location
	now         func() time.Time
}

// NewAssignmentService constructs the service.
func NewAssignmentService(assignments assignmentRepository, submissions submissionRepository, courses assignmentCourseReader, enrollments assignmentEnrollmentReader, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AssignmentService{
		assignments: assignments,
		submissions: submissions,
		courses:     courses,
		enrollments: enrollments,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		loc:         loc,
		now:         time.Now,
	}
}

// List returns the assignments of the courses visible to viewer. Status is
// derived for the viewer; filtering, search and paging run on the derived views.
func (s *AssignmentService) List(ctx context.Context, viewer models.Viewer, query dto.AssignmentQuery) ([]timeline.AssignmentView, *models.Pagination, error) {
	now := s.now()
	statusFilter, err := timeline.ParseStatusFilter(query.Status)
	if err != nil {
		return nil, nil, validationError("status", err.Error())
	}
	ascending, err := parseDueDateSort(query.Sort, query.Order)
	if err != nil {
		return nil, nil, err
	}

	filter := visibleCourses(viewer)
	if query.CourseID != "" {
		filter.IDs = []string{query.CourseID}
	}
	courses, err := s.courses.ListAll(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	courseIDs := make([]string, 0, len(courses))
	for _, c := range courses {
		courseIDs = append(courseIDs, c.ID)
	}

	rows, err := s.assignments.List(ctx, models.AssignmentFilter{CourseIDs: courseIDs})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	subs, err := s.viewerSubmissions(ctx, viewer, rows)
	if err != nil {
		return nil, nil, err
	}

	items := make([]timeline.Assignment, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Timeline(subs))
	}
	views := timeline.Annotate(items, studentScope(viewer), now)
	views = timeline.FilterAssignmentsByStatus(views, statusFilter)
	views = timeline.SearchAssignments(views, query.Search)
	views = timeline.SortAssignmentsByDueDate(views, ascending)

	page, size := models.NormalisePage(query.Page, query.PageSize)
	total := len(views)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return views[start:end], &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one assignment annotated for viewer.
func (s *AssignmentService) Get(ctx context.Context, viewer models.Viewer, id string) (*timeline.AssignmentView, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(ctx, viewer, assignment); err != nil {
		return nil, err
	}
	subs, err := s.viewerSubmissions(ctx, viewer, []models.Assignment{*assignment})
	if err != nil {
		return nil, err
	}
	view := timeline.View(assignment.Timeline(subs), studentScope(viewer), s.now())
	return &view, nil
}

// Create stores a new assignment on a course the actor teaches.
func (s *AssignmentService) Create(ctx context.Context, actor models.Viewer, req dto.AssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if err := s.authorizeCourse(ctx, actor, req.CourseID); err != nil {
		return nil, err
	}
	due, err := s.parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		CourseID:            req.CourseID,
		Title:               strings.TrimSpace(req.Title),
		Description:         req.Description,
		DueDate:             due,
		AllowLateSubmission: req.AllowLateSubmission,
		IsActive:            true,
		MaxScore:            req.MaxScore,
		CreatedBy:           actor.UserID,
	}
	if req.IsActive != nil {
		assignment.IsActive = *req.IsActive
	}
	if assignment.MaxScore <= 0 {
		assignment.MaxScore = defaultMaxScore
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	s.logger.Info("assignment created", zap.String("assignment_id", assignment.ID), zap.String("course_id", assignment.CourseID))
	return assignment, nil
}

// Update applies the non-nil fields of req.
func (s *AssignmentService) Update(ctx context.Context, actor models.Viewer, id string, req dto.AssignmentUpdateRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCourse(ctx, actor, assignment.CourseID); err != nil {
		return nil, err
	}

	if req.Title != nil {
		assignment.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		assignment.Description = req.Description
	}
	if req.DueDate != nil {
		due, err := s.parseDueDate(*req.DueDate)
		if err != nil {
			return nil, err
		}
		assignment.DueDate = due
	}
	if req.AllowLateSubmission != nil {
		assignment.AllowLateSubmission = *req.AllowLateSubmission
	}
	if req.IsActive != nil {
		assignment.IsActive = *req.IsActive
	}
	if req.MaxScore != nil {
		assignment.MaxScore = *req.MaxScore
	}
	if err := s.assignments.Update(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	return assignment, nil
}

// Submit stores the student's work. Permission is decided against the clock
// at the moment of the call; a late submission is kept only when the
// assignment allows it.
func (s *AssignmentService) Submit(ctx context.Context, student models.Viewer, id string, req dto.SubmitRequest) (*dto.SubmitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if !student.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit")
	}
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(ctx, student, assignment); err != nil {
		return nil, err
	}

	now := s.now()
	decision := timeline.CanSubmit(assignment.Timeline(nil), now)
	if !decision.Allowed {
		s.metrics.RecordSubmission("rejected")
		return nil, appErrors.Clone(appErrors.ErrSubmissionClosed, decision.Reason)
	}

	submission := &models.Submission{
		AssignmentID:   assignment.ID,
		StudentID:      student.UserID,
		Content:        req.Content,
		SubmissionDate: now.UTC(),
	}
	if err := s.submissions.Upsert(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}

	view := timeline.View(assignment.Timeline([]models.Submission{*submission}), student.UserID, now)
	outcome := "on_time"
	if view.IsLate {
		outcome = "late"
	}
	s.metrics.RecordSubmission(outcome)
	s.logger.Info("submission stored",
		zap.String("assignment_id", assignment.ID),
		zap.String("student_id", student.UserID),
		zap.Int("attempt", submission.AttemptNumber),
		zap.Bool("late", view.IsLate),
	)
	return &dto.SubmitResponse{Submission: *submission, View: view}, nil
}

// Grade scores a student's submission.
func (s *AssignmentService) Grade(ctx context.Context, actor models.Viewer, id, studentID string, req dto.GradeRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCourse(ctx, actor, assignment.CourseID); err != nil {
		return nil, err
	}
	if req.Score > assignment.MaxScore {
		return nil, validationError("score", fmt.Sprintf("score exceeds the maximum of %g", assignment.MaxScore))
	}

	submission, err := s.submissions.FindByAssignmentAndStudent(ctx, id, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	gradedAt := s.now().UTC()
	if err := s.submissions.Grade(ctx, submission.ID, req.Score, req.Feedback, actor.UserID, gradedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}
	score := req.Score
	grader := actor.UserID
	submission.Score = &score
	submission.Feedback = req.Feedback
	submission.GradedAt = &gradedAt
	submission.GradedBy = &grader
	return submission, nil
}

// Summary counts the submissions of one assignment against its enrollment.
func (s *AssignmentService) Summary(ctx context.Context, actor models.Viewer, id string) (*dto.AssignmentSummaryResponse, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCourse(ctx, actor, assignment.CourseID); err != nil {
		return nil, err
	}
	subs, err := s.submissions.ListByAssignments(ctx, []string{id}, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	enrolled, err := s.enrollments.CountByCourse(ctx, assignment.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	return &dto.AssignmentSummaryResponse{
		Assignment:  *assignment,
		Enrolled:    enrolled,
		Summary:     timeline.SummarizeSubmissions(assignment.Timeline(subs), enrolled, s.now()),
		Submissions: subs,
	}, nil
}

func (s *AssignmentService) load(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// ensureVisible hides assignments of courses the viewer neither attends nor teaches.
func (s *AssignmentService) ensureVisible(ctx context.Context, viewer models.Viewer, assignment *models.Assignment) error {
	switch {
	case viewer.IsAdmin():
		return nil
	case viewer.IsStudent():
		enrolled, err := s.enrollments.IsEnrolled(ctx, assignment.CourseID, viewer.UserID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		if !enrolled {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil
	default:
		course, err := s.courses.FindByID(ctx, assignment.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if course.InstructorID != viewer.UserID {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil
	}
}

// authorizeCourse admits admins and the course's instructor.
func (s *AssignmentService) authorizeCourse(ctx context.Context, actor models.Viewer, courseID string) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor.IsAdmin() || (actor.IsTeacher() && course.InstructorID == actor.UserID) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
}

// viewerSubmissions loads the student's own submissions for rows. Staff views
// carry no submission, so nothing is loaded for them.
func (s *AssignmentService) viewerSubmissions(ctx context.Context, viewer models.Viewer, rows []models.Assignment) ([]models.Submission, error) {
	if len(rows) == 0 || !viewer.IsStudent() {
		return nil, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	subs, err := s.submissions.ListByAssignments(ctx, ids, viewer.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return subs, nil
}

func (s *AssignmentService) parseDueDate(raw string) (time.Time, error) {
	due, err := timeline.ParseInstant(raw, s.loc)
	if err != nil {
		return time.Time{}, appErrors.FromValidation(&timeline.ValidationError{Issues: []timeline.ValidationIssue{dateIssue("", "dueDate", raw, err)}})
	}
	return due, nil
}

// studentScope is the student id whose submission drives the derived status;
// staff see assignments as if nobody had submitted.
func studentScope(viewer models.Viewer) string {
	if viewer.IsStudent() {
		return viewer.UserID
	}
	return ""
}

func parseDueDateSort(sortBy, order string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(sortBy)) {
	case "", "duedate", "due_date":
	default:
		return false, validationError("sort", fmt.Sprintf("unsupported sort field %q", sortBy))
	}
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "asc":
		return true, nil
	case "desc":
		return false, nil
	default:
		return false, validationError("order", fmt.Sprintf("unsupported sort order %q", order))
	}
}
