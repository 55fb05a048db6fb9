package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/portal-api/internal/dto"
	"github.com/noah-isme/portal-api/internal/models"
	"github.com/noah-isme/portal-api/internal/timeline"
	appErrors "github.com/noah-isme/portal-api/pkg/errors"
)

// scheduleCachePattern matches every cached schedule view.
const scheduleCachePattern = "schedule:*"

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListAll(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course, meetings []models.CourseMeeting) error
	Update(ctx context.Context, course *models.Course, meetings []models.CourseMeeting) error
	SetAdministrativeStatus(ctx context.Context, id string, status *string) error
	SoftDelete(ctx context.Context, id string) error
	ListMeetings(ctx context.Context, courseIDs []string) ([]models.CourseMeeting, error)
	ReplaceMeetings(ctx context.Context, courseID string, meetings []models.CourseMeeting) error
}

type enrollmentRepository interface {
	Enroll(ctx context.Context, enrollment *models.Enrollment) (bool, error)
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	CountByCourse(ctx context.Context, courseID string) (int, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error)
}

// CourseService manages courses and their weekly patterns. Course status is
// never stored: every response derives it from the request time.
type CourseService struct {
	courses     courseRepository
	enrollments enrollmentRepository
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	loc         *time.Location
	now         func() time.Time
}

// NewCourseService constructs the service.
func NewCourseService(courses courseRepository, enrollments enrollmentRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, loc *time.Location) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CourseService{
		courses:     courses,
		enrollments: enrollments,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		loc:         loc,
		now:         time.Now,
	}
}

// List returns the courses visible to viewer with their derived status.
func (s *CourseService) List(ctx context.Context, viewer models.Viewer, query dto.CourseQuery) ([]dto.CourseResponse, *models.Pagination, error) {
	now := s.now()
	page, size := models.NormalisePage(query.Page, query.PageSize)
	filter := visibleCourses(viewer)
	filter.SemesterID = query.SemesterID
	filter.Search = query.Search
	filter.Page = page
	filter.PageSize = size
	filter.SortBy = query.SortBy
	filter.SortOrder = query.SortOrder

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	meetings, err := s.meetingsByCourse(ctx, courses)
	if err != nil {
		return nil, nil, err
	}

	out := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		resp, _, _ := s.present(course, meetings[course.ID], now)
		out = append(out, resp)
	}
	return out, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one course with its timeline. Students only see courses they
// are enrolled in.
func (s *CourseService) Get(ctx context.Context, viewer models.Viewer, id string) (*dto.CourseDetailResponse, error) {
	now := s.now()
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer.IsStudent() {
		enrolled, err := s.enrollments.IsEnrolled(ctx, id, viewer.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		if !enrolled {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
	}
	return s.detail(ctx, *course, now)
}

// Create stores a course with its weekly pattern. Teachers always create
// courses they teach; admins must name the instructor.
func (s *CourseService) Create(ctx context.Context, actor models.Viewer, req dto.CourseRequest) (*dto.CourseDetailResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if actor.IsTeacher() {
		req.InstructorID = actor.UserID
	}
	if req.InstructorID == "" {
		err := appErrors.Clone(appErrors.ErrValidation, "instructorId is required")
		err.Field = "instructorId"
		return nil, err
	}

	decoded, meetings, err := s.decode("", req.StartDate, req.EndDate, req.Schedule)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCodeAvailable(ctx, req.Code, ""); err != nil {
		return nil, err
	}

	course := &models.Course{
		Code:         strings.TrimSpace(req.Code),
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		InstructorID: req.InstructorID,
		Location:     req.Location,
		SemesterID:   req.SemesterID,
		StartDate:    decoded.StartDate,
		EndDate:      decoded.EndDate,
	}
	if err := s.courses.Create(ctx, course, meetings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.cache.Invalidate(ctx, scheduleCachePattern)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.Int("meetings", len(meetings)))

	stored, err := s.load(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, *stored, s.now())
}

// Update replaces the descriptive fields, validity window and, when the
// payload carries one, the weekly pattern.
func (s *CourseService) Update(ctx context.Context, actor models.Viewer, id string, req dto.CourseRequest) (*dto.CourseDetailResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.loadForWrite(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	decoded, meetings, err := s.decode(id, req.StartDate, req.EndDate, req.Schedule)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCodeAvailable(ctx, req.Code, id); err != nil {
		return nil, err
	}

	course.Code = strings.TrimSpace(req.Code)
	course.Name = strings.TrimSpace(req.Name)
	course.Description = req.Description
	course.Location = req.Location
	course.SemesterID = req.SemesterID
	course.StartDate = decoded.StartDate
	course.EndDate = decoded.EndDate
	if actor.IsAdmin() && req.InstructorID != "" {
		course.InstructorID = req.InstructorID
	}
	if req.Schedule == nil {
		meetings = nil
	}
	defer s.cache.Invalidate(ctx, scheduleCachePattern)
	if err := s.courses.Update(ctx, course, meetings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	stored, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, *stored, s.now())
}

// ReplaceMeetings swaps the weekly pattern. Every entry must be valid: on
// write a malformed entry rejects the request instead of being skipped.
func (s *CourseService) ReplaceMeetings(ctx context.Context, actor models.Viewer, id string, req dto.MeetingsRequest) (*dto.CourseDetailResponse, error) {
	course, err := s.loadForWrite(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	meetings, err := meetingsFromRecords(id, req.Schedule)
	if err != nil {
		return nil, err
	}
	if err := s.courses.ReplaceMeetings(ctx, id, meetings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course schedule")
	}
	s.cache.Invalidate(ctx, scheduleCachePattern)
	return s.detail(ctx, *course, s.now())
}

// SetStatus applies an administrative override (cancelled or paused).
func (s *CourseService) SetStatus(ctx context.Context, actor models.Viewer, id string, req dto.CourseStatusRequest) (*dto.CourseDetailResponse, error) {
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be cancelled or paused")
	}
	return s.writeStatus(ctx, actor, id, &req.Status)
}

// ClearStatus removes the override so the status is derived from time again.
func (s *CourseService) ClearStatus(ctx context.Context, actor models.Viewer, id string) (*dto.CourseDetailResponse, error) {
	return s.writeStatus(ctx, actor, id, nil)
}

func (s *CourseService) writeStatus(ctx context.Context, actor models.Viewer, id string, status *string) (*dto.CourseDetailResponse, error) {
	course, err := s.loadForWrite(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.courses.SetAdministrativeStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course status")
	}
	course.AdministrativeStatus = status
	s.cache.Invalidate(ctx, scheduleCachePattern)
	s.logger.Info("course status override changed", zap.String("course_id", id), zap.Stringp("administrative_status", status))
	return s.detail(ctx, *course, s.now())
}

// Delete hides a course.
func (s *CourseService) Delete(ctx context.Context, actor models.Viewer, id string) error {
	if _, err := s.loadForWrite(ctx, actor, id); err != nil {
		return err
	}
	if err := s.courses.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.cache.Invalidate(ctx, scheduleCachePattern)
	return nil
}

// Enroll registers students; students already enrolled are skipped.
func (s *CourseService) Enroll(ctx context.Context, id string, req dto.EnrollRequest) (*dto.EnrollResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	resp := &dto.EnrollResponse{}
	for _, studentID := range req.StudentIDs {
		created, err := s.enrollments.Enroll(ctx, &models.Enrollment{CourseID: id, StudentID: studentID})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
		}
		if created {
			resp.Enrolled++
		} else {
			resp.Skipped++
		}
	}
	if resp.Enrolled > 0 {
		s.cache.Invalidate(ctx, scheduleCachePattern)
	}
	return resp, nil
}

// Roster lists the students enrolled in a course.
func (s *CourseService) Roster(ctx context.Context, actor models.Viewer, id string) ([]models.EnrollmentDetail, error) {
	if _, err := s.loadForWrite(ctx, actor, id); err != nil {
		return nil, err
	}
	roster, err := s.enrollments.ListByCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return roster, nil
}

func (s *CourseService) load(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// loadForWrite loads a course the actor may modify: admins any, teachers their own.
func (s *CourseService) loadForWrite(ctx context.Context, actor models.Viewer, id string) (*models.Course, error) {
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || (actor.IsTeacher() && course.InstructorID == actor.UserID) {
		return course, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
}

func (s *CourseService) ensureCodeAvailable(ctx context.Context, code, excludeID string) error {
	exists, err := s.courses.ExistsByCode(ctx, strings.TrimSpace(code), excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if exists {
		conflict := appErrors.Clone(appErrors.ErrConflict, "course code already in use")
		conflict.Field = "code"
		return conflict
	}
	return nil
}

// decode validates dates and pattern through the timeline decoder.
func (s *CourseService) decode(id, startDate, endDate string, schedule []timeline.PatternRecord) (timeline.Course, []models.CourseMeeting, error) {
	decoded, issues, err := timeline.DecodeCourse(timeline.CourseRecord{
		ID:        id,
		StartDate: startDate,
		EndDate:   endDate,
		Schedule:  schedule,
	}, s.loc)
	if err != nil {
		return timeline.Course{}, nil, appErrors.FromError(err)
	}
	if len(issues) > 0 {
		return timeline.Course{}, nil, appErrors.FromValidation(&timeline.ValidationError{Issues: issues})
	}
	return decoded, meetingsFromPatterns(decoded.Pattern), nil
}

func meetingsFromRecords(courseID string, schedule []timeline.PatternRecord) ([]models.CourseMeeting, error) {
	patterns, issues := timeline.DecodePattern(courseID, schedule)
	if len(issues) > 0 {
		return nil, appErrors.FromValidation(&timeline.ValidationError{Issues: issues})
	}
	return meetingsFromPatterns(patterns), nil
}

func meetingsFromPatterns(patterns []timeline.MeetingPattern) []models.CourseMeeting {
	meetings := make([]models.CourseMeeting, 0, len(patterns))
	for _, p := range patterns {
		m := models.CourseMeeting{DayOfWeek: int(p.Day), StartTime: p.Start.String(), EndTime: p.End.String()}
		if p.Room != "" {
			room := p.Room
			m.Room = &room
		}
		meetings = append(meetings, m)
	}
	return meetings
}

func (s *CourseService) meetingsByCourse(ctx context.Context, courses []models.Course) (map[string][]models.CourseMeeting, error) {
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	meetings, err := s.courses.ListMeetings(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course schedules")
	}
	grouped := make(map[string][]models.CourseMeeting, len(courses))
	for _, m := range meetings {
		grouped[m.CourseID] = append(grouped[m.CourseID], m)
	}
	return grouped, nil
}

func (s *CourseService) detail(ctx context.Context, course models.Course, now time.Time) (*dto.CourseDetailResponse, error) {
	meetings, err := s.meetingsByCourse(ctx, []models.Course{course})
	if err != nil {
		return nil, err
	}
	enrolled, err := s.enrollments.CountByCourse(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	resp, tl, issues := s.present(course, meetings[course.ID], now)
	return &dto.CourseDetailResponse{
		CourseResponse: resp,
		Timeline:       timeline.DescribeCourse(tl, now),
		EnrolledCount:  enrolled,
		Issues:         issues,
	}, nil
}

// present derives the status of a stored course. Stored meetings that no
// longer parse are logged and reported.
func (s *CourseService) present(course models.Course, meetings []models.CourseMeeting, now time.Time) (dto.CourseResponse, timeline.Course, []timeline.ValidationIssue) {
	tl, issues := course.Timeline(meetings)
	logIssues(s.logger, issues)
	s.metrics.ObserveValidationIssues(issues)

	schedule := make([]timeline.PatternRecord, 0, len(meetings))
	for _, m := range meetings {
		schedule = append(schedule, m.PatternRecord())
	}
	return dto.CourseResponse{
		Course:   course,
		Status:   timeline.DeriveCourseStatus(tl, now),
		Schedule: schedule,
	}, tl, issues
}

// visibleCourses scopes a course filter to what viewer may see.
func visibleCourses(viewer models.Viewer) models.CourseFilter {
	switch {
	case viewer.IsStudent():
		return models.CourseFilter{StudentID: viewer.UserID}
	case viewer.IsTeacher():
		return models.CourseFilter{InstructorID: viewer.UserID}
	default:
		return models.CourseFilter{}
	}
}

func logIssues(logger *zap.Logger, issues []timeline.ValidationIssue) {
	for _, issue := range issues {
		logger.Warn("skipping invalid timeline entry",
			zap.String("course_id", issue.RecordID),
			zap.String("kind", string(issue.Kind)),
			zap.String("field", issue.Field),
			zap.Int("index", issue.Index),
			zap.String("reason", issue.Reason),
		)
	}
}
