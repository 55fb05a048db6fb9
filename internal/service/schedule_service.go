package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/portal-api/internal/dto"
	"github.com/noah-isme/portal-api/internal/models"
	"github.com/noah-isme/portal-api/internal/timeline"
	appErrors "github.com/noah-isme/portal-api/pkg/errors"
)

type scheduleCourseRepository interface {
	ListAll(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	ListMeetings(ctx context.Context, courseIDs []string) ([]models.CourseMeeting, error)
}

type semesterRanger interface {
	Range(ctx context.Context, id string) (timeline.DateRange, error)
}

// ScheduleConfig tunes schedule queries.
type ScheduleConfig struct {
	Location     *time.Location
	MaxRangeDays int
	CacheTTL     time.Duration
}

// ScheduleService materialises the weekly patterns of the courses a viewer
// can see into dated occurrences.
type ScheduleService struct {
	courses   scheduleCourseRepository
	semesters semesterRanger
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ScheduleConfig
	now       func() time.Time
}

// NewScheduleService constructs the service.
func NewScheduleService(courses scheduleCourseRepository, semesters semesterRanger, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg ScheduleConfig) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 366
	}
	return &ScheduleService{courses: courses, semesters: semesters, cache: cache, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// Query returns the schedule for viewer, served from cache when possible. The
// second result reports a cache hit.
func (s *ScheduleService) Query(ctx context.Context, viewer models.Viewer, q dto.ScheduleQuery) (*dto.ScheduleResponse, bool, error) {
	now := s.now()
	r, err := s.ResolveRange(ctx, q, now)
	if err != nil {
		return nil, false, err
	}

	key := s.cacheKey(viewer, q, r, now)
	var cached dto.ScheduleResponse
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	resp, courses, err := s.materialize(ctx, viewer, q, r, now)
	if err != nil {
		return nil, false, err
	}
	if ttl := s.cacheTTL(courses, now); ttl > 0 {
		s.cache.Set(ctx, key, resp, ttl)
	}
	return resp, false, nil
}

// Build materialises the schedule without touching the cache.
func (s *ScheduleService) Build(ctx context.Context, viewer models.Viewer, q dto.ScheduleQuery) (*dto.ScheduleResponse, error) {
	now := s.now()
	r, err := s.ResolveRange(ctx, q, now)
	if err != nil {
		return nil, err
	}
	resp, _, err := s.materialize(ctx, viewer, q, r, now)
	return resp, err
}

// ResolveRange reduces the accepted query shapes to one calendar date range:
// a single date, a start/end pair, a year/month pair, or a semester. With no
// parameters the range is today. An inverted start/end pair is an empty range.
func (s *ScheduleService) ResolveRange(ctx context.Context, q dto.ScheduleQuery, now time.Time) (timeline.DateRange, error) {
	loc := s.cfg.Location
	hasDate := strings.TrimSpace(q.Date) != ""
	hasSpan := strings.TrimSpace(q.StartDate) != "" || strings.TrimSpace(q.EndDate) != ""
	hasMonth := q.Year != 0 || q.Month != 0

	shapes := 0
	for _, set := range []bool{hasDate, hasSpan, hasMonth} {
		if set {
			shapes++
		}
	}
	if shapes > 1 {
		return timeline.DateRange{}, validationError("date", "use only one of date, startDate/endDate or year/month")
	}

	var r timeline.DateRange
	switch {
	case hasDate:
		day, err := timeline.ParseInstant(q.Date, loc)
		if err != nil {
			return timeline.DateRange{}, appErrors.FromValidation(&timeline.ValidationError{Issues: []timeline.ValidationIssue{dateIssue("", "date", q.Date, err)}})
		}
		r = timeline.DayRange(day, loc)
	case hasSpan:
		var issues []timeline.ValidationIssue
		from, err := timeline.ParseInstant(q.StartDate, loc)
		if err != nil {
			issues = append(issues, dateIssue("", "startDate", q.StartDate, err))
		}
		to, err := timeline.ParseInstant(q.EndDate, loc)
		if err != nil {
			issues = append(issues, dateIssue("", "endDate", q.EndDate, err))
		}
		if len(issues) > 0 {
			return timeline.DateRange{}, appErrors.FromValidation(&timeline.ValidationError{Issues: issues})
		}
		r = timeline.NewDateRange(from, to, loc)
	case hasMonth:
		if q.Month < 1 || q.Month > 12 {
			return timeline.DateRange{}, validationError("month", "month must be between 1 and 12")
		}
		if q.Year < 1 || q.Year > 9999 {
			return timeline.DateRange{}, validationError("year", "year must be between 1 and 9999")
		}
		r = timeline.MonthRange(q.Year, time.Month(q.Month), loc)
	case q.SemesterID != "":
		if s.semesters == nil {
			return timeline.DateRange{}, validationError("semesterId", "semester lookups are unavailable")
		}
		semRange, err := s.semesters.Range(ctx, q.SemesterID)
		if err != nil {
			return timeline.DateRange{}, err
		}
		r = semRange
	default:
		r = timeline.DayRange(now, loc)
	}

	if days := r.Days(); days > s.cfg.MaxRangeDays {
		return timeline.DateRange{}, validationError("endDate", fmt.Sprintf("range spans %d days, the maximum is %d", days, s.cfg.MaxRangeDays))
	}
	return r, nil
}

func (s *ScheduleService) materialize(ctx context.Context, viewer models.Viewer, q dto.ScheduleQuery, r timeline.DateRange, now time.Time) (*dto.ScheduleResponse, []timeline.Course, error) {
	resp := &dto.ScheduleResponse{
		Range: dto.ScheduleRange{From: r.From.Format(timeline.DateKeyLayout), To: r.To.Format(timeline.DateKeyLayout), Days: r.Days()},
		Days:  []dto.ScheduleDay{},
	}
	if r.Empty() {
		return resp, nil, nil
	}

	filter := visibleCourses(viewer)
	filter.SemesterID = q.SemesterID
	if q.CourseID != "" {
		filter.IDs = []string{q.CourseID}
	}
	from := r.From
	to := r.To.AddDate(0, 0, 1).Add(-time.Nanosecond)
	filter.OverlapFrom = &from
	filter.OverlapTo = &to

	rows, err := s.courses.ListAll(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	meetings, err := s.courses.ListMeetings(ctx, ids)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course schedules")
	}
	byCourse := make(map[string][]models.CourseMeeting, len(rows))
	for _, m := range meetings {
		byCourse[m.CourseID] = append(byCourse[m.CourseID], m)
	}

	var issues []timeline.ValidationIssue
	courses := make([]timeline.Course, 0, len(rows))
	for _, row := range rows {
		course, rowIssues := row.Timeline(byCourse[row.ID])
		issues = append(issues, rowIssues...)
		courses = append(courses, course)
	}

	occurrences, matIssues := timeline.Materialize(courses, r, now)
	issues = append(issues, matIssues...)
	logIssues(s.logger, issues)
	s.metrics.ObserveMaterialization(len(occurrences), issues)

	groups := timeline.GroupByDate(occurrences)
	for _, key := range timeline.SortedDateKeys(groups) {
		day := groups[key]
		resp.Days = append(resp.Days, dto.ScheduleDay{Date: key, Weekday: day[0].Weekday, Occurrences: day})
	}
	resp.Total = len(occurrences)
	resp.Issues = issues
	return resp, courses, nil
}

// cacheKey scopes an entry to the viewer, the query and the current local
// date, so a derived status is never served past its day.
func (s *ScheduleService) cacheKey(viewer models.Viewer, q dto.ScheduleQuery, r timeline.DateRange, now time.Time) string {
	return fmt.Sprintf("schedule:%s:%s:%s:%s:%s:%s:%s",
		strings.ToLower(string(viewer.Role)), viewer.UserID,
		r.From.Format(timeline.DateKeyLayout), r.To.Format(timeline.DateKeyLayout),
		q.SemesterID, q.CourseID,
		timeline.DateKey(now, s.cfg.Location))
}

// cacheTTL bounds the lifetime of a cached schedule by the next instant at
// which any listed course changes status, and by the next local midnight.
func (s *ScheduleService) cacheTTL(courses []timeline.Course, now time.Time) time.Duration {
	if !s.cache.Enabled() {
		return 0
	}
	ttl := s.cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	midnight := timeline.LocalDate(now, s.cfg.Location).AddDate(0, 0, 1)
	limit := func(boundary time.Time) {
		if d := boundary.Sub(now); d > 0 && d < ttl {
			ttl = d
		}
	}
	limit(midnight)
	for _, c := range courses {
		limit(c.StartDate)
		limit(c.EndDate)
	}
	return ttl
}

func validationError(field, message string) error {
	err := appErrors.Clone(appErrors.ErrValidation, message)
	err.Field = field
	return err
}
