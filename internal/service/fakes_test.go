package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/portal-api/internal/models"
	"github.com/noah-isme/portal-api/internal/repository"
	appErrors "github.com/noah-isme/portal-api/pkg/errors"
	"github.com/noah-isme/portal-api/pkg/jobs"
)

// fakeDB backs the in-memory repositories used by service tests.
type fakeDB struct {
	courses     map[string]*models.Course
	courseOrder []string
	meetings    map[string][]models.CourseMeeting
	enrolled    map[string]map[string]bool
	assignments map[string]*models.Assignment
	submissions []models.Submission
	listAllHits int
	upserts     int
	// writeErr fails the next course write without applying it.
	writeErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		courses:     map[string]*models.Course{},
		meetings:    map[string][]models.CourseMeeting{},
		enrolled:    map[string]map[string]bool{},
		assignments: map[string]*models.Assignment{},
	}
}

func (db *fakeDB) addCourse(c models.Course, meetings ...models.CourseMeeting) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	copyCourse := c
	db.courses[c.ID] = &copyCourse
	db.courseOrder = append(db.courseOrder, c.ID)
	for i := range meetings {
		meetings[i].CourseID = c.ID
		meetings[i].Position = i
	}
	db.meetings[c.ID] = meetings
}

func (db *fakeDB) enroll(courseID, studentID string) {
	if db.enrolled[courseID] == nil {
		db.enrolled[courseID] = map[string]bool{}
	}
	db.enrolled[courseID][studentID] = true
}

func meeting(day int, start, end string) models.CourseMeeting {
	return models.CourseMeeting{DayOfWeek: day, StartTime: start, EndTime: end}
}

type fakeCourseRepo struct{ db *fakeDB }

func (r *fakeCourseRepo) matches(c *models.Course, filter models.CourseFilter) bool {
	if c.DeletedAt != nil {
		return false
	}
	if len(filter.IDs) > 0 && !containsString(filter.IDs, c.ID) {
		return false
	}
	if filter.SemesterID != "" && (c.SemesterID == nil || *c.SemesterID != filter.SemesterID) {
		return false
	}
	if filter.InstructorID != "" && c.InstructorID != filter.InstructorID {
		return false
	}
	if filter.StudentID != "" && !r.db.enrolled[c.ID][filter.StudentID] {
		return false
	}
	if filter.Search != "" {
		q := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(c.Code), q) && !strings.Contains(strings.ToLower(c.Name), q) {
			return false
		}
	}
	if filter.OverlapTo != nil && c.StartDate.After(*filter.OverlapTo) {
		return false
	}
	if filter.OverlapFrom != nil && c.EndDate.Before(*filter.OverlapFrom) {
		return false
	}
	return true
}

func (r *fakeCourseRepo) ListAll(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	r.db.listAllHits++
	var out []models.Course
	for _, id := range r.db.courseOrder {
		if c := r.db.courses[id]; r.matches(c, filter) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	all, _ := r.ListAll(ctx, filter)
	start := (filter.Page - 1) * filter.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (r *fakeCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, ok := r.db.courses[id]
	if !ok || c.DeletedAt != nil {
		return nil, sql.ErrNoRows
	}
	copyCourse := *c
	return &copyCourse, nil
}

func (r *fakeCourseRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	for id, c := range r.db.courses {
		if id != excludeID && c.DeletedAt == nil && strings.EqualFold(c.Code, code) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCourseRepo) Create(ctx context.Context, course *models.Course, meetings []models.CourseMeeting) error {
	course.ID = uuid.NewString()
	r.db.addCourse(*course, meetings...)
	return nil
}

func (r *fakeCourseRepo) Update(ctx context.Context, course *models.Course, meetings []models.CourseMeeting) error {
	if err := r.db.writeErr; err != nil {
		r.db.writeErr = nil
		return err
	}
	copyCourse := *course
	r.db.courses[course.ID] = &copyCourse
	if meetings != nil {
		return r.ReplaceMeetings(ctx, course.ID, meetings)
	}
	return nil
}

func (r *fakeCourseRepo) SetAdministrativeStatus(ctx context.Context, id string, status *string) error {
	c, ok := r.db.courses[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.AdministrativeStatus = status
	return nil
}

func (r *fakeCourseRepo) SoftDelete(ctx context.Context, id string) error {
	now := time.Now()
	r.db.courses[id].DeletedAt = &now
	return nil
}

func (r *fakeCourseRepo) ListMeetings(ctx context.Context, courseIDs []string) ([]models.CourseMeeting, error) {
	var out []models.CourseMeeting
	for _, id := range courseIDs {
		out = append(out, r.db.meetings[id]...)
	}
	return out, nil
}

func (r *fakeCourseRepo) ReplaceMeetings(ctx context.Context, courseID string, meetings []models.CourseMeeting) error {
	for i := range meetings {
		meetings[i].CourseID = courseID
		meetings[i].Position = i
	}
	r.db.meetings[courseID] = meetings
	return nil
}

type fakeEnrollmentRepo struct{ db *fakeDB }

func (r *fakeEnrollmentRepo) Enroll(ctx context.Context, e *models.Enrollment) (bool, error) {
	if r.db.enrolled[e.CourseID][e.StudentID] {
		return false, nil
	}
	r.db.enroll(e.CourseID, e.StudentID)
	return true, nil
}

func (r *fakeEnrollmentRepo) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	if c, ok := r.db.courses[courseID]; !ok || c.DeletedAt != nil {
		return false, nil
	}
	return r.db.enrolled[courseID][studentID], nil
}

func (r *fakeEnrollmentRepo) CountByCourse(ctx context.Context, courseID string) (int, error) {
	return len(r.db.enrolled[courseID]), nil
}

func (r *fakeEnrollmentRepo) ListByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error) {
	var ids []string
	for id := range r.db.enrolled[courseID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.EnrollmentDetail, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.EnrollmentDetail{Enrollment: models.Enrollment{CourseID: courseID, StudentID: id}})
	}
	return out, nil
}

type fakeAssignmentRepo struct{ db *fakeDB }

func (r *fakeAssignmentRepo) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range r.db.assignments {
		if containsString(filter.CourseIDs, a.CourseID) && (!filter.ActiveOnly || a.IsActive) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	a, ok := r.db.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if c := r.db.courses[a.CourseID]; c != nil && c.DeletedAt != nil {
		return nil, sql.ErrNoRows
	}
	copyAssignment := *a
	return &copyAssignment, nil
}

func (r *fakeAssignmentRepo) Create(ctx context.Context, a *models.Assignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	copyAssignment := *a
	r.db.assignments[a.ID] = &copyAssignment
	return nil
}

func (r *fakeAssignmentRepo) Update(ctx context.Context, a *models.Assignment) error {
	copyAssignment := *a
	r.db.assignments[a.ID] = &copyAssignment
	return nil
}

type fakeSubmissionRepo struct{ db *fakeDB }

func (r *fakeSubmissionRepo) Upsert(ctx context.Context, s *models.Submission) error {
	r.db.upserts++
	for i := range r.db.submissions {
		existing := &r.db.submissions[i]
		if existing.AssignmentID == s.AssignmentID && existing.StudentID == s.StudentID {
			existing.Content = s.Content
			existing.SubmissionDate = s.SubmissionDate
			existing.Score, existing.Feedback, existing.GradedAt, existing.GradedBy = nil, nil, nil, nil
			existing.AttemptNumber++
			*s = *existing
			return nil
		}
	}
	s.ID = uuid.NewString()
	s.AttemptNumber = 1
	r.db.submissions = append(r.db.submissions, *s)
	return nil
}

func (r *fakeSubmissionRepo) ListByAssignments(ctx context.Context, ids []string, studentID string) ([]models.Submission, error) {
	var out []models.Submission
	for _, s := range r.db.submissions {
		if containsString(ids, s.AssignmentID) && (studentID == "" || s.StudentID == studentID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSubmissionRepo) FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	for _, s := range r.db.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			found := s
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeSubmissionRepo) Grade(ctx context.Context, id string, score float64, feedback *string, gradedBy string, gradedAt time.Time) error {
	for i := range r.db.submissions {
		if r.db.submissions[i].ID == id {
			r.db.submissions[i].Score = &score
			r.db.submissions[i].Feedback = feedback
			r.db.submissions[i].GradedBy = &gradedBy
			r.db.submissions[i].GradedAt = &gradedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

// memoryCache is a CacheRepository storing JSON in a map.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	c.ttls[key] = ttl
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	deleted := 0
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
			delete(c.ttls, key)
			deleted++
		}
	}
	return deleted, nil
}

func (c *memoryCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for key := range c.entries {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// fakeExportJobStore keeps export jobs in memory.
type fakeExportJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.ExportJob
}

func newFakeExportJobStore() *fakeExportJobStore {
	return &fakeExportJobStore{jobs: map[string]*models.ExportJob{}}
}

func (s *fakeExportJobStore) Create(ctx context.Context, job *models.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.CreatedAt = time.Now().UTC()
	copyJob := *job
	s.jobs[job.ID] = &copyJob
	return nil
}

func (s *fakeExportJobStore) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copyJob := *job
	return &copyJob, nil
}

func (s *fakeExportJobStore) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.FilePath != nil {
		p := *params.FilePath
		job.FilePath = &p
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		job.ErrorMessage = &msg
	}
	if params.FinishedAt != nil {
		at := *params.FinishedAt
		job.FinishedAt = &at
	}
	return nil
}

func (s *fakeExportJobStore) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ExportJob
	for _, job := range s.jobs {
		if job.Status == models.ExportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *fakeExportJobStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ExportJob
	for _, job := range s.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

// recordingQueue captures enqueued jobs without running them.
type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }
