package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/portal-api/internal/models"
)

const courseSelect = `SELECT c.id, c.code, c.name, c.description, c.instructor_id, COALESCE(u.full_name, '') AS instructor_name,
c.location, c.semester_id, c.start_date, c.end_date, c.administrative_status, c.created_at, c.updated_at, c.deleted_at`

const courseFrom = ` FROM courses c LEFT JOIN users u ON u.id = c.instructor_id WHERE c.deleted_at IS NULL`

const meetingColumns = `id, course_id, day_of_week, start_time, end_time, room, position, created_at`

// CourseRepository persists courses and their weekly meeting patterns.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func courseConditions(filter models.CourseFilter) (string, []interface{}) {
	clause := courseFrom
	var conditions []string
	var args []interface{}

	if len(filter.IDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("c.id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.IDs))
	}
	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("c.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("c.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = c.id AND e.student_id = $%d)", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(c.code ILIKE $%d OR c.name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+search+"%")
	}
	if filter.OverlapTo != nil {
		conditions = append(conditions, fmt.Sprintf("c.start_date <= $%d", len(args)+1))
		args = append(args, *filter.OverlapTo)
	}
	if filter.OverlapFrom != nil {
		conditions = append(conditions, fmt.Sprintf("c.end_date >= $%d", len(args)+1))
		args = append(args, *filter.OverlapFrom)
	}
	if len(conditions) > 0 {
		clause += " AND " + strings.Join(conditions, " AND ")
	}
	return clause, args
}

// List returns a page of courses matching the filter with the total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	clause, args := courseConditions(filter)

	allowedSorts := map[string]string{
		"code":       "c.code",
		"name":       "c.name",
		"start_date": "c.start_date",
		"end_date":   "c.end_date",
		"created_at": "c.created_at",
	}
	orderBy, ok := allowedSorts[filter.SortBy]
	if !ok {
		orderBy = "c.start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page, size := models.NormalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("%s%s ORDER BY %s %s, c.id LIMIT %d OFFSET %d", courseSelect, clause, orderBy, order, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// ListAll returns every course matching the filter, ignoring paging. Schedule
// materialisation needs the full visible set for a range.
func (r *CourseRepository) ListAll(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	clause, args := courseConditions(filter)
	query := courseSelect + clause + " ORDER BY c.code, c.id"
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list all courses: %w", err)
	}
	return courses, nil
}

// FindByID loads a live course. sql.ErrNoRows is returned unwrapped.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := courseSelect + courseFrom + " AND c.id = $1"
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// ExistsByCode checks whether another live course already uses code.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM courses WHERE code = $1 AND deleted_at IS NULL"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// Create inserts the course together with its meeting pattern.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course, meetings []models.CourseMeeting) (err error) {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create course tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO courses (id, code, name, description, instructor_id, location, semester_id, start_date, end_date, administrative_status, created_at, updated_at)
VALUES (:id, :code, :name, :description, :instructor_id, :location, :semester_id, :start_date, :end_date, :administrative_status, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	if err = insertMeetings(ctx, tx, course.ID, meetings, now); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create course tx: %w", err)
	}
	return nil
}

// Update persists the descriptive fields and validity window of a course.
// A non-nil meetings slice replaces the weekly pattern in the same
// transaction; nil keeps the stored pattern.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course, meetings []models.CourseMeeting) (err error) {
	now := time.Now().UTC()
	course.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update course tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE courses SET code = :code, name = :name, description = :description, instructor_id = :instructor_id,
location = :location, semester_id = :semester_id, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
WHERE id = :id AND deleted_at IS NULL`
	if _, err = tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if meetings != nil {
		if err = replaceMeetings(ctx, tx, course.ID, meetings, now); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update course tx: %w", err)
	}
	return nil
}

// SetAdministrativeStatus sets or, with nil, clears the administrative override.
func (r *CourseRepository) SetAdministrativeStatus(ctx context.Context, id string, status *string) error {
	const query = `UPDATE courses SET administrative_status = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set course status: %w", err)
	}
	return nil
}

// SoftDelete hides the course from every listing.
func (r *CourseRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	const query = `UPDATE courses SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// ListMeetings returns the stored meeting entries for the given courses in
// pattern order.
func (r *CourseRepository) ListMeetings(ctx context.Context, courseIDs []string) ([]models.CourseMeeting, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + meetingColumns + ` FROM course_meetings WHERE course_id = ANY($1) ORDER BY course_id, position`
	var meetings []models.CourseMeeting
	if err := r.db.SelectContext(ctx, &meetings, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("list course meetings: %w", err)
	}
	return meetings, nil
}

// ReplaceMeetings swaps the whole weekly pattern of a course atomically.
func (r *CourseRepository) ReplaceMeetings(ctx context.Context, courseID string, meetings []models.CourseMeeting) (err error) {
	now := time.Now().UTC()
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace meetings tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = replaceMeetings(ctx, tx, courseID, meetings, now); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE courses SET updated_at = $2 WHERE id = $1`, courseID, now); err != nil {
		return fmt.Errorf("touch course: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace meetings tx: %w", err)
	}
	return nil
}

func replaceMeetings(ctx context.Context, tx *sqlx.Tx, courseID string, meetings []models.CourseMeeting, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM course_meetings WHERE course_id = $1`, courseID); err != nil {
		return fmt.Errorf("clear course meetings: %w", err)
	}
	return insertMeetings(ctx, tx, courseID, meetings, now)
}

func insertMeetings(ctx context.Context, tx *sqlx.Tx, courseID string, meetings []models.CourseMeeting, now time.Time) error {
	const query = `INSERT INTO course_meetings (id, course_id, day_of_week, start_time, end_time, room, position, created_at)
VALUES (:id, :course_id, :day_of_week, :start_time, :end_time, :room, :position, :created_at)`
	for i := range meetings {
		m := &meetings[i]
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		m.CourseID = courseID
		m.Position = i
		m.CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, m); err != nil {
			return fmt.Errorf("insert course meeting: %w", err)
		}
	}
	return nil
}
