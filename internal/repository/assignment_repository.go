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

const assignmentSelect = `SELECT a.id, a.course_id, COALESCE(c.name, '') AS course_name, a.title, a.description, a.due_date,
a.allow_late_submission, a.is_active, a.max_score, a.created_by, a.created_at, a.updated_at
FROM assignments a LEFT JOIN courses c ON c.id = a.course_id`

// AssignmentRepository persists assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// List returns assignments of the given courses ordered by due date. Status
// filtering and paging happen after derivation, so the full set is returned.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	if len(filter.CourseIDs) == 0 {
		return nil, nil
	}
	where := []string{"a.course_id = ANY($1)", "c.deleted_at IS NULL"}
	args := []interface{}{pq.Array(filter.CourseIDs)}
	if filter.ActiveOnly {
		where = append(where, "a.is_active = TRUE")
	}
	query := fmt.Sprintf("%s WHERE %s ORDER BY a.due_date ASC, a.id", assignmentSelect, strings.Join(where, " AND "))
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// FindByID loads one assignment of a live course. sql.ErrNoRows is returned
// unwrapped.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := assignmentSelect + " WHERE a.id = $1 AND c.deleted_at IS NULL"
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// Create inserts an assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO assignments (id, course_id, title, description, due_date, allow_late_submission, is_active, max_score, created_by, created_at, updated_at)
VALUES (:id, :course_id, :title, :description, :due_date, :allow_late_submission, :is_active, :max_score, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update persists the mutable fields of an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET title = :title, description = :description, due_date = :due_date,
allow_late_submission = :allow_late_submission, is_active = :is_active, max_score = :max_score, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}
