package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/portal-api/internal/models"
)

const submissionSelect = `SELECT s.id, s.assignment_id, s.student_id, COALESCE(u.full_name, '') AS student_name, s.content,
s.submission_date, s.score, s.feedback, s.graded_at, s.graded_by, s.attempt_number, s.created_at, s.updated_at
FROM submissions s LEFT JOIN users u ON u.id = s.student_id`

// SubmissionRepository persists student submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Upsert stores the student's submission. A resubmission overwrites content
// and date, clears any previous grade and bumps attempt_number; the stored
// row is loaded back into submission.
func (r *SubmissionRepository) Upsert(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	submission.CreatedAt = now
	submission.UpdatedAt = now
	submission.AttemptNumber = 1

	const query = `INSERT INTO submissions (id, assignment_id, student_id, content, submission_date, attempt_number, created_at, updated_at)
VALUES (:id, :assignment_id, :student_id, :content, :submission_date, :attempt_number, :created_at, :updated_at)
ON CONFLICT (assignment_id, student_id) DO UPDATE SET
    content = EXCLUDED.content,
    submission_date = EXCLUDED.submission_date,
    score = NULL,
    feedback = NULL,
    graded_at = NULL,
    graded_by = NULL,
    attempt_number = submissions.attempt_number + 1,
    updated_at = EXCLUDED.updated_at
RETURNING id, attempt_number, created_at`
	rows, err := r.db.NamedQueryContext(ctx, query, submission)
	if err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&submission.ID, &submission.AttemptNumber, &submission.CreatedAt); err != nil {
			return fmt.Errorf("scan submission: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	submission.Score = nil
	submission.Feedback = nil
	submission.GradedAt = nil
	submission.GradedBy = nil
	return nil
}

// ListByAssignments returns submissions for the given assignments. A non-empty
// studentID restricts the result to that student's own rows.
func (r *SubmissionRepository) ListByAssignments(ctx context.Context, assignmentIDs []string, studentID string) ([]models.Submission, error) {
	if len(assignmentIDs) == 0 {
		return nil, nil
	}
	query := submissionSelect + " WHERE s.assignment_id = ANY($1)"
	args := []interface{}{pq.Array(assignmentIDs)}
	if studentID != "" {
		query += " AND s.student_id = $2"
		args = append(args, studentID)
	}
	query += " ORDER BY s.submission_date ASC"
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// FindByAssignmentAndStudent returns the student's submission. sql.ErrNoRows
// is returned unwrapped.
func (r *SubmissionRepository) FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	query := submissionSelect + " WHERE s.assignment_id = $1 AND s.student_id = $2"
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// Grade records the score; a graded submission is one with both score and
// graded_at present.
func (r *SubmissionRepository) Grade(ctx context.Context, id string, score float64, feedback *string, gradedBy string, gradedAt time.Time) error {
	const query = `UPDATE submissions SET score = $2, feedback = $3, graded_by = $4, graded_at = $5, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, score, feedback, gradedBy, gradedAt)
	if err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
