package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/portal-api/internal/models"
)

func TestAssignmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	list, err := repo.List(context.Background(), models.AssignmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	due := time.Date(2024, 9, 10, 23, 59, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "course_id", "course_name", "title", "description", "due_date", "allow_late_submission", "is_active", "max_score", "created_by", "created_at", "updated_at"}).
		AddRow("a1", "c1", "Intro", "Essay", nil, due, false, true, 100.0, "t1", due, due)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.course_id = ANY($1) AND c.deleted_at IS NULL AND a.is_active = TRUE ORDER BY a.due_date ASC, a.id")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	list, err = repo.List(context.Background(), models.AssignmentFilter{CourseIDs: []string{"c1"}, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Intro", list[0].CourseName)
	assert.True(t, list[0].DueDate.Equal(due))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryFindByIDSkipsDeletedCourse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.id = $1 AND c.deleted_at IS NULL")).
		WithArgs("a1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "a1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpsertReturnsAttempt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	submitted := time.Date(2024, 9, 9, 12, 0, 0, 0, time.UTC)
	created := submitted.Add(-24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("attempt_number = submissions.attempt_number + 1")).
		WithArgs(sqlmock.AnyArg(), "a1", "s1", "draft 2", submitted, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "attempt_number", "created_at"}).AddRow("sub-1", 2, created))

	score := 80.0
	sub := &models.Submission{AssignmentID: "a1", StudentID: "s1", Content: "draft 2", SubmissionDate: submitted, Score: &score}
	require.NoError(t, repo.Upsert(context.Background(), sub))
	assert.Equal(t, "sub-1", sub.ID)
	assert.Equal(t, 2, sub.AttemptNumber)
	assert.Nil(t, sub.Score)
	assert.True(t, sub.CreatedAt.Equal(created))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListForStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "assignment_id", "student_id", "student_name", "content", "submission_date", "score", "feedback", "graded_at", "graded_by", "attempt_number", "created_at", "updated_at"}).
		AddRow("sub-1", "a1", "s1", "Ada", "text", now, 90.5, "good", now, "t1", 1, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.assignment_id = ANY($1) AND s.student_id = $2 ORDER BY s.submission_date ASC")).
		WithArgs(sqlmock.AnyArg(), "s1").
		WillReturnRows(rows)

	subs, err := repo.ListByAssignments(context.Background(), []string{"a1"}, "s1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.NotNil(t, subs[0].Score)
	assert.Equal(t, 90.5, *subs[0].Score)
	assert.NotNil(t, subs[0].GradedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryGradeMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	at := time.Date(2024, 9, 12, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions SET score = $2")).
		WithArgs("missing", 75.0, nil, "t1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Grade(context.Background(), "missing", 75, nil, "t1", at)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
