package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/portal-api/internal/dto"
	"github.com/noah-isme/portal-api/internal/models"
	appErrors "github.com/noah-isme/portal-api/pkg/errors"
	"github.com/noah-isme/portal-api/pkg/jobs"
	"github.com/noah-isme/portal-api/pkg/storage"
)

type exportHarness struct {
	db       *fakeDB
	repo     *fakeExportJobStore
	files    *storage.LocalStorage
	queue    *recordingQueue
	exporter *ExportService
	jobs     *ExportJobService
	worker   *ExportWorker
}

func newExportHarness(t *testing.T) *exportHarness {
	t.Helper()
	db := newFakeDB()
	seedSchedule(db)
	schedules := newScheduleServiceForTest(t, db, nil)

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	exporter := NewExportService(schedules, files, signer, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop())

	repo := newFakeExportJobStore()
	queue := &recordingQueue{}
	metrics := NewMetricsService()
	jobSvc := NewExportJobService(repo, schedules, queue, exporter, metrics, nil, zap.NewNop(), ExportJobConfig{Enabled: true, ResultTTL: time.Hour})
	jobSvc.now = fixedClock(scheduleNow)

	return &exportHarness{
		db:       db,
		repo:     repo,
		files:    files,
		queue:    queue,
		exporter: exporter,
		jobs:     jobSvc,
		worker:   NewExportWorker(repo, exporter, metrics, zap.NewNop()),
	}
}

func (h *exportHarness) create(t *testing.T, viewer models.Viewer, format models.ExportFormat, q dto.ScheduleQuery) *dto.ExportJobResponse {
	t.Helper()
	resp, err := h.jobs.CreateJob(context.Background(), viewer, dto.ScheduleExportRequest{Format: format, ScheduleQuery: q})
	require.NoError(t, err)
	return resp
}

func (h *exportHarness) run(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, h.worker.Handle(context.Background(), jobs.Job{ID: id, Type: exportJobType}))
}

func tokenFrom(t *testing.T, url string) string {
	t.Helper()
	parts := strings.SplitN(url, "token=", 2)
	require.Len(t, parts, 2)
	return parts[1]
}

func readAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func TestExportServiceGenerateCSV(t *testing.T) {
	h := newExportHarness(t)
	job := &models.ExportJob{
		ID:        "job-1",
		CreatedBy: studentID,
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV, StartDate: "2024-09-02", EndDate: "2024-09-08", Role: models.RoleStudent},
	}

	result, err := h.exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Occurrences)
	assert.True(t, strings.HasPrefix(result.RelativePath, "schedule_2024-09-02_2024-09-08_job-1_"))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))

	file, err := h.files.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	content := string(readAll(t, file))
	assert.Contains(t, content, "Date,Day,Start,End,Course Code,Course,Instructor,Location,Room,Status")
	assert.Contains(t, content, "2024-09-02,Monday,09:00,10:30,CS101")
	assert.Contains(t, content, "2024-09-04,Wednesday,13:00,14:00,CS101")
	assert.NotContains(t, content, "MA201")
}

func TestExportServiceGenerateBinaryFormats(t *testing.T) {
	h := newExportHarness(t)
	cases := map[models.ExportFormat][]byte{
		models.ExportFormatPDF:  []byte("%PDF"),
		models.ExportFormatXLSX: []byte("PK"),
	}
	for format, magic := range cases {
		job := &models.ExportJob{
			ID:        "job-" + string(format),
			CreatedBy: viewerAdmin.UserID,
			Params:    models.ExportJobParams{Format: format, StartDate: "2024-10-01", EndDate: "2024-10-31", Role: models.RoleAdmin},
		}
		result, err := h.exporter.Generate(context.Background(), job)
		require.NoError(t, err, format)
		assert.Equal(t, 14, result.Occurrences, format)

		file, err := h.files.Open(result.RelativePath)
		require.NoError(t, err)
		data := readAll(t, file)
		file.Close()
		assert.True(t, bytes.HasPrefix(data, magic), format)
	}
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	h := newExportHarness(t)
	_, err := h.exporter.Generate(context.Background(), &models.ExportJob{ID: "job-x", Params: models.ExportJobParams{Format: "docx"}})
	require.Error(t, err)
}

func TestExportServiceDownloadURL(t *testing.T) {
	h := newExportHarness(t)
	url, expiresAt, err := h.exporter.DownloadURL("job-1", "schedule.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/api/v1/exports/download?token="))
	assert.True(t, expiresAt.After(time.Now()))

	grant, err := h.exporter.ParseToken(tokenFrom(t, url), false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", grant.JobID)
	assert.Equal(t, "schedule.csv", grant.Path)
}

func TestExportJobServiceCreateResolvesRange(t *testing.T) {
	h := newExportHarness(t)

	resp := h.create(t, viewerTeacher, models.ExportFormatCSV, dto.ScheduleQuery{Year: 2024, Month: 10})
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	assert.Empty(t, resp.DownloadURL)
	require.Len(t, h.queue.jobs, 1)
	assert.Equal(t, resp.ID, h.queue.jobs[0].ID)
	assert.Equal(t, exportJobType, h.queue.jobs[0].Type)

	stored, err := h.repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-10-01", stored.Params.StartDate)
	assert.Equal(t, "2024-10-31", stored.Params.EndDate)
	assert.Equal(t, models.RoleTeacher, stored.Params.Role)
	assert.Equal(t, teacherID, stored.CreatedBy)
}

func TestExportJobServiceCreateDefaultsToToday(t *testing.T) {
	h := newExportHarness(t)

	resp := h.create(t, viewerStudent, models.ExportFormatCSV, dto.ScheduleQuery{})
	stored, err := h.repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-09-04", stored.Params.StartDate)
	assert.Equal(t, "2024-09-04", stored.Params.EndDate)
}

func TestExportJobServiceCreateRejections(t *testing.T) {
	h := newExportHarness(t)
	ctx := context.Background()

	_, err := h.jobs.CreateJob(ctx, viewerStudent, dto.ScheduleExportRequest{Format: "docx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = h.jobs.CreateJob(ctx, viewerStudent, dto.ScheduleExportRequest{
		Format:        models.ExportFormatCSV,
		ScheduleQuery: dto.ScheduleQuery{StartDate: "2024-09-10", EndDate: "2024-09-01"},
	})
	require.Error(t, err)
	assert.Equal(t, "endDate", appErrors.FromError(err).Field)

	_, err = h.jobs.CreateJob(ctx, viewerStudent, dto.ScheduleExportRequest{
		Format:        models.ExportFormatCSV,
		ScheduleQuery: dto.ScheduleQuery{Date: "tomorrow"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMalformedDate.Code, appErrors.FromError(err).Code)
	assert.Empty(t, h.queue.jobs)
}

func TestExportJobServiceCreateWhenDisabled(t *testing.T) {
	h := newExportHarness(t)
	h.jobs.cfg.Enabled = false

	_, err := h.jobs.CreateJob(context.Background(), viewerStudent, dto.ScheduleExportRequest{Format: models.ExportFormatCSV})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrExportsDisabled.Code, appErrors.FromError(err).Code)
}

func TestExportJobServiceEnqueueFailureMarksFailed(t *testing.T) {
	h := newExportHarness(t)
	h.queue.err = jobs.ErrNotStarted

	_, err := h.jobs.CreateJob(context.Background(), viewerStudent, dto.ScheduleExportRequest{Format: models.ExportFormatCSV})
	require.Error(t, err)
	require.Len(t, h.repo.jobs, 1)
	for _, job := range h.repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
	}
}

func TestExportJobLifecycle(t *testing.T) {
	h := newExportHarness(t)
	ctx := context.Background()

	created := h.create(t, viewerStudent, models.ExportFormatCSV, dto.ScheduleQuery{StartDate: "2024-09-02", EndDate: "2024-09-08"})
	h.run(t, created.ID)

	status, err := h.jobs.GetStatus(ctx, viewerStudent, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.FinishedAt)
	require.NotEmpty(t, status.DownloadURL)
	require.NotNil(t, status.ExpiresAt)
	assert.Nil(t, status.Error)

	download, err := h.jobs.ResolveDownload(ctx, tokenFrom(t, status.DownloadURL))
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv; charset=utf-8", download.ContentType)
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))
	assert.Contains(t, string(readAll(t, download.File)), "CS101")

	_, err = h.jobs.GetStatus(ctx, viewerTeacher, created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = h.jobs.GetStatus(ctx, viewerAdmin, created.ID)
	require.NoError(t, err)

	// handling a finished job again is a no-op
	h.run(t, created.ID)
}

func TestExportJobServiceResolveDownloadRejections(t *testing.T) {
	h := newExportHarness(t)
	ctx := context.Background()

	created := h.create(t, viewerStudent, models.ExportFormatCSV, dto.ScheduleQuery{})

	_, err := h.jobs.ResolveDownload(ctx, "garbage")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	url, _, err := h.exporter.DownloadURL(created.ID, "schedule.csv")
	require.NoError(t, err)
	_, err = h.jobs.ResolveDownload(ctx, tokenFrom(t, url))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	h.run(t, created.ID)
	_, err = h.jobs.ResolveDownload(ctx, tokenFrom(t, url))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	status, err := h.jobs.GetStatus(ctx, viewerStudent, created.ID)
	require.NoError(t, err)
	stored, err := h.repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NoError(t, h.files.Delete(*stored.FilePath))
	_, err = h.jobs.ResolveDownload(ctx, tokenFrom(t, status.DownloadURL))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

type failingGenerator struct{ err error }

func (g failingGenerator) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	return nil, g.err
}

func TestExportWorkerRetryThenGiveUp(t *testing.T) {
	h := newExportHarness(t)
	ctx := context.Background()
	created := h.create(t, viewerStudent, models.ExportFormatCSV, dto.ScheduleQuery{})

	worker := NewExportWorker(h.repo, failingGenerator{err: errors.New("render failed")}, nil, zap.NewNop())
	err := worker.Handle(ctx, jobs.Job{ID: created.ID})
	require.Error(t, err)

	stored, err := h.repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, stored.Status)
	assert.Equal(t, 0, stored.Progress)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "render failed", *stored.ErrorMessage)

	worker.GiveUp(ctx, jobs.Job{ID: created.ID}, errors.New("render failed"))
	status, err := h.jobs.GetStatus(ctx, viewerStudent, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFailed, status.Status)
	require.NotNil(t, status.Error)
	assert.Empty(t, status.DownloadURL)
}

func TestExportJobServiceRecoverPendingJobs(t *testing.T) {
	h := newExportHarness(t)
	created := h.create(t, viewerStudent, models.ExportFormatCSV, dto.ScheduleQuery{})
	h.queue.jobs = nil

	h.jobs.RecoverPendingJobs(context.Background())
	require.Len(t, h.queue.jobs, 1)
	assert.Equal(t, created.ID, h.queue.jobs[0].ID)
}

func TestExportJobServiceCleanupExpired(t *testing.T) {
	h := newExportHarness(t)
	ctx := context.Background()
	created := h.create(t, viewerStudent, models.ExportFormatCSV, dto.ScheduleQuery{})
	h.run(t, created.ID)
	stored, err := h.repo.GetByID(ctx, created.ID)
	require.NoError(t, err)

	h.jobs.now = fixedClock(time.Now().Add(2 * time.Hour))
	h.jobs.CleanupExpired(ctx)

	_, err = h.files.Open(*stored.FilePath)
	require.Error(t, err)
}
