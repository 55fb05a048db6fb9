package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/portal-api/internal/dto"
	"github.com/noah-isme/portal-api/internal/models"
	"github.com/noah-isme/portal-api/internal/timeline"
	"github.com/noah-isme/portal-api/pkg/export"
	"github.com/noah-isme/portal-api/pkg/storage"
)

var scheduleExportHeaders = []string{"Date", "Day", "Start", "End", "Course Code", "Course", "Instructor", "Location", "Room", "Status"}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type scheduleBuilder interface {
	Build(ctx context.Context, viewer models.Viewer, q dto.ScheduleQuery) (*dto.ScheduleResponse, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Occurrences  int
}

// ExportService renders materialised schedules and persists the files.
type ExportService struct {
	schedules scheduleBuilder
	storage   fileStorage
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(schedules scheduleBuilder, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{schedules: schedules, storage: store, signer: signer, logger: logger, cfg: cfg, now: time.Now}
}

// Generate materialises the job's schedule as its requester would see it and
// stores the rendered file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, err := export.ForFormat(string(job.Params.Format))
	if err != nil {
		return nil, err
	}

	viewer := models.Viewer{UserID: job.CreatedBy, Role: job.Params.Role}
	schedule, err := s.schedules.Build(ctx, viewer, dto.ScheduleQuery{
		StartDate:  job.Params.StartDate,
		EndDate:    job.Params.EndDate,
		SemesterID: job.Params.SemesterID,
		CourseID:   job.Params.CourseID,
	})
	if err != nil {
		return nil, fmt.Errorf("build schedule: %w", err)
	}

	payload, err := renderer.Render(scheduleDataset(schedule))
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", job.Params.Format, err)
	}
	relPath, err := s.storage.Save(s.buildFilename(job, renderer.Extension()), payload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("schedule export rendered",
		zap.String("job_id", job.ID),
		zap.String("format", string(job.Params.Format)),
		zap.Int("occurrences", schedule.Total),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{RelativePath: relPath, Occurrences: schedule.Total}, nil
}

// DownloadURL signs a fresh, expiring link to a stored export.
func (s *ExportService) DownloadURL(jobID, relPath string) (string, time.Time, error) {
	token, grant, err := s.signer.Generate(jobID, relPath)
	if err != nil {
		return "", time.Time{}, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/exports/download?token=%s", prefix, token), grant.ExpiresAt, nil
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.Grant, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob, ext string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("schedule_%s_%s_%s_%s.%s",
		sanitizeFilename(job.Params.StartDate), sanitizeFilename(job.Params.EndDate),
		sanitizeFilename(job.ID), timestamp, ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// scheduleDataset flattens the day groups into one row per occurrence.
func scheduleDataset(schedule *dto.ScheduleResponse) export.Dataset {
	rows := make([]map[string]string, 0, schedule.Total)
	for _, day := range schedule.Days {
		for _, occ := range day.Occurrences {
			rows = append(rows, occurrenceRow(occ))
		}
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Schedule %s to %s", schedule.Range.From, schedule.Range.To),
		Headers: scheduleExportHeaders,
		Rows:    rows,
	}
}

func occurrenceRow(occ timeline.Occurrence) map[string]string {
	return map[string]string{
		"Date":        occ.DateKey,
		"Day":         occ.Weekday.String(),
		"Start":       occ.StartTime.String(),
		"End":         occ.EndTime.String(),
		"Course Code": occ.CourseCode,
		"Course":      occ.CourseName,
		"Instructor":  occ.Instructor,
		"Location":    occ.Location,
		"Room":        occ.Room,
		"Status":      string(occ.Status),
	}
}
