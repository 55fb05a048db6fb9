package dto

import (
	"time"

	"github.com/noah-isme/portal-api/internal/models"
)

// ScheduleExportRequest captures POST /exports/schedules payload.
type ScheduleExportRequest struct {
	Format models.ExportFormat `json:"format" validate:"required,oneof=csv pdf xlsx"`
	ScheduleQuery
}

// ExportJobResponse is returned after enqueueing an export and when polling it.
type ExportJobResponse struct {
	ID          string              `json:"id"`
	Status      models.ExportStatus `json:"status"`
	Progress    int                 `json:"progress"`
	Format      models.ExportFormat `json:"format"`
	DownloadURL string              `json:"downloadUrl,omitempty"`
	ExpiresAt   *time.Time          `json:"expiresAt,omitempty"`
	Error       *string             `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	FinishedAt  *time.Time          `json:"finishedAt,omitempty"`
}
