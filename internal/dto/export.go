package dto

import "github.com/noah-isme/ims-console-api/internal/models"

// ExportRequest captures POST /exports/admissions and /exports/conversions.
// ReconcileStatus applies to conversion exports only.
type ExportRequest struct {
	Format          models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Status          string              `json:"status"`
	Source          string              `json:"source"`
	Course          string              `json:"course"`
	Search          string              `json:"search"`
	ReconcileStatus string              `json:"reconcileStatus"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
