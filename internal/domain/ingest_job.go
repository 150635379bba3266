package domain

import (
	"fmt"
	"time"
)

// IngestJobStatus represents the status of a background ingestion job
type IngestJobStatus string

const (
	IngestJobStatusPending    IngestJobStatus = "pending"
	IngestJobStatusProcessing IngestJobStatus = "processing"
	IngestJobStatusCompleted  IngestJobStatus = "completed"
	IngestJobStatusFailed     IngestJobStatus = "failed"
)

// IngestJob queues one uploaded document for the extract/segment/embed/index
// pipeline. A failed job is terminal; re-upload creates a fresh document and
// job rather than retrying in place.
type IngestJob struct {
	ID          string
	DocumentID  string
	TenantID    string
	Status      IngestJobStatus
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewIngestJob creates a pending IngestJob for a document
func NewIngestJob(id, documentID, tenantID string, now time.Time) *IngestJob {
	return &IngestJob{
		ID:         id,
		DocumentID: documentID,
		TenantID:   tenantID,
		Status:     IngestJobStatusPending,
		CreatedAt:  now,
	}
}

// ValidateIngestJob validates an IngestJob instance
func ValidateIngestJob(j *IngestJob) error {
	if j == nil {
		return fmt.Errorf("ingest job cannot be nil")
	}
	if j.ID == "" {
		return fmt.Errorf("ingest job ID is required")
	}
	if j.DocumentID == "" {
		return fmt.Errorf("ingest job DocumentID is required")
	}
	if j.TenantID == "" {
		return fmt.Errorf("ingest job TenantID is required")
	}
	if !IsValidIngestJobStatus(j.Status) {
		return ErrInvalidIngestStatus
	}
	return nil
}

// IsValidIngestJobStatus reports whether the status is a known job state
func IsValidIngestJobStatus(s IngestJobStatus) bool {
	switch s {
	case IngestJobStatusPending, IngestJobStatusProcessing, IngestJobStatusCompleted, IngestJobStatusFailed:
		return true
	}
	return false
}
