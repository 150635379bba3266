package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the lifecycle state of an uploaded document
type DocumentStatus string

const (
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents an uploaded knowledge-base document. Its chunks live in
// the vector index under the owning tenant's namespace; the row tracks the
// ingestion outcome.
type Document struct {
	ID           string
	TenantID     string
	Filename     string
	OriginalName string
	Status       DocumentStatus
	ChunkCount   int
	FileSize     int64
	StorageKey   string
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewDocument creates a new Document in the processing state
func NewDocument(id, tenantID, filename, originalName, storageKey string, fileSize int64, now time.Time) *Document {
	return &Document{
		ID:           id,
		TenantID:     tenantID,
		Filename:     filename,
		OriginalName: originalName,
		Status:       DocumentStatusProcessing,
		FileSize:     fileSize,
		StorageKey:   storageKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.TenantID == "" {
		return fmt.Errorf("document TenantID is required")
	}
	if d.OriginalName == "" {
		return fmt.Errorf("document OriginalName is required")
	}
	if !IsValidDocumentStatus(d.Status) {
		return ErrInvalidDocumentState
	}
	return nil
}

// IsValidDocumentStatus reports whether the status is a known lifecycle state
func IsValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusProcessing, DocumentStatusReady, DocumentStatusFailed:
		return true
	}
	return false
}
