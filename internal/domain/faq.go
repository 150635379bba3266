package domain

import (
	"fmt"
	"time"
)

// FaqEntry is an approved question/answer pair injected into grounded prompts.
// Entries are soft-deactivated rather than deleted so the (tenant, question)
// uniqueness history survives.
type FaqEntry struct {
	ID            string
	TenantID      string
	Question      string
	Answer        string
	SourceQueryID string
	Category      string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewFaqEntry creates an active FaqEntry
func NewFaqEntry(id, tenantID, question, answer, sourceQueryID string, now time.Time) *FaqEntry {
	return &FaqEntry{
		ID:            id,
		TenantID:      tenantID,
		Question:      question,
		Answer:        answer,
		SourceQueryID: sourceQueryID,
		Category:      "General",
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ValidateFaqEntry validates a FaqEntry instance
func ValidateFaqEntry(f *FaqEntry) error {
	if f == nil {
		return fmt.Errorf("faq entry cannot be nil")
	}
	if f.TenantID == "" {
		return fmt.Errorf("faq entry TenantID is required")
	}
	if f.Question == "" {
		return fmt.Errorf("faq entry Question is required")
	}
	return nil
}
