package domain

import (
	"fmt"
	"time"
)

// UnansweredQueryStatus represents the review state of a tracked query
type UnansweredQueryStatus string

const (
	UnansweredStatusPending   UnansweredQueryStatus = "pending"
	UnansweredStatusConverted UnansweredQueryStatus = "converted"
	UnansweredStatusDismissed UnansweredQueryStatus = "dismissed"
)

// UnansweredQuery is a visitor question whose best retrieval score landed in
// the moderate-confidence band: plausibly relevant to the tenant's corpus but
// not answered by it. Repeats increment Count instead of creating new rows.
// Converted and dismissed are terminal states.
type UnansweredQuery struct {
	ID                 string
	TenantID           string
	Question           string
	NormalizedQuestion string
	Score              float64
	Count              int
	Status             UnansweredQueryStatus
	FirstSeenAt        time.Time
	LastSeenAt         time.Time
}

// ValidateUnansweredQuery validates an UnansweredQuery instance
func ValidateUnansweredQuery(q *UnansweredQuery) error {
	if q == nil {
		return fmt.Errorf("unanswered query cannot be nil")
	}
	if q.TenantID == "" {
		return fmt.Errorf("unanswered query TenantID is required")
	}
	if q.Question == "" {
		return fmt.Errorf("unanswered query Question is required")
	}
	if !IsValidUnansweredStatus(q.Status) {
		return ErrInvalidQueryStatus
	}
	return nil
}

// IsValidUnansweredStatus reports whether the status is a known review state
func IsValidUnansweredStatus(s UnansweredQueryStatus) bool {
	switch s {
	case UnansweredStatusPending, UnansweredStatusConverted, UnansweredStatusDismissed:
		return true
	}
	return false
}

// IsTerminal reports whether the query has left the pending state
func (q *UnansweredQuery) IsTerminal() bool {
	return q.Status == UnansweredStatusConverted || q.Status == UnansweredStatusDismissed
}
