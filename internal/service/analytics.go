package service

import (
	"context"

	"github.com/verdantlabs/verdant/internal/domain"
)

type DocumentCounter interface {
	CountByTenant(ctx context.Context, tenantID string) (int, error)
}

type SessionCounter interface {
	CountByTenant(ctx context.Context, tenantID string) (int, error)
}

type PendingQueryCounter interface {
	CountPendingByTenant(ctx context.Context, tenantID string) (int, error)
}

// Overview is the tenant-level usage snapshot shown on the admin dashboard.
type Overview struct {
	Documents      int `json:"documents"`
	Sessions       int `json:"sessions"`
	PendingQueries int `json:"pendingQueries"`
	ActiveFaqs     int `json:"activeFaqs"`
}

// AnalyticsService aggregates per-tenant counts across the stores.
type AnalyticsService struct {
	documents DocumentCounter
	sessions  SessionCounter
	pending   PendingQueryCounter
	faqs      FaqRepository
}

func NewAnalyticsService(documents DocumentCounter, sessions SessionCounter, pending PendingQueryCounter, faqs FaqRepository) *AnalyticsService {
	return &AnalyticsService{
		documents: documents,
		sessions:  sessions,
		pending:   pending,
		faqs:      faqs,
	}
}

func (s *AnalyticsService) Overview(ctx context.Context, tenantID string) (*Overview, error) {
	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}

	docs, err := s.documents.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	pending, err := s.pending.CountPendingByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	faqs, err := s.faqs.ListByTenant(ctx, tenantID, true)
	if err != nil {
		return nil, err
	}

	return &Overview{
		Documents:      docs,
		Sessions:       sessions,
		PendingQueries: pending,
		ActiveFaqs:     len(faqs),
	}, nil
}
