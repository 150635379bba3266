package service

import (
	"context"
	"strings"
	"time"

	"github.com/verdantlabs/verdant/internal/domain"
)

type FaqRepository interface {
	Create(ctx context.Context, entry *domain.FaqEntry) error
	GetByID(ctx context.Context, id string) (*domain.FaqEntry, error)
	ListByTenant(ctx context.Context, tenantID string, activeOnly bool) ([]*domain.FaqEntry, error)
	Deactivate(ctx context.Context, id string) error
}

// FaqService manages curated question/answer pairs. Active entries are
// prepended to grounded prompts so the assistant answers them without a
// retrieval hit.
type FaqService struct {
	faqs    FaqRepository
	uuidGen UUIDGenerator
}

func NewFaqService(faqs FaqRepository, uuidGen UUIDGenerator) *FaqService {
	return &FaqService{faqs: faqs, uuidGen: uuidGen}
}

func (s *FaqService) Create(ctx context.Context, tenantID, question, answer, category string) (*domain.FaqEntry, error) {
	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "question is required")
	}
	if answer == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "answer is required")
	}

	entry := domain.NewFaqEntry(s.uuidGen.NewString(), tenantID, question, answer, "", time.Now().UTC())
	if category != "" {
		entry.Category = category
	}
	if err := domain.ValidateFaqEntry(entry); err != nil {
		return nil, err
	}

	if err := s.faqs.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *FaqService) List(ctx context.Context, tenantID string, activeOnly bool) ([]*domain.FaqEntry, error) {
	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	return s.faqs.ListByTenant(ctx, tenantID, activeOnly)
}

// Remove deactivates an entry rather than deleting it, preserving the
// (tenant, question) uniqueness history.
func (s *FaqService) Remove(ctx context.Context, tenantID, id string) error {
	if id == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "faq ID is required")
	}

	entry, err := s.faqs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if entry.TenantID != tenantID {
		return domain.ErrFaqNotFound
	}

	return s.faqs.Deactivate(ctx, id)
}
