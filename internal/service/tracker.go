package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/verdantlabs/verdant/internal/domain"
)

type UnansweredQueryRepository interface {
	Create(ctx context.Context, q *domain.UnansweredQuery) error
	GetByID(ctx context.Context, id string) (*domain.UnansweredQuery, error)
	GetByNormalized(ctx context.Context, tenantID, normalized string) (*domain.UnansweredQuery, error)
	ListByTenant(ctx context.Context, tenantID string, status domain.UnansweredQueryStatus) ([]*domain.UnansweredQuery, error)
	RecordHit(ctx context.Context, id string, score float64, seenAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status domain.UnansweredQueryStatus) error
	Delete(ctx context.Context, id string) error
}

// TrackerService records near-miss questions so tenant admins can turn
// recurring gaps into FAQ entries. Repeated phrasings of the same question
// collapse into one row keyed by the normalized form.
type TrackerService struct {
	txRunner TxRunner
	queries  UnansweredQueryRepository
	uuidGen  UUIDGenerator
}

func NewTrackerService(txRunner TxRunner, queries UnansweredQueryRepository, uuidGen UUIDGenerator) *TrackerService {
	return &TrackerService{
		txRunner: txRunner,
		queries:  queries,
		uuidGen:  uuidGen,
	}
}

// NormalizeQuestion canonicalizes a question for dedup: lowercase, punctuation
// stripped, whitespace collapsed.
func NormalizeQuestion(question string) string {
	var b strings.Builder
	b.Grow(len(question))
	for _, r := range strings.ToLower(question) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Record upserts one observation of an unanswerable question. An existing row
// with the same normalized form gets its count bumped and keeps the highest
// score seen; otherwise a fresh pending row is created. Rows in a terminal
// state stay untouched so a resolved question does not reappear.
func (s *TrackerService) Record(ctx context.Context, tenantID, question string, score float64) error {
	if tenantID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "question is required")
	}

	normalized := NormalizeQuestion(question)
	if normalized == "" {
		return nil
	}
	now := time.Now().UTC()

	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		existing, err := repos.Unanswered().GetByNormalized(ctx, tenantID, normalized)
		if err == domain.ErrQueryNotFound {
			q := &domain.UnansweredQuery{
				ID:                 s.uuidGen.NewString(),
				TenantID:           tenantID,
				Question:           question,
				NormalizedQuestion: normalized,
				Score:              score,
				Count:              1,
				Status:             domain.UnansweredStatusPending,
				FirstSeenAt:        now,
				LastSeenAt:         now,
			}
			if err := domain.ValidateUnansweredQuery(q); err != nil {
				return err
			}
			return repos.Unanswered().Create(ctx, q)
		}
		if err != nil {
			return err
		}

		if existing.IsTerminal() {
			return nil
		}

		hitScore := existing.Score
		if score > hitScore {
			hitScore = score
		}
		return repos.Unanswered().RecordHit(ctx, existing.ID, hitScore, now)
	})
}

// ListPending returns the open near-miss queries for a tenant, most frequent
// first, ties broken by recency.
func (s *TrackerService) ListPending(ctx context.Context, tenantID string) ([]*domain.UnansweredQuery, error) {
	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	return s.queries.ListByTenant(ctx, tenantID, domain.UnansweredStatusPending)
}

// Dismiss marks a pending query as dismissed. Terminal rows reject the
// transition.
func (s *TrackerService) Dismiss(ctx context.Context, tenantID, queryID string) error {
	if queryID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "query ID is required")
	}

	q, err := s.queries.GetByID(ctx, queryID)
	if err != nil {
		return err
	}
	if q.TenantID != tenantID {
		return domain.ErrQueryNotFound
	}
	if q.IsTerminal() {
		return domain.ErrQueryAlreadyResolved
	}

	return s.queries.UpdateStatus(ctx, queryID, domain.UnansweredStatusDismissed)
}

// Delete removes a tracked query outright.
func (s *TrackerService) Delete(ctx context.Context, tenantID, queryID string) error {
	if queryID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "query ID is required")
	}

	q, err := s.queries.GetByID(ctx, queryID)
	if err != nil {
		return err
	}
	if q.TenantID != tenantID {
		return domain.ErrQueryNotFound
	}

	return s.queries.Delete(ctx, queryID)
}

// Approve converts a pending query into an FAQ entry. The status flip and the
// FAQ insert commit together or not at all.
func (s *TrackerService) Approve(ctx context.Context, tenantID, queryID, question, answer string) (*domain.FaqEntry, error) {
	if queryID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query ID is required")
	}
	if strings.TrimSpace(answer) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "answer is required")
	}

	var entry *domain.FaqEntry
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		q, err := repos.Unanswered().GetByID(ctx, queryID)
		if err != nil {
			return err
		}
		if q.TenantID != tenantID {
			return domain.ErrQueryNotFound
		}
		if q.IsTerminal() {
			return domain.ErrQueryAlreadyResolved
		}

		faqQuestion := strings.TrimSpace(question)
		if faqQuestion == "" {
			faqQuestion = q.Question
		}

		entry = domain.NewFaqEntry(s.uuidGen.NewString(), tenantID, faqQuestion, answer, q.ID, time.Now().UTC())
		if err := domain.ValidateFaqEntry(entry); err != nil {
			return err
		}

		if err := repos.Faqs().Create(ctx, entry); err != nil {
			return err
		}
		return repos.Unanswered().UpdateStatus(ctx, q.ID, domain.UnansweredStatusConverted)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
