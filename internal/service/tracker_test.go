package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/verdantlabs/verdant/internal/domain"
)

type MockUnansweredQueryRepository struct {
	mock.Mock
}

func (m *MockUnansweredQueryRepository) Create(ctx context.Context, q *domain.UnansweredQuery) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *MockUnansweredQueryRepository) GetByID(ctx context.Context, id string) (*domain.UnansweredQuery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UnansweredQuery), args.Error(1)
}

func (m *MockUnansweredQueryRepository) GetByNormalized(ctx context.Context, tenantID, normalized string) (*domain.UnansweredQuery, error) {
	args := m.Called(ctx, tenantID, normalized)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UnansweredQuery), args.Error(1)
}

func (m *MockUnansweredQueryRepository) ListByTenant(ctx context.Context, tenantID string, status domain.UnansweredQueryStatus) ([]*domain.UnansweredQuery, error) {
	args := m.Called(ctx, tenantID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.UnansweredQuery), args.Error(1)
}

func (m *MockUnansweredQueryRepository) RecordHit(ctx context.Context, id string, score float64, seenAt time.Time) error {
	args := m.Called(ctx, id, score, seenAt)
	return args.Error(0)
}

func (m *MockUnansweredQueryRepository) UpdateStatus(ctx context.Context, id string, status domain.UnansweredQueryStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockUnansweredQueryRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockFaqRepository struct {
	mock.Mock
}

func (m *MockFaqRepository) Create(ctx context.Context, entry *domain.FaqEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockFaqRepository) GetByID(ctx context.Context, id string) (*domain.FaqEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FaqEntry), args.Error(1)
}

func (m *MockFaqRepository) ListByTenant(ctx context.Context, tenantID string, activeOnly bool) ([]*domain.FaqEntry, error) {
	args := m.Called(ctx, tenantID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FaqEntry), args.Error(1)
}

func (m *MockFaqRepository) Deactivate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// fakeTxRunner runs the transactional closure directly against the mocks, so
// unit tests exercise the same code path without a database.
type fakeTxRunner struct {
	unanswered *MockUnansweredQueryRepository
	faqs       *MockFaqRepository
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	return fn(f)
}

func (f *fakeTxRunner) Unanswered() UnansweredQueryRepository { return f.unanswered }
func (f *fakeTxRunner) Faqs() FaqRepository                   { return f.faqs }

// stubUUIDGen yields deterministic sequential IDs.
type stubUUIDGen struct {
	n int
}

func (g *stubUUIDGen) NewString() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func newTrackerFixture() (*TrackerService, *MockUnansweredQueryRepository, *MockFaqRepository) {
	queries := new(MockUnansweredQueryRepository)
	faqs := new(MockFaqRepository)
	runner := &fakeTxRunner{unanswered: queries, faqs: faqs}
	return NewTrackerService(runner, queries, &stubUUIDGen{}), queries, faqs
}

func TestNormalizeQuestion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"How do refunds work?", "how do refunds work"},
		{"  How   do  refunds work!!! ", "how do refunds work"},
		{"HOW DO REFUNDS WORK", "how do refunds work"},
		{"What's the refund-policy?", "whats the refundpolicy"},
		{"?!.,", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeQuestion(tt.in), "input %q", tt.in)
	}
}

func TestTrackerService_Record_CreatesNewQuery(t *testing.T) {
	svc, queries, _ := newTrackerFixture()

	queries.On("GetByNormalized", mock.Anything, "tenant-1", "how do refunds work").
		Return(nil, domain.ErrQueryNotFound)
	queries.On("Create", mock.Anything, mock.MatchedBy(func(q *domain.UnansweredQuery) bool {
		return q.TenantID == "tenant-1" &&
			q.Question == "How do refunds work?" &&
			q.NormalizedQuestion == "how do refunds work" &&
			q.Score == 0.42 &&
			q.Count == 1 &&
			q.Status == domain.UnansweredStatusPending
	})).Return(nil)

	err := svc.Record(context.Background(), "tenant-1", "How do refunds work?", 0.42)
	require.NoError(t, err)
	queries.AssertExpectations(t)
}

func TestTrackerService_Record_BumpsExistingKeepingMaxScore(t *testing.T) {
	svc, queries, _ := newTrackerFixture()

	existing := &domain.UnansweredQuery{
		ID:                 "q-1",
		TenantID:           "tenant-1",
		Question:           "How do refunds work?",
		NormalizedQuestion: "how do refunds work",
		Score:              0.51,
		Count:              2,
		Status:             domain.UnansweredStatusPending,
	}
	queries.On("GetByNormalized", mock.Anything, "tenant-1", "how do refunds work").
		Return(existing, nil)
	queries.On("RecordHit", mock.Anything, "q-1", 0.51, mock.Anything).Return(nil)

	// A lower-score repeat keeps the previous high score.
	err := svc.Record(context.Background(), "tenant-1", "how do refunds work??", 0.30)
	require.NoError(t, err)
	queries.AssertExpectations(t)
}

func TestTrackerService_Record_TerminalRowStaysUntouched(t *testing.T) {
	svc, queries, _ := newTrackerFixture()

	queries.On("GetByNormalized", mock.Anything, "tenant-1", "how do refunds work").
		Return(&domain.UnansweredQuery{
			ID:     "q-1",
			Status: domain.UnansweredStatusConverted,
		}, nil)

	err := svc.Record(context.Background(), "tenant-1", "How do refunds work?", 0.4)
	require.NoError(t, err)

	queries.AssertNotCalled(t, "RecordHit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	queries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTrackerService_Record_Validation(t *testing.T) {
	svc, _, _ := newTrackerFixture()

	err := svc.Record(context.Background(), "", "question", 0.4)
	require.Error(t, err)

	err = svc.Record(context.Background(), "tenant-1", "   ", 0.4)
	require.Error(t, err)

	// Punctuation-only input normalizes to nothing and is silently dropped.
	err = svc.Record(context.Background(), "tenant-1", "?!", 0.4)
	require.NoError(t, err)
}

func TestTrackerService_Dismiss(t *testing.T) {
	svc, queries, _ := newTrackerFixture()

	queries.On("GetByID", mock.Anything, "q-1").Return(&domain.UnansweredQuery{
		ID:       "q-1",
		TenantID: "tenant-1",
		Status:   domain.UnansweredStatusPending,
	}, nil)
	queries.On("UpdateStatus", mock.Anything, "q-1", domain.UnansweredStatusDismissed).Return(nil)

	err := svc.Dismiss(context.Background(), "tenant-1", "q-1")
	require.NoError(t, err)
	queries.AssertExpectations(t)
}

func TestTrackerService_Dismiss_WrongTenant(t *testing.T) {
	svc, queries, _ := newTrackerFixture()

	queries.On("GetByID", mock.Anything, "q-1").Return(&domain.UnansweredQuery{
		ID:       "q-1",
		TenantID: "tenant-1",
		Status:   domain.UnansweredStatusPending,
	}, nil)

	err := svc.Dismiss(context.Background(), "tenant-2", "q-1")
	assert.ErrorIs(t, err, domain.ErrQueryNotFound)
}

func TestTrackerService_Dismiss_AlreadyResolved(t *testing.T) {
	svc, queries, _ := newTrackerFixture()

	queries.On("GetByID", mock.Anything, "q-1").Return(&domain.UnansweredQuery{
		ID:       "q-1",
		TenantID: "tenant-1",
		Status:   domain.UnansweredStatusDismissed,
	}, nil)

	err := svc.Dismiss(context.Background(), "tenant-1", "q-1")
	assert.ErrorIs(t, err, domain.ErrQueryAlreadyResolved)
}

func TestTrackerService_Delete(t *testing.T) {
	svc, queries, _ := newTrackerFixture()

	queries.On("GetByID", mock.Anything, "q-1").Return(&domain.UnansweredQuery{
		ID:       "q-1",
		TenantID: "tenant-1",
		Status:   domain.UnansweredStatusDismissed,
	}, nil)
	queries.On("Delete", mock.Anything, "q-1").Return(nil)

	err := svc.Delete(context.Background(), "tenant-1", "q-1")
	require.NoError(t, err)
	queries.AssertExpectations(t)
}

func TestTrackerService_Approve_ConvertsQueryToFaq(t *testing.T) {
	svc, queries, faqs := newTrackerFixture()

	queries.On("GetByID", mock.Anything, "q-1").Return(&domain.UnansweredQuery{
		ID:       "q-1",
		TenantID: "tenant-1",
		Question: "How do refunds work?",
		Status:   domain.UnansweredStatusPending,
	}, nil)
	faqs.On("Create", mock.Anything, mock.MatchedBy(func(f *domain.FaqEntry) bool {
		return f.TenantID == "tenant-1" &&
			f.Question == "How do refunds work?" &&
			f.Answer == "Within thirty days." &&
			f.SourceQueryID == "q-1" &&
			f.Active
	})).Return(nil)
	queries.On("UpdateStatus", mock.Anything, "q-1", domain.UnansweredStatusConverted).Return(nil)

	// Blank question falls back to the stored phrasing.
	entry, err := svc.Approve(context.Background(), "tenant-1", "q-1", "", "Within thirty days.")
	require.NoError(t, err)
	assert.Equal(t, "How do refunds work?", entry.Question)
	queries.AssertExpectations(t)
	faqs.AssertExpectations(t)
}

func TestTrackerService_Approve_RequiresAnswer(t *testing.T) {
	svc, _, _ := newTrackerFixture()

	_, err := svc.Approve(context.Background(), "tenant-1", "q-1", "Question?", "   ")
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestTrackerService_Approve_TerminalQueryRejected(t *testing.T) {
	svc, queries, faqs := newTrackerFixture()

	queries.On("GetByID", mock.Anything, "q-1").Return(&domain.UnansweredQuery{
		ID:       "q-1",
		TenantID: "tenant-1",
		Status:   domain.UnansweredStatusConverted,
	}, nil)

	_, err := svc.Approve(context.Background(), "tenant-1", "q-1", "", "answer")
	assert.ErrorIs(t, err, domain.ErrQueryAlreadyResolved)
	faqs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTrackerService_ListPending(t *testing.T) {
	svc, queries, _ := newTrackerFixture()

	pending := []*domain.UnansweredQuery{{ID: "q-1"}, {ID: "q-2"}}
	queries.On("ListByTenant", mock.Anything, "tenant-1", domain.UnansweredStatusPending).
		Return(pending, nil)

	got, err := svc.ListPending(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, pending, got)

	_, err = svc.ListPending(context.Background(), "")
	require.Error(t, err)
}
