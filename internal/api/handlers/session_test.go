package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/verdantlabs/verdant/internal/domain"
)

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) ListSessions(ctx context.Context, tenantID string) ([]*domain.ChatSession, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatSession), args.Error(1)
}

func (m *MockSessionService) GetSession(ctx context.Context, tenantID, sessionID string) (*domain.ChatSession, []*domain.ConversationTurn, error) {
	args := m.Called(ctx, tenantID, sessionID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.ChatSession), args.Get(1).([]*domain.ConversationTurn), args.Error(2)
}

func TestSessionHandler_List(t *testing.T) {
	svc := new(MockSessionService)
	handler := NewSessionHandler(svc)

	now := time.Now().UTC()
	svc.On("ListSessions", mock.Anything, "tenant-1").Return([]*domain.ChatSession{
		{ID: "sess-1", TenantID: "tenant-1", VisitorID: "visitor-1", CreatedAt: now, UpdatedAt: now},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	w := httptest.NewRecorder()

	handler.List(w, withTenant(req, "tenant-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sess-1")
	svc.AssertExpectations(t)
}

func TestSessionHandler_Get_WithTurns(t *testing.T) {
	svc := new(MockSessionService)
	handler := NewSessionHandler(svc)

	now := time.Now().UTC()
	session := &domain.ChatSession{ID: "sess-1", TenantID: "tenant-1", CreatedAt: now, UpdatedAt: now}
	confidence := 0.72
	turns := []*domain.ConversationTurn{
		{ID: "turn-1", SessionID: "sess-1", Role: domain.TurnRoleUser, Content: "how do refunds work", CreatedAt: now},
		{
			ID:         "turn-2",
			SessionID:  "sess-1",
			Role:       domain.TurnRoleAssistant,
			Content:    "Refunds are processed within 30 days.",
			Citations:  []domain.Citation{{Index: 1, Text: "Refund policy...", Score: 0.72, DocumentID: "doc-1"}},
			Confidence: &confidence,
			CreatedAt:  now.Add(time.Millisecond),
		},
	}
	svc.On("GetSession", mock.Anything, "tenant-1", "sess-1").Return(session, turns, nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions/sess-1", nil)
	req = withTenant(req, "tenant-1")
	req = withURLParam(req, "id", "sess-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "turn-2")
	assert.Contains(t, w.Body.String(), `"confidence":0.72`)
	svc.AssertExpectations(t)
}

func TestSessionHandler_Get_WrongTenant(t *testing.T) {
	svc := new(MockSessionService)
	handler := NewSessionHandler(svc)

	svc.On("GetSession", mock.Anything, "tenant-2", "sess-1").Return(nil, nil, domain.ErrSessionNotFound)

	req := httptest.NewRequest(http.MethodGet, "/sessions/sess-1", nil)
	req = withTenant(req, "tenant-2")
	req = withURLParam(req, "id", "sess-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}
