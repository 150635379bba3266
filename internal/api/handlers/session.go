package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/verdantlabs/verdant/internal/api"
	"github.com/verdantlabs/verdant/internal/api/middleware"
	"github.com/verdantlabs/verdant/internal/domain"
)

type SessionService interface {
	ListSessions(ctx context.Context, tenantID string) ([]*domain.ChatSession, error)
	GetSession(ctx context.Context, tenantID, sessionID string) (*domain.ChatSession, []*domain.ConversationTurn, error)
}

type SessionHandler struct {
	svc SessionService
}

func NewSessionHandler(svc SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type SessionResponse struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	VisitorID string `json:"visitor_id,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type TurnResponse struct {
	ID         string            `json:"id"`
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	Citations  []domain.Citation `json:"citations,omitempty"`
	Confidence *float64          `json:"confidence,omitempty"`
	CreatedAt  string            `json:"created_at"`
}

type SessionDetailResponse struct {
	Session *SessionResponse `json:"session"`
	Turns   []*TurnResponse  `json:"turns"`
}

func sessionToResponse(s *domain.ChatSession) *SessionResponse {
	return &SessionResponse{
		ID:        s.ID,
		TenantID:  s.TenantID,
		VisitorID: s.VisitorID,
		CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: s.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func turnToResponse(t *domain.ConversationTurn) *TurnResponse {
	return &TurnResponse{
		ID:         t.ID,
		Role:       string(t.Role),
		Content:    t.Content,
		Citations:  t.Citations,
		Confidence: t.Confidence,
		CreatedAt:  t.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.svc.ListSessions(r.Context(), tenantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SessionResponse, len(sessions))
	for i, s := range sessions {
		responses[i] = sessionToResponse(s)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	session, turns, err := h.svc.GetSession(r.Context(), tenantID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	turnResponses := make([]*TurnResponse, len(turns))
	for i, t := range turns {
		turnResponses[i] = turnToResponse(t)
	}

	api.Success(w, http.StatusOK, SessionDetailResponse{
		Session: sessionToResponse(session),
		Turns:   turnResponses,
	})
}
