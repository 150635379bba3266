package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/verdantlabs/verdant/internal/api"
	"github.com/verdantlabs/verdant/internal/api/middleware"
	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/service"
)

type AnalyticsService interface {
	Overview(ctx context.Context, tenantID string) (*service.Overview, error)
}

type TrackerService interface {
	ListPending(ctx context.Context, tenantID string) ([]*domain.UnansweredQuery, error)
	Dismiss(ctx context.Context, tenantID, queryID string) error
	Delete(ctx context.Context, tenantID, queryID string) error
	Approve(ctx context.Context, tenantID, queryID, question, answer string) (*domain.FaqEntry, error)
}

type SuggestionService interface {
	GenerateSuggestions(ctx context.Context, tenantID string) ([]service.FaqSuggestion, error)
}

// AnalyticsHandler exposes the admin feedback loop: usage counts, tracked
// unanswered queries, model-drafted suggestions, and their promotion to FAQs.
type AnalyticsHandler struct {
	analytics   AnalyticsService
	tracker     TrackerService
	suggestions SuggestionService
}

func NewAnalyticsHandler(analytics AnalyticsService, tracker TrackerService, suggestions SuggestionService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics:   analytics,
		tracker:     tracker,
		suggestions: suggestions,
	}
}

func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	overview, err := h.analytics.Overview(r.Context(), tenantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, overview)
}

type UnansweredQueryResponse struct {
	ID          string  `json:"id"`
	Question    string  `json:"question"`
	Score       float64 `json:"score"`
	Count       int     `json:"count"`
	Status      string  `json:"status"`
	FirstSeenAt string  `json:"first_seen_at"`
	LastSeenAt  string  `json:"last_seen_at"`
}

func queryToResponse(q *domain.UnansweredQuery) *UnansweredQueryResponse {
	return &UnansweredQueryResponse{
		ID:          q.ID,
		Question:    q.Question,
		Score:       q.Score,
		Count:       q.Count,
		Status:      string(q.Status),
		FirstSeenAt: q.FirstSeenAt.Format("2006-01-02T15:04:05Z"),
		LastSeenAt:  q.LastSeenAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *AnalyticsHandler) ListQueries(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	queries, err := h.tracker.ListPending(r.Context(), tenantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*UnansweredQueryResponse, len(queries))
	for i, q := range queries {
		responses[i] = queryToResponse(q)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *AnalyticsHandler) DismissQuery(w http.ResponseWriter, r *http.Request) {
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

	if err := h.tracker.Dismiss(r.Context(), tenantID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": string(domain.UnansweredStatusDismissed)})
}

func (h *AnalyticsHandler) DeleteQuery(w http.ResponseWriter, r *http.Request) {
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

	if err := h.tracker.Delete(r.Context(), tenantID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

type ApproveQueryRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ApproveQuery promotes a tracked query to an FAQ entry. The question defaults
// to the tracked phrasing when omitted; the answer is required.
func (h *AnalyticsHandler) ApproveQuery(w http.ResponseWriter, r *http.Request) {
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

	var req ApproveQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Answer == "" {
		api.Error(w, http.StatusBadRequest, "answer is required")
		return
	}

	entry, err := h.tracker.Approve(r.Context(), tenantID, id, req.Question, req.Answer)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, faqToResponse(entry))
}

func (h *AnalyticsHandler) GenerateSuggestions(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	suggestions, err := h.suggestions.GenerateSuggestions(r.Context(), tenantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, suggestions)
}
