package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/verdantlabs/verdant/internal/api"
	"github.com/verdantlabs/verdant/internal/api/middleware"
	"github.com/verdantlabs/verdant/internal/domain"
)

type FaqService interface {
	Create(ctx context.Context, tenantID, question, answer, category string) (*domain.FaqEntry, error)
	List(ctx context.Context, tenantID string, activeOnly bool) ([]*domain.FaqEntry, error)
	Remove(ctx context.Context, tenantID, id string) error
}

type FaqHandler struct {
	svc FaqService
}

func NewFaqHandler(svc FaqService) *FaqHandler {
	return &FaqHandler{svc: svc}
}

type CreateFaqRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category,omitempty"`
}

type FaqResponse struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	Category      string `json:"category"`
	SourceQueryID string `json:"source_query_id,omitempty"`
	Active        bool   `json:"active"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func faqToResponse(f *domain.FaqEntry) *FaqResponse {
	return &FaqResponse{
		ID:            f.ID,
		Question:      f.Question,
		Answer:        f.Answer,
		Category:      f.Category,
		SourceQueryID: f.SourceQueryID,
		Active:        f.Active,
		CreatedAt:     f.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:     f.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *FaqHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateFaqRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.Answer == "" {
		api.Error(w, http.StatusBadRequest, "answer is required")
		return
	}

	entry, err := h.svc.Create(r.Context(), tenantID, req.Question, req.Answer, req.Category)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, faqToResponse(entry))
}

func (h *FaqHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	if tenantID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	activeOnly := true
	if raw := r.URL.Query().Get("active_only"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			activeOnly = parsed
		}
	}

	entries, err := h.svc.List(r.Context(), tenantID, activeOnly)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*FaqResponse, len(entries))
	for i, f := range entries {
		responses[i] = faqToResponse(f)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *FaqHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.svc.Remove(r.Context(), tenantID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
