package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/verdantlabs/verdant/internal/agui"
	"github.com/verdantlabs/verdant/internal/api"
	"github.com/verdantlabs/verdant/internal/service"
)

type ChatService interface {
	ValidateRequest(req service.ChatRequest) error
	Run(ctx context.Context, req service.ChatRequest, emitter agui.Emitter) error
}

// ChatHandler serves the public widget endpoint. Responses stream as
// server-sent events; anything that can be rejected is rejected as plain JSON
// before the stream opens.
type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatMessageRequest struct {
	TenantID  string `json:"tenantId"`
	SessionID string `json:"sessionId,omitempty"`
	VisitorID string `json:"visitorId,omitempty"`
	Message   string `json:"message"`
}

func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chatReq := service.ChatRequest{
		TenantID:  req.TenantID,
		SessionID: req.SessionID,
		VisitorID: req.VisitorID,
		Message:   req.Message,
	}

	if err := h.svc.ValidateRequest(chatReq); err != nil {
		api.HandleError(w, err)
		return
	}

	emitter, err := agui.NewSSEEmitter(w)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Past this point the stream owns the response. Errors go to the log; the
	// client has already been told what it will be told via RUN_ERROR.
	if err := h.svc.Run(r.Context(), chatReq, emitter); err != nil {
		log.Printf("Chat run failed for tenant %s: %v", req.TenantID, err)
	}
}
