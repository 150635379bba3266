package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/verdantlabs/verdant/internal/agui"
	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/genai"
)

const (
	stepRetrieval = "rag_retrieval"

	// persistTimeout bounds the background write of a finished turn.
	persistTimeout = 10 * time.Second
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *domain.ChatSession) error
	GetByID(ctx context.Context, id string) (*domain.ChatSession, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.ChatSession, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

type ConversationTurnRepository interface {
	Create(ctx context.Context, turn *domain.ConversationTurn) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.ConversationTurn, error)
}

// ChatRequest is one visitor message to answer.
type ChatRequest struct {
	TenantID  string
	SessionID string
	VisitorID string
	Message   string
}

// RunResult is the run-level payload attached to the closing event.
type RunResult struct {
	SessionID  string            `json:"sessionId"`
	Answerable bool              `json:"answerable"`
	Confidence float64           `json:"confidence"`
	Citations  []domain.Citation `json:"citations"`
	Language   string            `json:"language"`
}

// ChatService orchestrates one chat run: retrieve, decide, generate, persist.
// Every run emits a strictly ordered event sequence ending in exactly one of
// RUN_FINISHED or RUN_ERROR.
type ChatService struct {
	sessions ChatSessionRepository
	turns    ConversationTurnRepository
	vectors  VectorRepository
	faqs     FaqRepository
	embedder Embedder
	provider genai.Provider
	policy   *RetrievalPolicy
	tracker  *TrackerService
	uuidGen  UUIDGenerator
	topK     int
}

func NewChatService(
	sessions ChatSessionRepository,
	turns ConversationTurnRepository,
	vectors VectorRepository,
	faqs FaqRepository,
	embedder Embedder,
	provider genai.Provider,
	policy *RetrievalPolicy,
	tracker *TrackerService,
	uuidGen UUIDGenerator,
	topK int,
) *ChatService {
	if topK <= 0 {
		topK = 5
	}
	return &ChatService{
		sessions: sessions,
		turns:    turns,
		vectors:  vectors,
		faqs:     faqs,
		embedder: embedder,
		provider: provider,
		policy:   policy,
		tracker:  tracker,
		uuidGen:  uuidGen,
		topK:     topK,
	}
}

// ValidateRequest rejects malformed requests before any event is emitted, so
// transport-level errors stay out of the event stream.
func (s *ChatService) ValidateRequest(req ChatRequest) error {
	if req.TenantID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "message is required")
	}
	return nil
}

// Run executes one chat turn against the emitter. The returned error reports
// what the caller should log; the client has already been told everything it
// will be told through the event stream.
func (s *ChatService) Run(ctx context.Context, req ChatRequest, emitter agui.Emitter) error {
	if err := s.ValidateRequest(req); err != nil {
		return err
	}
	message := strings.TrimSpace(req.Message)
	language := ResolveLanguage(message)
	runID := s.uuidGen.NewString()

	session, err := s.resolveSession(ctx, req)
	if err != nil {
		// The emitter already owns the response, so a session failure must
		// still reach the client as a protocol frame rather than an empty
		// stream.
		seq := agui.NewSequence(emitter, runID, req.SessionID)
		return s.failRun(seq, domainErrorCode(err), "failed to resolve session", err)
	}

	seq := agui.NewSequence(emitter, runID, session.ID)

	if err := seq.RunStarted(); err != nil {
		return err
	}
	if err := seq.StepStarted(stepRetrieval); err != nil {
		return err
	}

	queryEmbedding, err := s.embedder.EmbedQuery(ctx, message)
	if err != nil {
		return s.failRun(seq, domain.ErrCodeRetrievalTransient, "retrieval is temporarily unavailable", err)
	}

	matches, err := s.vectors.Query(ctx, req.TenantID, queryEmbedding, s.topK)
	if err != nil {
		return s.failRun(seq, domain.ErrCodeRetrievalTransient, "retrieval is temporarily unavailable", err)
	}

	decision := s.policy.Evaluate(matches)

	// The raw top score feeds the tracker whether or not the question gets
	// answered; a weakly grounded answer is still a knowledge gap worth
	// surfacing to the tenant admin.
	if s.policy.ShouldTrack(decision.TopScore) {
		go s.trackQuery(req.TenantID, message, decision.TopScore)
	}

	if err := seq.StepFinished(stepRetrieval); err != nil {
		return err
	}

	if !decision.Answerable {
		return s.runFallback(ctx, seq, session, message, language)
	}
	return s.runGeneration(ctx, seq, session, message, language, decision)
}

// runFallback answers from the pre-localized fallback text without invoking
// the model.
func (s *ChatService) runFallback(ctx context.Context, seq *agui.Sequence, session *domain.ChatSession, message, language string) error {
	fallback := FallbackMessage(language)

	messageID := s.uuidGen.NewString()
	if err := seq.TextMessageStart(messageID); err != nil {
		return err
	}
	if err := seq.TextMessageContent(messageID, fallback); err != nil {
		return err
	}
	if err := seq.TextMessageEnd(messageID); err != nil {
		return err
	}

	// The canned answer carries an explicit zero confidence, not an absent one.
	zero := 0.0
	s.persistTurns(session, message, fallback, nil, &zero)

	return seq.RunFinished(RunResult{
		SessionID:  session.ID,
		Answerable: false,
		Confidence: 0,
		Citations:  []domain.Citation{},
		Language:   language,
	})
}

// runGeneration streams a grounded answer. A dead model stream fails the run;
// a dead client stops emission but the answer accumulated so far is still
// persisted either way.
func (s *ChatService) runGeneration(ctx context.Context, seq *agui.Sequence, session *domain.ChatSession, message, language string, decision RetrievalDecision) error {
	citations := buildCitations(decision.Relevant)
	systemPrompt := s.buildSystemPrompt(ctx, session.TenantID, language, decision.Relevant)

	stream, err := s.provider.StreamChat(ctx, systemPrompt, message)
	if err != nil {
		return s.failRun(seq, domain.ErrCodeGeneration, "answer generation failed", err)
	}
	defer stream.Close()

	messageID := s.uuidGen.NewString()
	if err := seq.TextMessageStart(messageID); err != nil {
		return err
	}

	var answer strings.Builder
	confidence := decision.Confidence

	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The model died mid-answer. Tell the client the run failed but
			// keep the partial text for the session history.
			s.persistTurns(session, message, answer.String(), citations, &confidence)
			return s.failRun(seq, domain.ErrCodeGeneration, "answer generation failed", err)
		}
		answer.WriteString(delta)
		if err := seq.TextMessageContent(messageID, delta); err != nil {
			// The client is gone. Nothing more can be emitted; persist what
			// was generated and stop.
			s.persistTurns(session, message, answer.String(), citations, &confidence)
			return fmt.Errorf("client disconnected during generation: %w", err)
		}
	}

	if err := seq.TextMessageEnd(messageID); err != nil {
		s.persistTurns(session, message, answer.String(), citations, &confidence)
		return fmt.Errorf("client disconnected during generation: %w", err)
	}

	s.persistTurns(session, message, answer.String(), citations, &confidence)

	return seq.RunFinished(RunResult{
		SessionID:  session.ID,
		Answerable: true,
		Confidence: confidence,
		Citations:  citations,
		Language:   language,
	})
}

// failRun emits RUN_ERROR and returns the underlying cause for logging.
func (s *ChatService) failRun(seq *agui.Sequence, code, clientMessage string, cause error) error {
	if emitErr := seq.RunError(code, clientMessage); emitErr != nil {
		log.Printf("Failed to emit run error: %v", emitErr)
	}
	return cause
}

func domainErrorCode(err error) string {
	var derr *domain.DomainError
	if errors.As(err, &derr) {
		return derr.Code
	}
	return domain.ErrCodeInternalError
}

func (s *ChatService) resolveSession(ctx context.Context, req ChatRequest) (*domain.ChatSession, error) {
	if req.SessionID != "" {
		session, err := s.sessions.GetByID(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		if session.TenantID != req.TenantID {
			return nil, domain.ErrSessionNotFound
		}
		return session, nil
	}

	now := time.Now().UTC()
	session := &domain.ChatSession{
		ID:        s.uuidGen.NewString(),
		TenantID:  req.TenantID,
		VisitorID: req.VisitorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// persistTurns writes the user and assistant turns in the background so slow
// storage never blocks or breaks a stream the client already received.
// Failures are logged, not surfaced.
func (s *ChatService) persistTurns(session *domain.ChatSession, userMessage, assistantMessage string, citations []domain.Citation, confidence *float64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		now := time.Now().UTC()
		userTurn := &domain.ConversationTurn{
			ID:        s.uuidGen.NewString(),
			SessionID: session.ID,
			Role:      domain.TurnRoleUser,
			Content:   userMessage,
			CreatedAt: now,
		}
		if err := s.turns.Create(ctx, userTurn); err != nil {
			log.Printf("Failed to persist user turn for session %s: %v", session.ID, err)
			return
		}

		if strings.TrimSpace(assistantMessage) != "" {
			assistantTurn := &domain.ConversationTurn{
				ID:         s.uuidGen.NewString(),
				SessionID:  session.ID,
				Role:       domain.TurnRoleAssistant,
				Content:    assistantMessage,
				Citations:  citations,
				Confidence: confidence,
				CreatedAt:  now.Add(time.Millisecond),
			}
			if err := s.turns.Create(ctx, assistantTurn); err != nil {
				log.Printf("Failed to persist assistant turn for session %s: %v", session.ID, err)
				return
			}
		}

		if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
			log.Printf("Failed to touch session %s: %v", session.ID, err)
		}
	}()
}

func (s *ChatService) trackQuery(tenantID, message string, topScore float64) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.tracker.Record(ctx, tenantID, message, topScore); err != nil {
		log.Printf("Failed to track unanswered query for tenant %s: %v", tenantID, err)
	}
}

// buildSystemPrompt grounds the model in the retrieved chunks and active FAQ
// entries, numbered to line up with the citations sent to the client.
func (s *ChatService) buildSystemPrompt(ctx context.Context, tenantID, language string, relevant []domain.RetrievalMatch) string {
	var b strings.Builder

	b.WriteString("You are a helpful support assistant. Answer using only the context below. ")
	b.WriteString("If the context does not contain the answer, say you don't know. ")
	fmt.Fprintf(&b, "Respond in %s.\n\n", LanguageName(language))

	b.WriteString("Context:\n")
	for i, m := range relevant {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, m.Text)
	}

	if faqs, err := s.faqs.ListByTenant(ctx, tenantID, true); err == nil && len(faqs) > 0 {
		b.WriteString("Frequently asked questions:\n")
		for _, f := range faqs {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", f.Question, f.Answer)
		}
	}

	return b.String()
}

func buildCitations(relevant []domain.RetrievalMatch) []domain.Citation {
	citations := make([]domain.Citation, len(relevant))
	for i, m := range relevant {
		citations[i] = domain.Citation{
			Index:      i + 1,
			Text:       m.Text,
			Score:      m.Score,
			DocumentID: m.DocumentID,
		}
	}
	return citations
}

// ListSessions returns a tenant's sessions, most recently active first.
func (s *ChatService) ListSessions(ctx context.Context, tenantID string) ([]*domain.ChatSession, error) {
	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	return s.sessions.ListByTenant(ctx, tenantID)
}

// GetSession returns one session with its full turn history.
func (s *ChatService) GetSession(ctx context.Context, tenantID, sessionID string) (*domain.ChatSession, []*domain.ConversationTurn, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.TenantID != tenantID {
		return nil, nil, domain.ErrSessionNotFound
	}

	turns, err := s.turns.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, turns, nil
}
