package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/genai"
)

const (
	// maxSuggestionInputs caps how many tracked queries feed one generation.
	maxSuggestionInputs = 20
	// maxSuggestions caps how many candidates one generation may return.
	maxSuggestions = 5
)

const suggestionSystemPrompt = `You write FAQ entries for a customer support knowledge base.
Given a list of questions visitors asked that the knowledge base could not answer,
propose FAQ entries a support team should publish.

Respond with ONLY a JSON array, no prose and no markdown. Each element:
{"question": "<cleaned up question>", "answer": "<draft answer or empty string if you cannot draft one>", "originalQuery": "<the input question this came from>"}

Propose at most 5 entries. Merge near-duplicate questions into one entry.`

// FaqSuggestion is a model-drafted FAQ candidate awaiting human review. It is
// never persisted; approval goes through the tracker.
type FaqSuggestion struct {
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	OriginalQuery string `json:"originalQuery"`
}

// SuggestionService turns accumulated unanswered queries into draft FAQ
// entries using the generation backend's non-streaming mode.
type SuggestionService struct {
	queries  UnansweredQueryRepository
	faqs     FaqRepository
	provider genai.Provider
}

func NewSuggestionService(queries UnansweredQueryRepository, faqs FaqRepository, provider genai.Provider) *SuggestionService {
	return &SuggestionService{
		queries:  queries,
		faqs:     faqs,
		provider: provider,
	}
}

// GenerateSuggestions drafts FAQ candidates from the tenant's pending
// queries. A malformed model response is a hard error: a half-parsed
// suggestion list is worse to review than none.
func (s *SuggestionService) GenerateSuggestions(ctx context.Context, tenantID string) ([]FaqSuggestion, error) {
	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}

	pending, err := s.queries.ListByTenant(ctx, tenantID, domain.UnansweredStatusPending)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return []FaqSuggestion{}, nil
	}
	if len(pending) > maxSuggestionInputs {
		pending = pending[:maxSuggestionInputs]
	}

	var input strings.Builder
	input.WriteString("Unanswered visitor questions:\n")
	for _, q := range pending {
		fmt.Fprintf(&input, "- %s (asked %d times)\n", q.Question, q.Count)
	}

	raw, err := s.provider.Complete(ctx, suggestionSystemPrompt, input.String())
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeGeneration, "failed to generate FAQ suggestions", err)
	}

	suggestions, err := parseSuggestions(raw)
	if err != nil {
		return nil, err
	}

	return s.dedupeAgainstFaqs(ctx, tenantID, suggestions)
}

// parseSuggestions extracts the JSON array from a model response, tolerating
// a markdown code fence but nothing else.
func parseSuggestions(raw string) ([]FaqSuggestion, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))

	var suggestions []FaqSuggestion
	if err := json.Unmarshal([]byte(cleaned), &suggestions); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeParse, "model returned malformed suggestions", err)
	}

	valid := suggestions[:0]
	for _, sug := range suggestions {
		sug.Question = strings.TrimSpace(sug.Question)
		sug.Answer = strings.TrimSpace(sug.Answer)
		sug.OriginalQuery = strings.TrimSpace(sug.OriginalQuery)
		if sug.Question == "" {
			continue
		}
		valid = append(valid, sug)
		if len(valid) == maxSuggestions {
			break
		}
	}
	return valid, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// dedupeAgainstFaqs drops suggestions whose normalized question already has
// an active FAQ entry.
func (s *SuggestionService) dedupeAgainstFaqs(ctx context.Context, tenantID string, suggestions []FaqSuggestion) ([]FaqSuggestion, error) {
	existing, err := s.faqs.ListByTenant(ctx, tenantID, true)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(existing))
	for _, f := range existing {
		seen[NormalizeQuestion(f.Question)] = struct{}{}
	}

	kept := suggestions[:0]
	for _, sug := range suggestions {
		if _, dup := seen[NormalizeQuestion(sug.Question)]; dup {
			continue
		}
		kept = append(kept, sug)
	}
	return kept, nil
}
