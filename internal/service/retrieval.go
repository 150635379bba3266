package service

import (
	"math"

	"github.com/verdantlabs/verdant/internal/domain"
)

// RetrievalPolicyConfig holds the relevance gate parameters.
type RetrievalPolicyConfig struct {
	// SimilarityThreshold is the minimum cosine similarity a match must
	// reach to count as relevant.
	SimilarityThreshold float64
	// TrackScoreLow and TrackScoreHigh bound the near-miss band that feeds
	// the unanswered-query tracker: low <= top score < high.
	TrackScoreLow  float64
	TrackScoreHigh float64
}

func DefaultRetrievalPolicyConfig() RetrievalPolicyConfig {
	return RetrievalPolicyConfig{
		SimilarityThreshold: 0.15,
		TrackScoreLow:       0.20,
		TrackScoreHigh:      0.65,
	}
}

// RetrievalDecision is the outcome of gating raw vector matches.
type RetrievalDecision struct {
	// Relevant holds the matches at or above the similarity threshold, in
	// the original descending-score order.
	Relevant []domain.RetrievalMatch
	// Confidence is the mean score of the relevant matches, rounded to two
	// decimals. Zero when nothing passed the gate.
	Confidence float64
	// Answerable is true when at least one match passed the gate.
	Answerable bool
	// TopScore is the best raw score before gating, 0 with no matches.
	TopScore float64
}

// RetrievalPolicy turns raw similarity scores into an answer/fallback
// decision. The policy is pure: same matches, same decision.
type RetrievalPolicy struct {
	cfg RetrievalPolicyConfig
}

func NewRetrievalPolicy(cfg RetrievalPolicyConfig) *RetrievalPolicy {
	if cfg.SimilarityThreshold <= 0 {
		cfg = DefaultRetrievalPolicyConfig()
	}
	return &RetrievalPolicy{cfg: cfg}
}

// Evaluate gates matches against the similarity threshold. Matches are
// expected in descending score order as returned by the index.
func (p *RetrievalPolicy) Evaluate(matches []domain.RetrievalMatch) RetrievalDecision {
	decision := RetrievalDecision{}
	if len(matches) == 0 {
		return decision
	}

	decision.TopScore = matches[0].Score

	sum := 0.0
	for _, m := range matches {
		if m.Score >= p.cfg.SimilarityThreshold {
			decision.Relevant = append(decision.Relevant, m)
			sum += m.Score
		}
	}

	if len(decision.Relevant) > 0 {
		decision.Answerable = true
		decision.Confidence = math.Round(sum/float64(len(decision.Relevant))*100) / 100
	}

	return decision
}

// ShouldTrack reports whether a query with the given top score falls in the
// near-miss band worth surfacing to tenant admins.
func (p *RetrievalPolicy) ShouldTrack(topScore float64) bool {
	return topScore >= p.cfg.TrackScoreLow && topScore < p.cfg.TrackScoreHigh
}
