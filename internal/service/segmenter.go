package service

import (
	"regexp"
	"strings"
)

// SegmenterConfig controls chunking of extracted document text.
type SegmenterConfig struct {
	// MaxChunkTokens is the soft token budget per chunk (1 token ~ 4 chars).
	MaxChunkTokens int
	// OverlapTokens caps the word overlap carried into the next chunk.
	OverlapTokens int
	// MinChunkChars is the smallest trailing chunk worth emitting.
	MinChunkChars int
}

// DefaultSegmenterConfig provides sane defaults for segmentation.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		MaxChunkTokens: 300,
		OverlapTokens:  75,
		MinChunkChars:  20,
	}
}

// Chunk is a bounded span of document text, the unit of embedding and
// retrieval. Chunks are transient: they exist only between segmentation and
// vector upsert.
type Chunk struct {
	Text            string
	Index           int
	EstimatedTokens int
}

// Segmenter splits normalized plain text into overlapping, token-budgeted
// chunks. Segmentation is deterministic: identical input yields identical
// chunk boundaries.
type Segmenter struct {
	cfg SegmenterConfig
}

func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	if cfg.MaxChunkTokens <= 0 {
		cfg = DefaultSegmenterConfig()
	}
	return &Segmenter{cfg: cfg}
}

var (
	paragraphSplitRe = regexp.MustCompile(`\n\s*\n`)
	sentenceRe       = regexp.MustCompile(`[^.!?\n]+[.!?\n]+`)
)

// EstimateTokens approximates the token count of text (1 token ~ 4 chars).
// The heuristic is language-agnostic on purpose; it only has to be stable.
func EstimateTokens(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// Segment splits text into chunks. Chunk indices form a contiguous 0-based
// sequence in emission order and no emitted chunk has zero length.
func (s *Segmenter) Segment(text string) []Chunk {
	var chunks []Chunk

	current := ""
	index := 0
	for _, para := range paragraphSplitRe.Split(text, -1) {
		if strings.TrimSpace(para) == "" {
			continue
		}
		for _, sentence := range splitSentences(para) {
			combined := current + " " + sentence
			if EstimateTokens(combined) > s.cfg.MaxChunkTokens && strings.TrimSpace(current) != "" {
				chunks = append(chunks, Chunk{
					Text:            strings.TrimSpace(current),
					Index:           index,
					EstimatedTokens: EstimateTokens(current),
				})
				index++
				current = s.overlapSuffix(current) + " " + sentence
			} else {
				current = combined
			}
		}
	}

	if len(strings.TrimSpace(current)) > s.cfg.MinChunkChars {
		chunks = append(chunks, Chunk{
			Text:            strings.TrimSpace(current),
			Index:           index,
			EstimatedTokens: EstimateTokens(current),
		})
	}

	// A single over-budget chunk means the input had no usable paragraph
	// boundaries; re-split it on sentences alone, without overlap.
	if len(chunks) == 1 && EstimateTokens(chunks[0].Text) > s.cfg.MaxChunkTokens {
		chunks = s.resplitWithoutOverlap(chunks[0].Text)
	}

	return chunks
}

// overlapSuffix returns the last ~20% of the buffer's words, capped at
// OverlapTokens words, used to seed the next chunk.
func (s *Segmenter) overlapSuffix(buf string) string {
	words := strings.Fields(strings.TrimSpace(buf))
	overlap := len(words) * 20 / 100
	if overlap > s.cfg.OverlapTokens {
		overlap = s.cfg.OverlapTokens
	}
	if overlap <= 0 {
		return ""
	}
	return strings.Join(words[len(words)-overlap:], " ")
}

func (s *Segmenter) resplitWithoutOverlap(text string) []Chunk {
	var chunks []Chunk

	current := ""
	index := 0
	for _, sentence := range splitSentences(text) {
		if EstimateTokens(current+sentence) > s.cfg.MaxChunkTokens && strings.TrimSpace(current) != "" {
			chunks = append(chunks, Chunk{
				Text:            strings.TrimSpace(current),
				Index:           index,
				EstimatedTokens: EstimateTokens(current),
			})
			index++
			current = sentence
		} else {
			current += " " + sentence
		}
	}
	if len(strings.TrimSpace(current)) > s.cfg.MinChunkChars {
		chunks = append(chunks, Chunk{
			Text:            strings.TrimSpace(current),
			Index:           index,
			EstimatedTokens: EstimateTokens(current),
		})
	}

	return chunks
}

// splitSentences splits a paragraph into sentence-like spans on terminal
// punctuation. A paragraph with no terminal punctuation is one span.
func splitSentences(para string) []string {
	sentences := sentenceRe.FindAllString(para, -1)
	if len(sentences) == 0 {
		return []string{para}
	}
	return sentences
}
