// Package embedding turns text into fixed-dimension vectors through the
// OpenAI embeddings API. Queries and document chunks go through the same
// gateway so both sides of a similarity comparison share one model.
package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"
	// DefaultDimensions is the vector width of the default model.
	DefaultDimensions = 1536
	// DefaultBatchSize caps texts per upstream request.
	DefaultBatchSize = 100
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected width
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// EmbeddingAPI defines the upstream interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Gateway batches and validates embedding requests.
type Gateway struct {
	api        EmbeddingAPI
	dimensions int
	batchSize  int
}

type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIAdapter(apiKey string, model string) *OpenAIAdapter {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIAdapter{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}
}

// CreateEmbeddings calls the OpenAI API for one batch. Result order matches
// input order.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

type Config struct {
	APIKey     string
	Model      string
	Dimensions int
	BatchSize  int
}

// NewGateway creates a gateway with explicit configuration.
func NewGateway(cfg Config) *Gateway {
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Gateway{
		api:        NewOpenAIAdapter(cfg.APIKey, cfg.Model),
		dimensions: dimensions,
		batchSize:  batchSize,
	}
}

// NewGatewayWithAPI creates a gateway over a custom upstream, used in tests.
func NewGatewayWithAPI(api EmbeddingAPI, dimensions, batchSize int) *Gateway {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Gateway{api: api, dimensions: dimensions, batchSize: batchSize}
}

// Dimensions returns the configured vector width.
func (g *Gateway) Dimensions() int {
	return g.dimensions
}

// EmbedQuery embeds a single query string.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embeddings, err := g.api.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
	}
	if err := g.checkDimensions(embeddings[0]); err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts in sub-batches issued concurrently. Output order
// matches input order. Any sub-batch failure aborts the whole call: partial
// embeddings never reach the index.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("text at index %d: %w", i, ErrEmptyText)
		}
	}

	embeddings := make([][]float32, len(texts))

	eg, egCtx := errgroup.WithContext(ctx)
	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		eg.Go(func() error {
			batch, err := g.api.CreateEmbeddings(egCtx, texts[start:end])
			if err != nil {
				return fmt.Errorf("failed to embed batch [%d:%d]: %w", start, end, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("batch [%d:%d]: expected %d embeddings, got %d", start, end, end-start, len(batch))
			}
			for i, e := range batch {
				if err := g.checkDimensions(e); err != nil {
					return err
				}
				embeddings[start+i] = e
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

func (g *Gateway) checkDimensions(e []float32) error {
	if len(e) != g.dimensions {
		return fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, g.dimensions, len(e))
	}
	return nil
}
