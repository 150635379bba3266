package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"verdant-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Embedding gateway
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbeddingBatchSize  int    `envconfig:"EMBEDDING_BATCH_SIZE" default:"100"`

	// Generation backend: exactly one is active per deployment.
	AIProvider       string `envconfig:"AI_PROVIDER" default:"openai"`
	AIModel          string `envconfig:"AI_MODEL"`
	AnthropicAPIKey  string `envconfig:"ANTHROPIC_API_KEY"`
	OpenRouterAPIKey string `envconfig:"OPENROUTER_API_KEY"`

	// Retrieval policy
	RetrievalTopK       int     `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.15"`
	TrackScoreLow       float64 `envconfig:"TRACK_SCORE_LOW" default:"0.20"`
	TrackScoreHigh      float64 `envconfig:"TRACK_SCORE_HIGH" default:"0.65"`

	// Bootstrap: create initial tenant and API key on startup
	InitTenantName string `envconfig:"INIT_TENANT_NAME"`
	InitAPIKey     string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("VERDANT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	// envconfig accepts a variable that is set but empty.
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("VERDANT_DATABASE_URL is required")
	}

	if cfg.TrackScoreLow >= cfg.TrackScoreHigh {
		return nil, fmt.Errorf("VERDANT_TRACK_SCORE_LOW must be below VERDANT_TRACK_SCORE_HIGH")
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
