package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VERDANT_DATABASE_URL", "postgres://localhost/verdant")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
	assert.Equal(t, 100, cfg.EmbeddingBatchSize)
	assert.Equal(t, "openai", cfg.AIProvider)
	assert.Equal(t, 5, cfg.RetrievalTopK)
	assert.Equal(t, 0.15, cfg.SimilarityThreshold)
	assert.Equal(t, 0.20, cfg.TrackScoreLow)
	assert.Equal(t, 0.65, cfg.TrackScoreHigh)
	assert.Equal(t, "verdant-documents", cfg.S3Bucket)
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("VERDANT_DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsInvertedTrackingBand(t *testing.T) {
	t.Setenv("VERDANT_DATABASE_URL", "postgres://localhost/verdant")
	t.Setenv("VERDANT_TRACK_SCORE_LOW", "0.7")
	t.Setenv("VERDANT_TRACK_SCORE_HIGH", "0.65")

	_, err := Load()
	require.Error(t, err)
}

func TestConfig_HasS3(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.HasS3())

	cfg.S3Endpoint = "http://localhost:9000"
	assert.False(t, cfg.HasS3())

	cfg.S3AccessKey = "key"
	cfg.S3SecretKey = "secret"
	assert.True(t, cfg.HasS3())
}

func TestConfig_HasOpenAI(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.HasOpenAI())

	cfg.OpenAIAPIKey = "sk-test"
	assert.True(t, cfg.HasOpenAI())
}
