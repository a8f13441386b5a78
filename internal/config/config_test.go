package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBHost)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, 384, cfg.EmbeddingDim)
	assert.Equal(t, 3, cfg.WorkerMaxConcurrent)
	assert.Equal(t, 5, cfg.WorkerPollSeconds)
	assert.Equal(t, 3, cfg.WorkerMaxRetries)
	assert.Equal(t, 2.0, cfg.RateDelayMinSeconds)
	assert.Equal(t, 5.0, cfg.RateDelayMaxSeconds)
	assert.Equal(t, "quiz.generate", cfg.QuizTopic)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("WORKER_MAX_CONCURRENT", "7")
	t.Setenv("EMBEDDING_DIM", "768")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, 7, cfg.WorkerMaxConcurrent)
	assert.Equal(t, 768, cfg.EmbeddingDim)
}

func TestValidate(t *testing.T) {
	t.Run("MissingDBHost", func(t *testing.T) {
		cfg := &Config{DBUser: "u", DBName: "n", EmbeddingDim: 384, WorkerMaxConcurrent: 3, RateDelayMaxSeconds: 5}
		err := cfg.Validate()
		assert.True(t, errors.Is(err, ErrMissingRequired))
	})

	t.Run("ZeroDim", func(t *testing.T) {
		cfg := &Config{DBHost: "h", DBUser: "u", DBName: "n", WorkerMaxConcurrent: 3, RateDelayMaxSeconds: 5}
		err := cfg.Validate()
		assert.True(t, errors.Is(err, ErrMissingRequired))
	})

	t.Run("InvertedRateRange", func(t *testing.T) {
		cfg := &Config{DBHost: "h", DBUser: "u", DBName: "n", EmbeddingDim: 384, WorkerMaxConcurrent: 3,
			RateDelayMinSeconds: 5, RateDelayMaxSeconds: 2}
		err := cfg.Validate()
		assert.True(t, errors.Is(err, ErrMissingRequired))
	})
}
