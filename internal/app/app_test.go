package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsage/internal/config"
)

type stubEncoder struct{}

func (stubEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type stubPublisher struct{}

func (stubPublisher) Publish(topic string, body []byte) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		TranscriptBaseURL:   "http://transcripts:9000",
		EmbeddingModel:      "test-model",
		WorkerMaxConcurrent: 3,
		WorkerPollSeconds:   5,
		WorkerMaxRetries:    3,
		ServerPort:          8081,
	}
}

func TestNew_WiresRoutes(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a, err := New(testConfig(), db, stubPublisher{}, stubEncoder{})
	require.NoError(t, err)
	require.NotNil(t, a.Handler)
	require.NotNil(t, a.Worker)

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNew_ValidationWithoutDB(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a, err := New(testConfig(), db, stubPublisher{}, stubEncoder{})
	require.NoError(t, err)

	// Input validation fires before any repository call, so no sqlmock
	// expectations are needed.
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/queue/process", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
