package video

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	Repository

	video *Video
	err   error
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*Video, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.video, nil
}

func statusMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /videos/{id}/status", h.Status)
	return mux
}

func TestHandler_Status(t *testing.T) {
	now := time.Now().UTC()
	h := NewHandler(&fakeRepo{video: &Video{
		ID:               "vid-1",
		Transcript:       "some text",
		Embedding:        []byte{0, 0, 128, 63},
		ProcessingStatus: "completed",
		UpdatedAt:        now,
	}})

	req := httptest.NewRequest(http.MethodGet, "/videos/vid-1/status", nil)
	rec := httptest.NewRecorder()
	statusMux(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data statusResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "vid-1", resp.Data.VideoID)
	assert.Equal(t, "completed", resp.Data.Status)
	assert.True(t, resp.Data.HasTranscript)
	assert.True(t, resp.Data.HasEmbedding)
}

func TestHandler_StatusPending(t *testing.T) {
	h := NewHandler(&fakeRepo{video: &Video{
		ID:               "vid-2",
		ProcessingStatus: "pending",
	}})

	req := httptest.NewRequest(http.MethodGet, "/videos/vid-2/status", nil)
	rec := httptest.NewRecorder()
	statusMux(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data statusResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Data.HasTranscript)
	assert.False(t, resp.Data.HasEmbedding)
}

func TestHandler_StatusNotFound(t *testing.T) {
	h := NewHandler(&fakeRepo{err: ErrNotFound})

	req := httptest.NewRequest(http.MethodGet, "/videos/ghost/status", nil)
	rec := httptest.NewRecorder()
	statusMux(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}
