package video

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vidsage/internal/middleware"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

type statusResponse struct {
	VideoID       string     `json:"video_id"`
	Status        string     `json:"status"`
	HasTranscript bool       `json:"has_transcript"`
	HasEmbedding  bool       `json:"has_embedding"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Status reports a single video's enrichment state.
// GET /videos/{id}/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "video id is required", http.StatusBadRequest)
		return
	}

	v, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		h.writeError(r.Context(), w, "NOT_FOUND", "video not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "video status failed", "error", err, "video_id", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := statusResponse{
		VideoID:       v.ID,
		Status:        v.ProcessingStatus,
		HasTranscript: v.Transcript != "",
		HasEmbedding:  len(v.Embedding) > 0,
		UpdatedAt:     &v.UpdatedAt,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
