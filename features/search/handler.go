package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"vidsage/features/video"
	"vidsage/internal/embedding"
	"vidsage/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Search ranks videos against a free-text query.
// POST /videos/search {"query": "...", "limit": 10, "course_id": ""}
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query    string `json:"query"`
		Limit    int    `json:"limit"`
		CourseID string `json:"course_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "query is required", http.StatusBadRequest)
		return
	}

	matches, err := h.service.Search(r.Context(), req.Query, req.Limit, req.CourseID)
	if errors.Is(err, embedding.ErrEmptyText) {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "query is empty after cleaning", http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "search failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{"results": matches, "count": len(matches)})
}

// Similar lists the videos closest to a given video's embedding.
// GET /videos/{id}/similar?limit=&course_id=
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "video id is required", http.StatusBadRequest)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	matches, err := h.service.SimilarVideos(r.Context(), id, limit, r.URL.Query().Get("course_id"))
	if errors.Is(err, video.ErrNotFound) {
		h.writeError(r.Context(), w, "NOT_FOUND", "video not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, ErrNoEmbedding) {
		h.writeError(r.Context(), w, "NOT_READY", "video has not been processed yet", http.StatusConflict)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "similar videos failed", "error", err, "video_id", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{"results": matches, "count": len(matches)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
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
