package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"vidsage/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Process queues a batch of videos for enrichment.
// POST /admin/queue/process {"video_ids": [...], "priority": 0}
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoIDs []string `json:"video_ids"`
		Priority int      `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.VideoIDs) == 0 {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "video_ids is required", http.StatusBadRequest)
		return
	}

	res, err := h.service.EnqueueBatch(r.Context(), req.VideoIDs, req.Priority)
	if err != nil {
		slog.ErrorContext(r.Context(), "enqueue batch failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, res)
}

// QueueStatus reports queue counts by status.
// GET /admin/queue/status
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Status(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "queue status failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, counts)
}

// RetryFailed resets all failed jobs to pending.
// POST /admin/queue/retry-failed
func (h *Handler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.RetryFailed(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "retry failed jobs failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]int{"reset": n})
}

// Purge removes completed jobs older than a threshold.
// POST /admin/queue/purge?older_than_days=7
func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("older_than_days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			h.writeError(r.Context(), w, "VALIDATION_ERROR", "older_than_days must be a non-negative integer", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	n, err := h.service.PurgeCompleted(r.Context(), days)
	if err != nil {
		slog.ErrorContext(r.Context(), "purge completed jobs failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]int{"purged": n})
}

// CourseStatus reports processing progress for one course.
// GET /admin/courses/{id}/processing-status
func (h *Handler) CourseStatus(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("id")
	if courseID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "course id is required", http.StatusBadRequest)
		return
	}

	status, err := h.service.CourseStatus(r.Context(), courseID)
	if err != nil {
		slog.ErrorContext(r.Context(), "course status failed", "error", err, "course_id", courseID)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, status)
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
