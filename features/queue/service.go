package queue

import (
	"context"
	"log/slog"
	"time"
)

// BatchResult reports how an enqueue batch was split.
type BatchResult struct {
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EnqueueBatch queues every id that does not already have a job. Ids with
// an existing job (any state) are counted as skipped, not errors.
func (s *Service) EnqueueBatch(ctx context.Context, ids []string, priority int) (BatchResult, error) {
	var res BatchResult
	for _, id := range ids {
		queued, err := s.repo.Enqueue(ctx, id, priority)
		if err != nil {
			return res, err
		}
		if queued {
			res.Queued++
		} else {
			res.Skipped++
			slog.InfoContext(ctx, "video already queued, skipping", "video_id", id)
		}
	}
	slog.InfoContext(ctx, "batch enqueued", "queued", res.Queued, "skipped", res.Skipped, "priority", priority)
	return res, nil
}

func (s *Service) Status(ctx context.Context) (StatusCounts, error) {
	return s.repo.Status(ctx)
}

func (s *Service) CourseStatus(ctx context.Context, courseID string) (*CourseStatus, error) {
	return s.repo.CourseStatus(ctx, courseID)
}

// RetryFailed resets all terminally failed jobs so the pool picks them up
// again. Failed jobs are never resurrected automatically.
func (s *Service) RetryFailed(ctx context.Context) (int, error) {
	n, err := s.repo.ResetFailed(ctx)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "reset failed jobs to pending", "count", n)
	return n, nil
}

func (s *Service) PurgeCompleted(ctx context.Context, olderThanDays int) (int, error) {
	n, err := s.repo.PurgeCompleted(ctx, time.Duration(olderThanDays)*24*time.Hour)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "purged completed jobs", "count", n, "older_than_days", olderThanDays)
	return n, nil
}
