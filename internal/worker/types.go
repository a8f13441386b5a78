package worker

import (
	"context"
	"time"

	"vidsage/features/queue"
	"vidsage/features/video"
)

// JobStore is the slice of the queue repository the pool drives.
type JobStore interface {
	ClaimBatch(ctx context.Context, limit int) ([]queue.Job, error)
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, errMsg string) error
	Requeue(ctx context.Context, jobID, errMsg string, retryCount int) error
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// VideoStore is the slice of the video repository the pool mutates.
type VideoStore interface {
	Get(ctx context.Context, id string) (*video.Video, error)
	SetArtifacts(ctx context.Context, id, transcript string, embedding []byte, model string) (int64, error)
	SetStatus(ctx context.Context, id, status string) error
	ReplaceChunks(ctx context.Context, videoID string, chunks []video.Chunk) error
}

// Embedder is the encoding surface of the embedding engine.
type Embedder interface {
	EncodeOne(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TranscriptFetcher fetches raw transcript text for one video.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// QuizPublisher hands completed videos off to the quiz generation queue.
// Fire-and-forget: the secondary pipeline retries on its own.
type QuizPublisher interface {
	Publish(topic string, body []byte) error
}
