package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"vidsage/features/queue"
	"vidsage/features/video"
	"vidsage/internal/backoff"
	"vidsage/internal/embedding"
	"vidsage/internal/transcript"
)

// Config tunes the pool. Zero values fall back to the defaults below.
type Config struct {
	MaxConcurrent  int
	PollInterval   time.Duration
	MaxRetries     int
	RateDelayMin   time.Duration
	RateDelayMax   time.Duration
	StaleAfter     time.Duration
	EmbeddingModel string
	QuizTopic      string
}

const (
	defaultMaxConcurrent = 3
	defaultPollInterval  = 5 * time.Second
	defaultMaxRetries    = 3
	defaultStaleAfter    = 15 * time.Minute

	fetchAttempts = 3
)

// Pool claims pending jobs on a fixed poll interval and processes them
// under a counting semaphore, so work in flight never exceeds
// MaxConcurrent. The atomic claim in the job store is the only other
// concurrency control needed.
type Pool struct {
	jobs    JobStore
	videos  VideoStore
	engine  Embedder
	fetcher TranscriptFetcher
	quiz    QuizPublisher

	cfg Config
	sem *semaphore.Weighted

	running atomic.Bool
	done    chan struct{}

	// backoffUnit scales retry delays; tests shrink it.
	backoffUnit time.Duration
}

func NewPool(jobs JobStore, videos VideoStore, engine Embedder, fetcher TranscriptFetcher, quiz QuizPublisher, cfg Config) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.QuizTopic == "" {
		cfg.QuizTopic = "quiz.generate"
	}
	return &Pool{
		jobs:        jobs,
		videos:      videos,
		engine:      engine,
		fetcher:     fetcher,
		quiz:        quiz,
		cfg:         cfg,
		sem:         semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		done:        make(chan struct{}),
		backoffUnit: time.Second,
	}
}

// Start runs the polling loop until Stop is called or ctx is canceled. The
// in-flight batch always drains before Start returns.
func (p *Pool) Start(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	defer close(p.done)

	slog.InfoContext(ctx, "worker pool started",
		"max_concurrent", p.cfg.MaxConcurrent, "poll_interval", p.cfg.PollInterval)

	for p.running.Load() {
		if reclaimed, err := p.jobs.ReclaimStale(ctx, p.cfg.StaleAfter); err != nil {
			slog.ErrorContext(ctx, "stale reclaim failed", "error", err)
		} else if reclaimed > 0 {
			slog.WarnContext(ctx, "reclaimed stale processing jobs", "count", reclaimed)
		}

		// A batch-level failure must not kill the loop; a transient store
		// outage heals on a later cycle.
		if err := p.processBatch(ctx); err != nil {
			slog.ErrorContext(ctx, "batch processing error", "error", err)
		}

		select {
		case <-time.After(p.cfg.PollInterval):
		case <-ctx.Done():
			p.running.Store(false)
		}
	}

	slog.InfoContext(ctx, "worker pool stopped")
}

// Stop ends polling after the current cycle. In-flight jobs are not
// canceled; callers wait for Start to return.
func (p *Pool) Stop() {
	p.running.Store(false)
}

// Done is closed once the polling loop has exited and the last batch has
// drained.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

func (p *Pool) processBatch(ctx context.Context) error {
	jobs, err := p.jobs.ClaimBatch(ctx, p.cfg.MaxConcurrent)
	if err != nil {
		return fmt.Errorf("claim batch: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "processing batch", "count", len(jobs))

	var wg sync.WaitGroup
	for _, job := range jobs {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			// Context gone; the job stays processing and will be reclaimed
			// as stale later.
			break
		}
		wg.Add(1)
		go func(j queue.Job) {
			defer wg.Done()
			defer p.sem.Release(1)
			p.processOne(ctx, j)
		}(job)
	}
	wg.Wait()
	return nil
}

// processOne runs the full enrichment for one claimed job. Every error is
// contained here; nothing propagates to the batch.
func (p *Pool) processOne(ctx context.Context, job queue.Job) {
	slog.InfoContext(ctx, "processing video", "video_id", job.ContentID, "retry_count", job.RetryCount)

	v, err := p.videos.Get(ctx, job.ContentID)
	if errors.Is(err, video.ErrNotFound) {
		// Data inconsistency, not a transient fault: fail without spending
		// retries.
		msg := fmt.Sprintf("video %s not found", job.ContentID)
		slog.ErrorContext(ctx, "video missing, failing job permanently", "video_id", job.ContentID)
		if err := p.jobs.MarkFailed(ctx, job.ID, msg); err != nil {
			slog.ErrorContext(ctx, "mark failed errored", "error", err, "job_id", job.ID)
		}
		return
	}
	if err != nil {
		p.handleFailure(ctx, job, fmt.Errorf("fetch video: %w", err))
		return
	}

	text, err := p.fetchTranscript(ctx, v.ID)
	if err != nil {
		p.handleFailure(ctx, job, fmt.Errorf("fetch transcript: %w", err))
		return
	}

	vec, err := p.engine.EncodeOne(ctx, text)
	if err != nil {
		p.handleFailure(ctx, job, fmt.Errorf("generate embedding: %w", err))
		return
	}

	chunks, err := p.embedChunks(ctx, v.ID, text)
	if err != nil {
		p.handleFailure(ctx, job, fmt.Errorf("embed chunks: %w", err))
		return
	}

	// Artifacts are already produced; from here on anomalies are logged
	// rather than re-failing the job.
	n, err := p.videos.SetArtifacts(ctx, v.ID, text, embedding.ToBytes(vec), p.cfg.EmbeddingModel)
	if err != nil {
		slog.ErrorContext(ctx, "artifact write failed", "error", err, "video_id", v.ID)
	} else if n == 0 {
		slog.WarnContext(ctx, "artifact write touched no rows", "video_id", v.ID)
	}

	if len(chunks) > 0 {
		if err := p.videos.ReplaceChunks(ctx, v.ID, chunks); err != nil {
			slog.ErrorContext(ctx, "chunk write failed", "error", err, "video_id", v.ID)
		}
	}

	p.handoffQuiz(ctx, v.ID)

	if err := p.jobs.MarkCompleted(ctx, job.ID); err != nil {
		slog.ErrorContext(ctx, "mark completed errored", "error", err, "job_id", job.ID)
		return
	}
	slog.InfoContext(ctx, "video processed", "video_id", v.ID, "transcript_chars", len(text), "chunks", len(chunks))
}

// fetchTranscript throttles, then fetches with its own retry loop. These
// retries live inside one job attempt; the job-level failure handler only
// sees the final outcome.
func (p *Pool) fetchTranscript(ctx context.Context, videoID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		// Rate delay before every attempt, retries included: the limit
		// protects the provider, not us.
		if err := sleepCtx(ctx, backoff.RateDelay(p.cfg.RateDelayMin, p.cfg.RateDelayMax)); err != nil {
			return "", err
		}

		text, err := p.fetcher.Fetch(ctx, videoID)
		if err == nil && text != "" {
			return text, nil
		}
		if errors.Is(err, transcript.ErrUnavailable) {
			return "", err
		}
		if err == nil {
			err = transcript.ErrUnavailable
		}
		lastErr = err

		if attempt < fetchAttempts-1 {
			delay := backoff.Retry(attempt, p.backoffUnit)
			slog.WarnContext(ctx, "transcript fetch failed, retrying",
				"video_id", videoID, "attempt", attempt+1, "delay", delay, "error", err)
			if err := sleepCtx(ctx, delay); err != nil {
				return "", err
			}
		}
	}
	return "", lastErr
}

// embedChunks produces chunk embeddings for transcripts long enough to
// split; a single-chunk transcript stores no chunk rows since the whole
// video embedding already covers it.
func (p *Pool) embedChunks(ctx context.Context, videoID, text string) ([]video.Chunk, error) {
	texts := embedding.ChunkText(text, embedding.DefaultChunkSize, embedding.DefaultChunkOverlap)
	if len(texts) <= 1 {
		return nil, nil
	}

	vecs, err := p.engine.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	chunks := make([]video.Chunk, len(texts))
	for i := range texts {
		chunks[i] = video.Chunk{
			VideoID:   videoID,
			Idx:       i,
			Text:      texts[i],
			Embedding: embedding.ToBytes(vecs[i]),
		}
	}
	return chunks, nil
}

func (p *Pool) handoffQuiz(ctx context.Context, videoID string) {
	body, err := json.Marshal(map[string]string{"video_id": videoID})
	if err != nil {
		slog.ErrorContext(ctx, "quiz payload marshal failed", "error", err, "video_id", videoID)
		return
	}
	if err := p.quiz.Publish(p.cfg.QuizTopic, body); err != nil {
		// The secondary queue is decoupled; a publish failure does not undo
		// the enrichment.
		slog.ErrorContext(ctx, "quiz handoff failed", "error", err, "video_id", videoID)
		return
	}
	slog.InfoContext(ctx, "quiz generation enqueued", "video_id", videoID)
}

// handleFailure applies the retry policy: backoff and requeue while the
// budget lasts, terminal failure once it is spent.
func (p *Pool) handleFailure(ctx context.Context, job queue.Job, cause error) {
	retryCount := job.RetryCount + 1
	msg := cause.Error()

	if retryCount >= p.cfg.MaxRetries {
		slog.ErrorContext(ctx, "job failed permanently",
			"video_id", job.ContentID, "retries", retryCount, "error", msg)
		if err := p.jobs.MarkFailed(ctx, job.ID, msg); err != nil {
			slog.ErrorContext(ctx, "mark failed errored", "error", err, "job_id", job.ID)
		}
		if err := p.videos.SetStatus(ctx, job.ContentID, string(queue.StatusFailed)); err != nil {
			slog.ErrorContext(ctx, "video status update errored", "error", err, "video_id", job.ContentID)
		}
		return
	}

	delay := backoff.ForRetryCount(retryCount, p.backoffUnit)
	slog.WarnContext(ctx, "job failed, backing off",
		"video_id", job.ContentID, "retry", retryCount, "max_retries", p.cfg.MaxRetries,
		"delay", delay, "error", msg)

	if err := sleepCtx(ctx, delay); err != nil {
		// Shutting down; leave the job processing for the stale reclaim.
		return
	}

	if err := p.jobs.Requeue(ctx, job.ID, msg, retryCount); err != nil {
		slog.ErrorContext(ctx, "requeue errored", "error", err, "job_id", job.ID)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
