package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"vidsage/features/video"
	"vidsage/internal/embedding"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50

	previewChars = 150
)

// ErrNoEmbedding marks a video whose enrichment has not produced an
// embedding yet; it cannot anchor a similarity query.
var ErrNoEmbedding = errors.New("video has no embedding")

// QueryEncoder encodes free-text queries through the same pipeline used at
// ingestion, so query and corpus vectors stay comparable.
type QueryEncoder interface {
	EncodeOne(ctx context.Context, text string) ([]float32, error)
}

// VideoReader is the read-side slice of the video repository.
type VideoReader interface {
	Get(ctx context.Context, id string) (*video.Video, error)
	ListEmbedded(ctx context.Context, courseID, excludeID string) ([]video.Embedded, error)
	ListChunks(ctx context.Context, courseID string) ([]video.Chunk, error)
}

// Match is one ranked similarity hit. Preview is set only when a transcript
// chunk produced the score.
type Match struct {
	VideoID string  `json:"video_id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Preview string  `json:"preview,omitempty"`
}

type Service struct {
	videos  VideoReader
	encoder QueryEncoder
}

func NewService(videos VideoReader, encoder QueryEncoder) *Service {
	return &Service{videos: videos, encoder: encoder}
}

// SimilarVideos ranks other videos against the stored embedding of videoID,
// optionally scoped to one course. Brute force over every stored vector.
func (s *Service) SimilarVideos(ctx context.Context, videoID string, limit int, courseID string) ([]Match, error) {
	limit = clampLimit(limit)

	v, err := s.videos.Get(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if len(v.Embedding) == 0 {
		return nil, ErrNoEmbedding
	}
	query, err := embedding.FromBytes(v.Embedding)
	if err != nil {
		return nil, fmt.Errorf("decode embedding for %s: %w", videoID, err)
	}

	items, err := s.videos.ListEmbedded(ctx, courseID, videoID)
	if err != nil {
		return nil, fmt.Errorf("list embedded videos: %w", err)
	}

	candidates := make([]embedding.Candidate, 0, len(items))
	titles := make(map[string]string, len(items))
	for _, it := range items {
		vec, err := embedding.FromBytes(it.Embedding)
		if err != nil {
			slog.WarnContext(ctx, "skipping corrupt embedding", "video_id", it.ID, "error", err)
			continue
		}
		candidates = append(candidates, embedding.Candidate{ID: it.ID, Vector: vec})
		titles[it.ID] = it.Title
	}

	matches := make([]Match, 0, limit)
	for _, sc := range embedding.TopK(query, candidates, limit) {
		matches = append(matches, Match{VideoID: sc.ID, Title: titles[sc.ID], Score: sc.Score})
	}
	return matches, nil
}

// Search encodes a free-text query and ranks it against whole-video and
// chunk embeddings. Chunk hits collapse back to their parent video keeping
// the best-scoring chunk, whose text becomes the preview.
func (s *Service) Search(ctx context.Context, query string, limit int, courseID string) ([]Match, error) {
	limit = clampLimit(limit)

	queryVec, err := s.encoder.EncodeOne(ctx, query)
	if err != nil {
		return nil, err
	}

	items, err := s.videos.ListEmbedded(ctx, courseID, "")
	if err != nil {
		return nil, fmt.Errorf("list embedded videos: %w", err)
	}
	chunks, err := s.videos.ListChunks(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	type source struct {
		videoID string
		preview string
	}

	candidates := make([]embedding.Candidate, 0, len(items)+len(chunks))
	sources := make(map[string]source, len(items)+len(chunks))
	titles := make(map[string]string, len(items))

	for _, it := range items {
		vec, err := embedding.FromBytes(it.Embedding)
		if err != nil {
			slog.WarnContext(ctx, "skipping corrupt embedding", "video_id", it.ID, "error", err)
			continue
		}
		candidates = append(candidates, embedding.Candidate{ID: it.ID, Vector: vec})
		sources[it.ID] = source{videoID: it.ID}
		titles[it.ID] = it.Title
	}
	for _, c := range chunks {
		vec, err := embedding.FromBytes(c.Embedding)
		if err != nil {
			slog.WarnContext(ctx, "skipping corrupt chunk embedding", "video_id", c.VideoID, "idx", c.Idx, "error", err)
			continue
		}
		key := fmt.Sprintf("%s:%d", c.VideoID, c.Idx)
		candidates = append(candidates, embedding.Candidate{ID: key, Vector: vec})
		sources[key] = source{videoID: c.VideoID, preview: preview(c.Text)}
	}

	// Over-fetch so that several chunks of one video cannot crowd distinct
	// videos out of the final page.
	scored := embedding.TopK(queryVec, candidates, limit*2)

	matches := make([]Match, 0, limit)
	seen := make(map[string]bool, limit)
	for _, sc := range scored {
		src := sources[sc.ID]
		if seen[src.videoID] {
			continue
		}
		seen[src.videoID] = true
		matches = append(matches, Match{
			VideoID: src.videoID,
			Title:   titles[src.videoID],
			Score:   sc.Score,
			Preview: src.preview,
		})
		if len(matches) == limit {
			break
		}
	}
	return matches, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= previewChars {
		return text
	}
	return string(r[:previewChars]) + "..."
}
