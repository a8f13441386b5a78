package video

import "time"

// Video is the enrichment target. Embedding is the raw little-endian
// float32 blob produced by the embedding engine; it is present only once
// processing completed.
type Video struct {
	ID                   string     `json:"id"`
	CourseID             string     `json:"course_id"`
	Title                string     `json:"title"`
	Transcript           string     `json:"transcript,omitempty"`
	Embedding            []byte     `json:"-"`
	EmbeddingModel       string     `json:"embedding_model,omitempty"`
	ProcessingStatus     string     `json:"processing_status"`
	TranscriptFetchedAt  *time.Time `json:"transcript_fetched_at,omitempty"`
	EmbeddingGeneratedAt *time.Time `json:"embedding_generated_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Chunk is one overlapping transcript window with its own embedding,
// independently searchable and collapsed back to its parent video at query
// time.
type Chunk struct {
	VideoID   string
	Idx       int
	Text      string
	Embedding []byte
}

// Embedded is the projection used by similarity queries: only videos that
// actually have a stored embedding.
type Embedded struct {
	ID        string
	CourseID  string
	Title     string
	Embedding []byte
}
