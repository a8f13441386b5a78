package video

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("video not found")

type Repository interface {
	Get(ctx context.Context, id string) (*Video, error)
	SetArtifacts(ctx context.Context, id, transcript string, embedding []byte, model string) (int64, error)
	SetStatus(ctx context.Context, id, status string) error
	ReplaceChunks(ctx context.Context, videoID string, chunks []Chunk) error
	ListEmbedded(ctx context.Context, courseID, excludeID string) ([]Embedded, error)
	ListChunks(ctx context.Context, courseID string) ([]Chunk, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Video, error) {
	v := &Video{}
	var transcript, embeddingModel sql.NullString
	var embedding []byte

	query := `SELECT id, course_id, title, transcript, embedding, embedding_model, processing_status,
		transcript_fetched_at, embedding_generated_at, created_at, updated_at
		FROM videos WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.CourseID, &v.Title, &transcript, &embedding, &embeddingModel, &v.ProcessingStatus,
		&v.TranscriptFetchedAt, &v.EmbeddingGeneratedAt, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.Transcript = transcript.String
	v.EmbeddingModel = embeddingModel.String
	v.Embedding = embedding
	return v, nil
}

// SetArtifacts writes the enrichment output in one statement and reports
// how many rows were touched; the caller treats zero as an anomaly to log,
// not a failure.
func (r *PostgresRepo) SetArtifacts(ctx context.Context, id, transcript string, embedding []byte, model string) (int64, error) {
	query := `UPDATE videos SET transcript = $2, embedding = $3, embedding_model = $4,
		processing_status = 'completed', transcript_fetched_at = NOW(), embedding_generated_at = NOW(), updated_at = NOW()
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, transcript, embedding, model)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepo) SetStatus(ctx context.Context, id, status string) error {
	query := `UPDATE videos SET processing_status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, status)
	return err
}

// ReplaceChunks swaps the chunk set for a video atomically; a re-run of
// enrichment must not leave chunks from the previous transcript behind.
func (r *PostgresRepo) ReplaceChunks(ctx context.Context, videoID string, chunks []Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM video_chunks WHERE video_id = $1`, videoID); err != nil {
		return err
	}

	for _, c := range chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO video_chunks (video_id, idx, text, embedding) VALUES ($1, $2, $3, $4)`,
			videoID, c.Idx, c.Text, c.Embedding)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListEmbedded returns every video with a stored embedding, optionally
// scoped to a course and excluding one id (the query source).
func (r *PostgresRepo) ListEmbedded(ctx context.Context, courseID, excludeID string) ([]Embedded, error) {
	query := `SELECT id, course_id, title, embedding FROM videos
		WHERE embedding IS NOT NULL
		AND ($1 = '' OR course_id = $1)
		AND ($2 = '' OR id != $2)
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, courseID, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Embedded
	for rows.Next() {
		var e Embedded
		if err := rows.Scan(&e.ID, &e.CourseID, &e.Title, &e.Embedding); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListChunks(ctx context.Context, courseID string) ([]Chunk, error) {
	query := `SELECT c.video_id, c.idx, c.text, c.embedding FROM video_chunks c
		JOIN videos v ON v.id = c.video_id
		WHERE ($1 = '' OR v.course_id = $1)
		ORDER BY c.video_id, c.idx`
	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.VideoID, &c.Idx, &c.Text, &c.Embedding); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
