package queue

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Enqueue(ctx context.Context, contentID string, priority int) (bool, error)
	ClaimBatch(ctx context.Context, limit int) ([]Job, error)
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, errMsg string) error
	Requeue(ctx context.Context, jobID, errMsg string, retryCount int) error
	Status(ctx context.Context) (StatusCounts, error)
	CourseStatus(ctx context.Context, courseID string) (*CourseStatus, error)
	ResetFailed(ctx context.Context) (int, error)
	PurgeCompleted(ctx context.Context, olderThan time.Duration) (int, error)
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const jobColumns = `id, content_id, status, priority, retry_count, error_message, created_at, updated_at`

// Enqueue inserts a pending job for contentID. It returns false without
// error if any job (in any state) already exists for that content item.
func (r *PostgresRepo) Enqueue(ctx context.Context, contentID string, priority int) (bool, error) {
	query := `INSERT INTO processing_jobs (id, content_id, status, priority, retry_count, error_message)
		VALUES ($1, $2, 'pending', $3, 0, '')
		ON CONFLICT (content_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, uuid.New().String(), contentID, priority)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClaimBatch atomically moves up to limit pending jobs to processing,
// highest priority first, oldest first within a priority. Each claim is a
// single-row atomic update; SKIP LOCKED guarantees two concurrent claimers
// never win the same row.
func (r *PostgresRepo) ClaimBatch(ctx context.Context, limit int) ([]Job, error) {
	query := `UPDATE processing_jobs SET status = 'processing', updated_at = NOW()
		WHERE id = (
			SELECT id FROM processing_jobs
			WHERE status = 'pending'
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	var claimed []Job
	for i := 0; i < limit; i++ {
		var j Job
		err := r.db.QueryRowContext(ctx, query).Scan(
			&j.ID, &j.ContentID, &j.Status, &j.Priority, &j.RetryCount, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, j)
	}
	return claimed, nil
}

func (r *PostgresRepo) MarkCompleted(ctx context.Context, jobID string) error {
	query := `UPDATE processing_jobs SET status = 'completed', updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, jobID)
	return err
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	query := `UPDATE processing_jobs SET status = 'failed', error_message = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, jobID, errMsg)
	return err
}

// Requeue returns a failed attempt to pending with its incremented retry
// counter; the error message is retained for visibility.
func (r *PostgresRepo) Requeue(ctx context.Context, jobID, errMsg string, retryCount int) error {
	query := `UPDATE processing_jobs SET status = 'pending', error_message = $2, retry_count = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, jobID, errMsg, retryCount)
	return err
}

func (r *PostgresRepo) Status(ctx context.Context) (StatusCounts, error) {
	var counts StatusCounts
	query := `SELECT status, COUNT(*) FROM processing_jobs GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return counts, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, err
		}
		parsed, err := ParseStatus(status)
		if err != nil {
			return counts, err
		}
		switch parsed {
		case StatusPending:
			counts.Pending = n
		case StatusProcessing:
			counts.Processing = n
		case StatusCompleted:
			counts.Completed = n
		case StatusFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

// CourseStatus aggregates the videos table by processing_status for one
// course and joins failed queue entries for operator detail.
func (r *PostgresRepo) CourseStatus(ctx context.Context, courseID string) (*CourseStatus, error) {
	cs := &CourseStatus{CourseID: courseID, FailedItems: []FailedItem{}}

	query := `SELECT COALESCE(processing_status, 'pending'), COUNT(*) FROM videos WHERE course_id = $1 GROUP BY processing_status`
	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		parsed, err := ParseStatus(status)
		if err != nil {
			return nil, err
		}
		cs.TotalVideos += n
		switch parsed {
		case StatusPending:
			cs.Pending = n
		case StatusProcessing:
			cs.Processing = n
		case StatusCompleted:
			cs.Completed = n
		case StatusFailed:
			cs.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if cs.Failed == 0 {
		return cs, nil
	}

	failedQuery := `SELECT j.content_id, j.error_message, j.retry_count
		FROM processing_jobs j
		JOIN videos v ON v.id = j.content_id
		WHERE j.status = 'failed' AND v.course_id = $1`
	failedRows, err := r.db.QueryContext(ctx, failedQuery, courseID)
	if err != nil {
		return nil, err
	}
	defer failedRows.Close()

	for failedRows.Next() {
		var item FailedItem
		if err := failedRows.Scan(&item.VideoID, &item.Error, &item.Retries); err != nil {
			return nil, err
		}
		cs.FailedItems = append(cs.FailedItems, item)
	}
	return cs, failedRows.Err()
}

// ResetFailed moves every failed job back to pending with a fresh retry
// budget.
func (r *PostgresRepo) ResetFailed(ctx context.Context) (int, error) {
	query := `UPDATE processing_jobs SET status = 'pending', retry_count = 0, error_message = '', updated_at = NOW() WHERE status = 'failed'`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *PostgresRepo) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int, error) {
	query := `DELETE FROM processing_jobs WHERE status = 'completed' AND updated_at < $1`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ReclaimStale returns processing jobs that have not been touched for
// olderThan back to pending. A job stuck in processing means a worker died
// mid-flight; without this, the slot is lost forever.
func (r *PostgresRepo) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	query := `UPDATE processing_jobs SET status = 'pending', updated_at = NOW() WHERE status = 'processing' AND updated_at < $1`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
