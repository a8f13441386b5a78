package queue

import (
	"fmt"
	"time"
)

// Status is the closed set of job states. Unknown values are rejected at
// the boundary.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// Job is one unit of enrichment work. At most one job exists per content
// item, enforced by a unique index on content_id.
type Job struct {
	ID           string    `json:"id"`
	ContentID    string    `json:"content_id"`
	Status       Status    `json:"status"`
	Priority     int       `json:"priority"`
	RetryCount   int       `json:"retry_count"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StatusCounts aggregates the queue by status.
type StatusCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// FailedItem surfaces a terminally failed video to operators.
type FailedItem struct {
	VideoID string `json:"video_id"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

// CourseStatus reports enrichment progress for one course.
type CourseStatus struct {
	CourseID    string       `json:"course_id"`
	TotalVideos int          `json:"total_videos"`
	Pending     int          `json:"pending"`
	Processing  int          `json:"processing"`
	Completed   int          `json:"completed"`
	Failed      int          `json:"failed"`
	FailedItems []FailedItem `json:"failed_videos"`
}
