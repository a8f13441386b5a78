package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepo records calls; embed Repository so only the used methods need
// implementations.
type mockRepo struct {
	Repository

	existing map[string]bool
	enqueued []string

	resetCount int
	purgedAge  time.Duration
}

func (m *mockRepo) Enqueue(ctx context.Context, contentID string, priority int) (bool, error) {
	if m.existing[contentID] {
		return false, nil
	}
	m.enqueued = append(m.enqueued, contentID)
	return true, nil
}

func (m *mockRepo) ResetFailed(ctx context.Context) (int, error) {
	return m.resetCount, nil
}

func (m *mockRepo) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int, error) {
	m.purgedAge = olderThan
	return 2, nil
}

func (m *mockRepo) Status(ctx context.Context) (StatusCounts, error) {
	return StatusCounts{Pending: 1, Completed: 4}, nil
}

func TestService_EnqueueBatch(t *testing.T) {
	repo := &mockRepo{existing: map[string]bool{"vid-2": true}}
	service := NewService(repo)

	res, err := service.EnqueueBatch(context.Background(), []string{"vid-1", "vid-2", "vid-3"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Queued)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"vid-1", "vid-3"}, repo.enqueued)
}

func TestService_EnqueueBatch_Empty(t *testing.T) {
	service := NewService(&mockRepo{})

	res, err := service.EnqueueBatch(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{}, res)
}

func TestService_Status(t *testing.T) {
	service := NewService(&mockRepo{})

	counts, err := service.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Pending)
	assert.Equal(t, 4, counts.Completed)
}

func TestService_RetryFailed(t *testing.T) {
	service := NewService(&mockRepo{resetCount: 7})

	n, err := service.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestService_PurgeCompleted(t *testing.T) {
	repo := &mockRepo{}
	service := NewService(repo)

	n, err := service.PurgeCompleted(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 7*24*time.Hour, repo.purgedAge)
}
