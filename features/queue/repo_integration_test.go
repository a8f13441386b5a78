package queue_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsage/features/queue"
	"vidsage/internal/testutils"
)

func TestQueueRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	repo := queue.NewPostgresRepo(s.DB)
	ctx := context.Background()

	reset := func() {
		_, err := s.DB.ExecContext(ctx, "DELETE FROM processing_jobs")
		require.NoError(t, err)
	}

	t.Run("PriorityOrdering", func(t *testing.T) {
		reset()
		for _, p := range []int{1, 5, 3} {
			queued, err := repo.Enqueue(ctx, fmt.Sprintf("vid-prio-%d", p), p)
			require.NoError(t, err)
			require.True(t, queued)
		}

		var got []int
		for i := 0; i < 3; i++ {
			jobs, err := repo.ClaimBatch(ctx, 1)
			require.NoError(t, err)
			require.Len(t, jobs, 1)
			got = append(got, jobs[0].Priority)
		}
		assert.Equal(t, []int{5, 3, 1}, got)
	})

	t.Run("ClaimLimitLeavesRest", func(t *testing.T) {
		reset()
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			_, err := repo.Enqueue(ctx, "vid-"+id, 0)
			require.NoError(t, err)
		}

		jobs, err := repo.ClaimBatch(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, jobs, 3)

		counts, err := repo.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, counts.Processing)
		assert.Equal(t, 2, counts.Pending)
	})

	t.Run("ExactlyOnceClaim", func(t *testing.T) {
		reset()
		const jobCount = 20
		for i := 0; i < jobCount; i++ {
			_, err := repo.Enqueue(ctx, fmt.Sprintf("vid-race-%02d", i), i%3)
			require.NoError(t, err)
		}

		const claimers = 5
		results := make([][]queue.Job, claimers)
		var wg sync.WaitGroup
		for i := 0; i < claimers; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				jobs, err := repo.ClaimBatch(ctx, jobCount)
				assert.NoError(t, err)
				results[idx] = jobs
			}(i)
		}
		wg.Wait()

		seen := map[string]bool{}
		total := 0
		for _, jobs := range results {
			for _, j := range jobs {
				assert.False(t, seen[j.ID], "job %s claimed twice", j.ID)
				seen[j.ID] = true
				total++
			}
		}
		assert.Equal(t, jobCount, total)
	})

	t.Run("RequeueAndRetryLifecycle", func(t *testing.T) {
		reset()
		queued, err := repo.Enqueue(ctx, "vid-retry", 0)
		require.NoError(t, err)
		require.True(t, queued)

		jobs, err := repo.ClaimBatch(ctx, 1)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		job := jobs[0]

		require.NoError(t, repo.Requeue(ctx, job.ID, "transient failure", 1))

		jobs, err = repo.ClaimBatch(ctx, 1)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, 1, jobs[0].RetryCount)
		assert.Equal(t, "transient failure", jobs[0].ErrorMessage)

		require.NoError(t, repo.MarkFailed(ctx, job.ID, "gave up"))

		n, err := repo.ResetFailed(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		jobs, err = repo.ClaimBatch(ctx, 1)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, 0, jobs[0].RetryCount)
		assert.Empty(t, jobs[0].ErrorMessage)
	})

	t.Run("DuplicateEnqueueSkipped", func(t *testing.T) {
		reset()
		queued, err := repo.Enqueue(ctx, "vid-dup", 0)
		require.NoError(t, err)
		assert.True(t, queued)

		queued, err = repo.Enqueue(ctx, "vid-dup", 9)
		require.NoError(t, err)
		assert.False(t, queued)
	})

	t.Run("ReclaimStale", func(t *testing.T) {
		reset()
		_, err := repo.Enqueue(ctx, "vid-stale", 0)
		require.NoError(t, err)

		jobs, err := repo.ClaimBatch(ctx, 1)
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		// Fresh processing job is not reclaimed
		n, err := repo.ReclaimStale(ctx, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		// Age it artificially
		_, err = s.DB.ExecContext(ctx,
			"UPDATE processing_jobs SET updated_at = NOW() - INTERVAL '20 minutes' WHERE id = $1", jobs[0].ID)
		require.NoError(t, err)

		n, err = repo.ReclaimStale(ctx, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		jobs, err = repo.ClaimBatch(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})
}
