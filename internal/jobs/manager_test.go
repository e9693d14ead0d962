package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/catalog-crawler/internal/crawler"
)

func waitForState(t *testing.T, m *Manager, id string, want State) *Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := m.Get(id)
		require.True(t, ok)
		if job.State == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := m.Get(id)
	t.Fatalf("job never reached state %s, last state %s", want, job.State)
	return nil
}

func TestManager_CompletedJob(t *testing.T) {
	m := NewManager(func(_ context.Context, _ string) (*crawler.Summary, error) {
		return &crawler.Summary{ProductsScraped: 7}, nil
	})

	job := m.Start("https://shop.example.com/c/bags")
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StateRunning, job.State)

	done := waitForState(t, m, job.ID, StateCompleted)
	require.NotNil(t, done.Summary)
	assert.Equal(t, 7, done.Summary.ProductsScraped)
	assert.NotNil(t, done.FinishedAt)
	assert.Empty(t, done.Error)
}

func TestManager_FailedJob(t *testing.T) {
	m := NewManager(func(_ context.Context, _ string) (*crawler.Summary, error) {
		return &crawler.Summary{}, errors.New("exhausted")
	})

	job := m.Start("https://shop.example.com")
	done := waitForState(t, m, job.ID, StateFailed)
	assert.Equal(t, "exhausted", done.Error)
}

func TestManager_CancelledJob(t *testing.T) {
	started := make(chan struct{})
	m := NewManager(func(ctx context.Context, _ string) (*crawler.Summary, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	job := m.Start("https://shop.example.com")
	<-started
	require.True(t, m.Cancel(job.ID))

	waitForState(t, m, job.ID, StateCancelled)
	// Cancelling a finished job is a no-op.
	assert.False(t, m.Cancel(job.ID))
}

func TestManager_GetUnknown(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.Get("nope")
	assert.False(t, ok)
	assert.False(t, m.Cancel("nope"))
	assert.Empty(t, m.List())
}
