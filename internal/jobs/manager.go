package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkessler/catalog-crawler/internal/crawler"
)

type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Job is one asynchronous crawl tracked by the manager.
type Job struct {
	ID         string           `json:"id"`
	StartURL   string           `json:"start_url"`
	State      State            `json:"state"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Summary    *crawler.Summary `json:"summary,omitempty"`
	Error      string           `json:"error,omitempty"`

	cancel context.CancelFunc
}

// CrawlFunc runs one crawl to completion.
type CrawlFunc func(ctx context.Context, startURL string) (*crawler.Summary, error)

// Manager keeps in-memory state for async crawl jobs. Jobs run one
// goroutine each; the crawl itself stays sequential.
type Manager struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	run    CrawlFunc
	logger *slog.Logger
}

func NewManager(run CrawlFunc) *Manager {
	return &Manager{
		jobs:   make(map[string]*Job),
		run:    run,
		logger: slog.Default().With("component", "jobs"),
	}
}

// Start launches a crawl in the background and returns immediately.
func (m *Manager) Start(startURL string) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        uuid.NewString(),
		StartURL:  startURL,
		State:     StateRunning,
		StartedAt: time.Now(),
		cancel:    cancel,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.logger.Info("job started", "job_id", job.ID, "start_url", startURL)

	go func() {
		summary, err := m.run(ctx, startURL)
		now := time.Now()

		m.mu.Lock()
		defer m.mu.Unlock()
		job.Summary = summary
		job.FinishedAt = &now
		switch {
		case ctx.Err() != nil:
			job.State = StateCancelled
		case err != nil:
			job.State = StateFailed
			job.Error = err.Error()
		default:
			job.State = StateCompleted
		}
		m.logger.Info("job finished", "job_id", job.ID, "state", job.State)
	}()

	return job
}

// Get returns a snapshot of the job so callers never race the runner.
func (m *Manager) Get(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	snapshot.cancel = nil
	return &snapshot, true
}

// Cancel requests cancellation of a running job.
func (m *Manager) Cancel(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok || job.State != StateRunning {
		return false
	}
	job.cancel()
	return true
}

// List returns snapshots of all known jobs.
func (m *Manager) List() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		snapshot.cancel = nil
		out = append(out, &snapshot)
	}
	return out
}
