package service

import (
	"sync"
	"time"

	"github.com/artemk/menulive/internal/domain"
	"github.com/artemk/menulive/internal/logger"
)

// JobStore owns the lifecycle of bulk translation job records. The default
// implementation is in-memory with explicit create/read/sweep; it can be
// swapped for a durable one without touching the engine logic.
type JobStore interface {
	// CreateIfIdle registers a new job record, or returns
	// ErrJobAlreadyRunning when a non-terminal job exists for the same
	// restaurant. Check and create happen under one lock, so two concurrent
	// starts for a tenant can never both be accepted.
	CreateIfIdle(job *domain.TranslationJob) error
	// Get returns a snapshot of the job, or nil when unknown.
	Get(id string) *domain.TranslationJob
	// Update replaces the stored record with a fresh snapshot.
	Update(job *domain.TranslationJob)
	// Sweep removes terminal jobs older than the retention window and
	// returns how many were removed. In-progress jobs are never swept.
	Sweep(retention time.Duration) int
}

// MemoryJobStore keeps job records in process memory. Records are lost on
// restart; job status is best-effort by design.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.TranslationJob
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*domain.TranslationJob),
	}
}

// CreateIfIdle registers a new job record unless the restaurant already has a
// non-terminal one.
func (s *MemoryJobStore) CreateIfIdle(job *domain.TranslationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.RestaurantID == job.RestaurantID && !existing.Status.Terminal() {
			return ErrJobAlreadyRunning
		}
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns a snapshot of the job, or nil when unknown.
func (s *MemoryJobStore) Get(id string) *domain.TranslationJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	return job.Clone()
}

// Update replaces the stored record with a fresh snapshot. The engine is the
// only writer for a given job; readers always see a consistent clone.
func (s *MemoryJobStore) Update(job *domain.TranslationJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
}

// Sweep removes terminal jobs whose completion is older than the retention
// window. Jobs still in progress are never removed.
func (s *MemoryJobStore) Sweep(retention time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	removed := 0
	for id, job := range s.jobs {
		if !job.Status.Terminal() {
			continue
		}
		completedAt := job.StartedAt
		if job.CompletedAt != nil {
			completedAt = *job.CompletedAt
		}
		if completedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs the retention sweep on a fixed interval until stop is
// closed. Pure garbage collection of terminal records.
// Parameters:
//   - store: job store to sweep.
//   - interval: time between sweeps.
//   - retention: how long terminal jobs are kept.
//   - stop: closing this channel stops the sweeper.
// Returns: none (runs in its own goroutine).
func StartSweeper(store JobStore, interval, retention time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := store.Sweep(retention); removed > 0 {
					logger.With(logger.Fields{logger.FieldCount: removed}).
						Debug(nil, "Swept expired translation jobs")
				}
			case <-stop:
				return
			}
		}
	}()
}
