package worker

import (
	"context"
	"log"
	"sync"
	"time"
)

// JobScheduler submits a fixed list of jobs to the pool on every tick.
type JobScheduler struct {
	Name   string
	Ticker *time.Ticker
	Jobs   []Job
	Pool   *WorkingPool
	mu     sync.RWMutex
}

func NewJobScheduler(name string, interval time.Duration, pool *WorkingPool) *JobScheduler {
	return &JobScheduler{
		Name:   name,
		Ticker: time.NewTicker(interval),
		Jobs:   make([]Job, 0),
		Pool:   pool,
	}
}

func (s *JobScheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Jobs = append(s.Jobs, job)
}

func (s *JobScheduler) Run(ctx context.Context) {
	log.Printf("[Scheduler %s] Running.\n", s.Name)
	defer s.Ticker.Stop()

	// Fire once at startup so a fresh deployment does not wait a full
	// interval before its first sweep.
	s.submitJobs()

	for {
		select {
		case <-s.Ticker.C:
			s.submitJobs()

		case <-ctx.Done():
			// The manager signaled a global shutdown
			log.Printf("[Scheduler %s] Shutting down.\n", s.Name)
			return
		}
	}
}

func (s *JobScheduler) submitJobs() {
	s.mu.RLock()
	jobsToRun := make([]Job, len(s.Jobs))
	copy(jobsToRun, s.Jobs)
	s.mu.RUnlock()

	for _, job := range jobsToRun {
		s.Pool.SubmitJob(job)
	}
}
