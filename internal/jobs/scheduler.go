package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is a named background task that reports when it next wants to run
type Job interface {
	Run(ctx context.Context) error
	GetNextRunTime() time.Time
}

// JobScheduler runs registered jobs at the times they ask for: one
// goroutine per job, re-asking GetNextRunTime after each run. A failed run
// is logged and the job keeps its schedule.
type JobScheduler struct {
	jobs    map[string]Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewJobScheduler creates an empty scheduler
func NewJobScheduler() *JobScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobScheduler{
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a job. Must be called before Start.
func (s *JobScheduler) Register(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[name] = job
	log.Printf("⏰ [JOBS] Registered %s (next run %s)", name, job.GetNextRunTime().Format(time.RFC3339))
}

// Start launches the run loops for all registered jobs. Calling Start twice
// is a no-op.
func (s *JobScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	for name, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(name, job)
	}
	log.Printf("🚀 [JOBS] Started %d background jobs", len(s.jobs))
}

// Stop cancels all run loops and waits for any in-flight run to finish
func (s *JobScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	log.Println("🛑 [JOBS] Background jobs stopped")
}

func (s *JobScheduler) loop(name string, job Job) {
	defer s.wg.Done()

	for {
		wait := time.Until(job.GetNextRunTime())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)

		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		start := time.Now()
		if err := job.Run(s.ctx); err != nil {
			log.Printf("❌ [JOBS] %s failed after %v: %v", name, time.Since(start), err)
		} else {
			log.Printf("✅ [JOBS] %s completed in %v", name, time.Since(start))
		}
	}
}
