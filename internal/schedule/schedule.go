// Package schedule runs named jobs on fixed intervals that can be changed
// while the process runs.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is a unit of periodic work. Its context is never cancelled by the
// scheduler: a job that started always runs to completion.
type Job func(ctx context.Context)

// Plan says which registered jobs run and how often.
type Plan struct {
	Enabled bool
	Every   map[string]time.Duration
}

// Scheduler owns one ticker goroutine per active job.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]Job
	halt    chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// New creates an idle scheduler.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger, jobs: make(map[string]Job)}
}

// Register makes job available under name. It takes effect on the next
// Apply.
func (s *Scheduler) Register(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = job
}

// Apply clears every running ticker and arms the ones p asks for. A job
// runs only when p is enabled and its interval is positive.
func (s *Scheduler) Apply(p Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halt != nil {
		close(s.halt)
		s.halt = nil
	}
	if s.stopped {
		return
	}
	if !p.Enabled {
		s.logger.Info("schedule: disabled")
		return
	}

	halt := make(chan struct{})
	for name, every := range p.Every {
		job, ok := s.jobs[name]
		if !ok {
			s.logger.Warn("schedule: unknown job", slog.String("job", name))
			continue
		}
		if every <= 0 {
			continue
		}
		s.wg.Add(1)
		go s.loop(name, job, every, halt)
		s.logger.Info("schedule: armed", slog.String("job", name), slog.Duration("every", every))
	}
	s.halt = halt
}

func (s *Scheduler) loop(name string, job Job, every time.Duration, halt <-chan struct{}) {
	defer s.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-halt:
			return
		case <-t.C:
			start := time.Now()
			job(context.Background())
			s.logger.Debug("schedule: ran", slog.String("job", name), slog.Duration("took", time.Since(start)))
		}
	}
}

// Stop disarms every ticker and waits for running jobs to finish. Later
// calls to Apply do nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.halt != nil {
		close(s.halt)
		s.halt = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}
