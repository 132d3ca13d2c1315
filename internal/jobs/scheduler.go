package jobs

import (
	"context"
	"log"
	"time"

	"github.com/voidreamer/merrino-memory/internal/domain"
	"github.com/voidreamer/merrino-memory/internal/service"
)

// IndexRunner runs one indexing pass over the configured sources
type IndexRunner interface {
	Run(ctx context.Context, opts service.RunOptions) (*domain.IndexRun, error)
}

// Scheduler serializes indexing runs. Requests arrive through Trigger (API,
// file watcher) or from the optional interval ticker; at most one request can
// wait while a run is in flight.
type Scheduler struct {
	runner   IndexRunner
	interval time.Duration
	trigger  chan service.RunOptions
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewScheduler creates a Scheduler. An interval of 0 disables periodic runs.
func NewScheduler(runner IndexRunner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		trigger:  make(chan service.RunOptions, 1),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Trigger requests a run. It returns false when a request is already waiting,
// in which case the pending run covers this one too.
func (s *Scheduler) Trigger(opts service.RunOptions) bool {
	select {
	case s.trigger <- opts:
		return true
	default:
		return false
	}
}

// Start begins the scheduling loop
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.doneChan)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
		log.Printf("Scheduler started with interval: %v", s.interval)
	} else {
		log.Println("Scheduler started (trigger only)")
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopped: context cancelled")
			return
		case <-s.stopChan:
			log.Println("Scheduler stopped: stop signal received")
			return
		case opts := <-s.trigger:
			s.runOnce(ctx, opts)
		case <-tick:
			s.runOnce(ctx, service.RunOptions{Trigger: domain.TriggerInterval})
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, opts service.RunOptions) {
	if _, err := s.runner.Run(ctx, opts); err != nil {
		log.Printf("Error running index: %v", err)
	}
}

// Stop gracefully stops the scheduler. It does not cancel an in-flight run;
// cancel the Start context for that.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.doneChan
	log.Println("Scheduler shutdown complete")
}
