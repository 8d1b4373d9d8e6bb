package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Supervisor runs every worker of the fleet and tears the whole fleet down
// as soon as any one of them dies; external orchestration restarts the
// process.
type Supervisor struct {
	deps    *Deps
	workers []Worker
}

// NewSupervisor builds a supervisor over the given workers.
func NewSupervisor(deps *Deps, workers []Worker) *Supervisor {
	return &Supervisor{deps: deps, workers: workers}
}

// Run spawns each worker, monitors liveness every ten seconds, and returns
// once every worker has stopped. The first failure cancels all peers.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type exit struct {
		name string
		err  error
	}
	exits := make(chan exit, len(s.workers))

	for _, worker := range s.workers {
		worker := worker
		log := s.deps.Logger.Named(worker.Name())
		log.Debug("spawning worker")
		go func() {
			err := worker.Run(ctx, s.deps)
			exits <- exit{name: worker.Name(), err: err}
		}()
	}

	s.deps.Logger.Info("successfully started up", zap.Int("workers", len(s.workers)))

	running := len(s.workers)
	var firstErr error
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for running > 0 {
		select {
		case e := <-exits:
			running--
			if e.err != nil {
				s.deps.Logger.Error("a worker has died, terminating the fleet",
					zap.String("worker", e.name),
					zap.Error(e.err),
				)
				if firstErr == nil {
					firstErr = fmt.Errorf("worker %s: %w", e.name, e.err)
				}
				cancel()
			} else if ctx.Err() == nil {
				// A worker returning cleanly outside shutdown is still a
				// fleet-wide stop.
				s.deps.Logger.Warn("a worker exited, terminating the fleet",
					zap.String("worker", e.name),
				)
				cancel()
			}
		case <-ticker.C:
			s.deps.Logger.Debug("fleet alive", zap.Int("running", running))
		}
	}

	return firstErr
}
