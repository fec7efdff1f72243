package engine

import (
	"time"
)

// Scheduler drives the engine's coordination cycle at a fixed interval.
// The tick runs detector, resolver, and monitor over one registry
// snapshot; commands arriving between ticks mutate the registry and are
// picked up by the next cycle.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates a scheduler over the engine's configured tick
// interval.
func NewScheduler(e *Engine) *Scheduler {
	return &Scheduler{
		engine:   e,
		interval: e.cfg.TickInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the tick loop. Call Stop to terminate it.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop terminates the tick loop and waits for the in-flight tick to
// finish. Safe to call once.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.engine.Tick()
		}
	}
}
