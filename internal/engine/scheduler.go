package engine

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler drives the simulation at a fixed real-time tick rate. Each tick
// advances the world by the configured interval; game speed is handled by
// the simulation's time scale, not by ticking faster.
type Scheduler struct {
	Sim      *Simulation
	Interval time.Duration // Real time per tick

	OnTick func(tick uint64, elapsed time.Duration) // After each tick (metrics)
}

// NewScheduler creates a scheduler over a simulation, using the tick
// interval from its configuration.
func NewScheduler(sim *Simulation) *Scheduler {
	return &Scheduler{
		Sim:      sim,
		Interval: sim.TickInterval(),
	}
}

// Run ticks the simulation until the context is canceled. A tick that
// overruns its interval is followed immediately by the next one; the loop
// never tries to catch up by running extra ticks.
func (sc *Scheduler) Run(ctx context.Context) {
	realDt := sc.Interval.Seconds()
	slog.Info("scheduler started", "interval", sc.Interval)

	ticker := time.NewTicker(sc.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped", "tick", sc.Sim.CurrentTick())
			return
		case <-ticker.C:
			start := time.Now()
			sc.Sim.Step(realDt)
			if sc.OnTick != nil {
				sc.OnTick(sc.Sim.CurrentTick(), time.Since(start))
			}
		}
	}
}

// RunTicks advances the simulation by n ticks immediately, without pacing.
// Used by tools and tests that want game time to pass faster than real time.
func (sc *Scheduler) RunTicks(n int) {
	realDt := sc.Interval.Seconds()
	for i := 0; i < n; i++ {
		sc.Sim.Step(realDt)
	}
}
