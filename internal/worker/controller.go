// Package worker owns the start/stop lifecycle of the calibration worker.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agrisense-lab/npkcal/internal/calibration"
	"github.com/agrisense-lab/npkcal/internal/metrics"
	"github.com/google/uuid"
)

const (
	MsgStarted        = "Worker started"
	MsgAlreadyRunning = "Worker already running"
	MsgStopping       = "Worker stopping"
	MsgNotRunning     = "Worker not running"
)

// Runner is one worker run. *calibration.Reconciler satisfies it.
type Runner interface {
	Run(ctx context.Context) error
	State() calibration.State
}

// Factory builds a fresh Runner for every Start.
type Factory func() Runner

// Status is reported by GET /status.
type Status struct {
	Running    bool               `json:"running"`
	RunID      string             `json:"run_id,omitempty"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	Reconciler *calibration.State `json:"reconciler,omitempty"`
	LastError  string             `json:"last_error,omitempty"`
}

// Controller runs at most one Runner at a time.
type Controller struct {
	base    context.Context
	factory Factory
	metrics metrics.Collector

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	runID     string
	startedAt time.Time
	runner    Runner
	lastErr   error
}

// NewController creates a stopped controller. Runs derive their context from
// base, so cancelling base stops any active run.
func NewController(base context.Context, factory Factory, m metrics.Collector) *Controller {
	if base == nil {
		panic("worker: base context must not be nil")
	}
	if factory == nil {
		panic("worker: factory must not be nil")
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Controller{
		base:    base,
		factory: factory,
		metrics: m,
	}
}

// Start launches a new run in the background and returns immediately.
func (c *Controller) Start() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return MsgAlreadyRunning
	}

	runner := c.factory()
	ctx, cancel := context.WithCancel(c.base)
	done := make(chan struct{})
	runID := uuid.NewString()

	c.running = true
	c.cancel = cancel
	c.done = done
	c.runID = runID
	c.startedAt = time.Now().UTC()
	c.runner = runner
	c.lastErr = nil
	c.metrics.SetRunning(true)

	slog.Info("[Worker] Starting", "run_id", runID)

	go func() {
		defer close(done)
		err := runner.Run(ctx)
		c.finished(runID, err)
	}()

	return MsgStarted
}

// finished moves the controller back to Stopped when the run that ended is
// still the current one.
func (c *Controller) finished(runID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		slog.Error("[Worker] Run ended with error", "run_id", runID, "error", err)
	} else {
		slog.Info("[Worker] Run ended", "run_id", runID)
	}

	if c.runID != runID {
		return
	}
	c.lastErr = err
	if c.running {
		c.running = false
		c.cancel()
		c.metrics.SetRunning(false)
	}
}

// Stop cancels the active run. The run's subscription is stopped by the
// Runner itself as it observes the cancellation.
func (c *Controller) Stop() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return MsgNotRunning
	}
	c.cancel()
	c.running = false
	c.metrics.SetRunning(false)
	slog.Info("[Worker] Stop requested", "run_id", c.runID)
	return MsgStopping
}

// Wait blocks until the most recent run goroutine has exited or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a run is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Status reports the controller and runner state. The runner's state is read
// after c.mu is released, so a runner busy inside a batch never blocks Start
// or Stop.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{Running: c.running, RunID: c.runID}
	if !c.startedAt.IsZero() {
		startedAt := c.startedAt
		st.StartedAt = &startedAt
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	runner := c.runner
	c.mu.Unlock()

	if runner != nil {
		state := runner.State()
		st.Reconciler = &state
	}
	return st
}
