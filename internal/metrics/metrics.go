// Package metrics records calibration pipeline metrics.
package metrics

import "time"

// Collector receives pipeline observations. Implementations must be safe for
// concurrent use.
type Collector interface {
	// RecordOutcome counts one Processor result by outcome label.
	RecordOutcome(outcome string, duration time.Duration)

	// RecordBatch counts one change batch; kind is "initial" or "change".
	RecordBatch(kind string, size int)

	// RecordDeadLetter counts a reading given up on after exhausting its attempts.
	RecordDeadLetter()

	// SetRunning reports whether the worker is running.
	SetRunning(running bool)
}

// Nop discards all metrics.
type Nop struct{}

var _ Collector = Nop{}

func NewNop() Nop { return Nop{} }

func (Nop) RecordOutcome(string, time.Duration) {}

func (Nop) RecordBatch(string, int) {}

func (Nop) RecordDeadLetter() {}

func (Nop) SetRunning(bool) {}
