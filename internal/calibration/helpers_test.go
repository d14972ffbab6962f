package calibration

import (
	"context"
	"sync"

	"github.com/agrisense-lab/npkcal/internal/core/storage"
)

const (
	rawCollection        = "npk_readings"
	calibratedCollection = "calibrated_npk_readings_sensor_1"
)

var testCollections = Collections{Raw: rawCollection, Calibrated: calibratedCollection}

// fixedPredictor returns the same calibrated row for every input.
type fixedPredictor struct {
	out []float64

	mu    sync.Mutex
	calls int
}

func (f *fixedPredictor) Predict(ctx context.Context, features []float64) ([]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	out := make([]float64, len(f.out))
	copy(out, f.out)
	return out, nil
}

func (f *fixedPredictor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newFixedPredictor() *fixedPredictor {
	return &fixedPredictor{out: []float64{11.2, 5.4, 8.1, 6.0, 310.5}}
}

func rawReading(ts int64) storage.Document {
	return storage.Document{
		"N":            10.0,
		"P":            5.0,
		"K":            8.0,
		"pH":           6.2,
		"Conductivity": 300.0,
		"timestamp":    ts,
		"sensorId":     "sensor-1",
	}
}

// recordingProcessor is a DocumentProcessor that records calls and returns
// scripted results.
type recordingProcessor struct {
	mu          sync.Mutex
	calls       []string
	deadLetters []string
	results     map[string]Result
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{results: make(map[string]Result)}
}

func (p *recordingProcessor) Process(ctx context.Context, id string, doc storage.Document) Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, id)
	if res, ok := p.results[id]; ok {
		return res
	}
	return Result{Outcome: OutcomeCalibrated}
}

func (p *recordingProcessor) MarkDeadLetter(ctx context.Context, id string, cause error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deadLetters = append(p.deadLetters, id)
	return nil
}

func (p *recordingProcessor) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *recordingProcessor) DeadLetters() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deadLetters...)
}
