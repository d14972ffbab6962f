package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "npkcal"

// Prometheus implements Collector backed by Prometheus.
type Prometheus struct {
	documents     *prometheus.CounterVec
	duration      prometheus.Histogram
	batches       *prometheus.CounterVec
	batchChanges  prometheus.Histogram
	deadLetters   prometheus.Counter
	workerRunning prometheus.Gauge
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates the collector and registers it with reg
// (prometheus.DefaultRegisterer if nil). namespace defaults to "npkcal".
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = defaultNamespace
	}

	p := &Prometheus{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "documents_total",
			Help:      "Documents handed to the processor, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "process_duration_seconds",
			Help:      "Time spent processing one document, including model inference and writes.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "batches_total",
			Help:      "Change batches received from the subscription, by kind (initial, change).",
		}, []string{"kind"}),
		batchChanges: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "batch_changes",
			Help:      "Number of changes per received batch.",
			Buckets:   []float64{0, 1, 2, 5, 10, 50, 100, 500, 1000},
		}),
		deadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "dead_letters_total",
			Help:      "Readings marked calibration_failed after exhausting their attempts.",
		}),
		workerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "running",
			Help:      "1 while the calibration worker is running.",
		}),
	}

	for _, c := range []prometheus.Collector{
		p.documents, p.duration, p.batches, p.batchChanges, p.deadLetters, p.workerRunning,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) RecordOutcome(outcome string, duration time.Duration) {
	p.documents.WithLabelValues(outcome).Inc()
	p.duration.Observe(duration.Seconds())
}

func (p *Prometheus) RecordBatch(kind string, size int) {
	p.batches.WithLabelValues(kind).Inc()
	p.batchChanges.Observe(float64(size))
}

func (p *Prometheus) RecordDeadLetter() {
	p.deadLetters.Inc()
}

func (p *Prometheus) SetRunning(running bool) {
	if running {
		p.workerRunning.Set(1)
		return
	}
	p.workerRunning.Set(0)
}
