package gc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for the directories counter.
const (
	OutcomeKept    = "kept"
	OutcomeLocked  = "locked"
	OutcomeRemoved = "removed"
	OutcomeFailed  = "failed"
)

// Metrics holds garbage collection metrics.
type Metrics struct {
	// Runs counts completed collection passes.
	Runs prometheus.Counter

	// Directories counts numbered directories visited by collection passes,
	// labeled by what happened to them.
	Directories *prometheus.CounterVec

	// GarbageSwept counts leftover garbage directories removed by the sweep.
	GarbageSwept prometheus.Counter

	// Duration tracks how long a pass takes.
	Duration prometheus.Histogram

	// LastRun is the Unix time the most recent pass finished.
	LastRun prometheus.Gauge
}

// NewMetrics creates garbage collection metrics registered with reg. Pass
// prometheus.DefaultRegisterer for process-wide metrics or a fresh
// prometheus.NewRegistry() to keep them isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "basetemp",
			Subsystem: "gc",
			Name:      "runs_total",
			Help:      "Total number of garbage collection passes.",
		},
	)

	directories := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "basetemp",
			Subsystem: "gc",
			Name:      "directories_total",
			Help:      "Numbered directories visited by garbage collection, by outcome.",
		},
		[]string{"outcome"},
	)

	garbageSwept := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "basetemp",
			Subsystem: "gc",
			Name:      "garbage_swept_total",
			Help:      "Leftover garbage directories removed by the sweep.",
		},
	)

	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "basetemp",
			Subsystem: "gc",
			Name:      "duration_seconds",
			Help:      "Duration of garbage collection passes in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)

	lastRun := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "basetemp",
			Subsystem: "gc",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the most recent garbage collection pass.",
		},
	)

	reg.MustRegister(runs)
	reg.MustRegister(directories)
	reg.MustRegister(garbageSwept)
	reg.MustRegister(duration)
	reg.MustRegister(lastRun)

	return &Metrics{
		Runs:         runs,
		Directories:  directories,
		GarbageSwept: garbageSwept,
		Duration:     duration,
		LastRun:      lastRun,
	}
}

// RecordRun records a finished pass. It is a no-op on a nil receiver.
func (m *Metrics) RecordRun(res Result, elapsed time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.Runs.Inc()
	m.Directories.WithLabelValues(OutcomeKept).Add(float64(res.Kept))
	m.Directories.WithLabelValues(OutcomeLocked).Add(float64(res.Locked))
	m.Directories.WithLabelValues(OutcomeRemoved).Add(float64(res.Removed))
	m.Directories.WithLabelValues(OutcomeFailed).Add(float64(res.Failed))
	m.GarbageSwept.Add(float64(res.GarbageSwept))
	m.Duration.Observe(elapsed.Seconds())
	m.LastRun.Set(float64(finished.Unix()))
}
