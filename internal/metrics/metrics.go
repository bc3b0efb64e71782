// Package metrics exposes optimization activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/stochopt/internal/optimization"
)

const namespace = "stochopt"

// Run outcomes used as label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeAborted = "aborted"
)

// Recorder holds the optimization metrics of one process.
type Recorder struct {
	runs           *prometheus.CounterVec
	objectiveCalls *prometheus.CounterVec
	objectiveErrs  *prometheus.CounterVec
	acceptedSteps  *prometheus.CounterVec
	evaluations    *prometheus.HistogramVec
	duration       *prometheus.HistogramVec
	active         prometheus.Gauge
}

// NewRecorder creates the metrics and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished optimization runs by algorithm and outcome.",
		}, []string{"algorithm", "outcome"}),
		objectiveCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objective_calls_total",
			Help:      "Objective function calls.",
		}, []string{"algorithm"}),
		objectiveErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objective_errors_total",
			Help:      "Objective function calls that returned an error.",
		}, []string{"algorithm"}),
		acceptedSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accepted_steps_total",
			Help:      "Accepted improvements across finished runs.",
		}, []string{"algorithm"}),
		evaluations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_evaluations",
			Help:      "Objective evaluations per finished run.",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
		}, []string{"algorithm"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of optimization runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"algorithm"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Optimization runs currently executing.",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.runs, r.objectiveCalls, r.objectiveErrs, r.acceptedSteps, r.evaluations, r.duration, r.active,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// InstrumentObjective wraps objective so that every call is counted.
func (r *Recorder) InstrumentObjective(algorithm string, objective optimization.ObjectiveFunction) optimization.ObjectiveFunction {
	calls := r.objectiveCalls.WithLabelValues(algorithm)
	errs := r.objectiveErrs.WithLabelValues(algorithm)
	return func(x []float64) (float64, error) {
		calls.Inc()
		value, err := objective(x)
		if err != nil {
			errs.Inc()
		}
		return value, err
	}
}

// RunStarted marks a run as executing. The returned function records the
// end of the run and must be called exactly once.
func (r *Recorder) RunStarted() func() {
	r.active.Inc()
	return r.active.Dec
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(result *optimization.OptimizationResult, elapsed time.Duration) {
	outcome := OutcomeFailure
	if result.Success {
		outcome = OutcomeSuccess
	}
	r.runs.WithLabelValues(result.Algorithm, outcome).Inc()
	r.acceptedSteps.WithLabelValues(result.Algorithm).Add(float64(result.SuccessfulSteps))
	r.evaluations.WithLabelValues(result.Algorithm).Observe(float64(result.Evaluations))
	r.duration.WithLabelValues(result.Algorithm).Observe(elapsed.Seconds())
}

// ObserveAbort records a run that returned an error instead of a result.
func (r *Recorder) ObserveAbort(algorithm string, elapsed time.Duration) {
	r.runs.WithLabelValues(algorithm, OutcomeAborted).Inc()
	r.duration.WithLabelValues(algorithm).Observe(elapsed.Seconds())
}
