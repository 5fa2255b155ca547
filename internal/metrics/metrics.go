// Package metrics exposes Prometheus collectors for the checkpoint/resume
// cycle. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "runstash"

// Metrics groups every collector runstash records into.
type Metrics struct {
	stashes      *prometheus.CounterVec
	pops         *prometheus.CounterVec
	schedules    *prometheus.CounterVec
	timersClear  prometheus.Counter
	transitions  *prometheus.CounterVec
	timersFired  *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	stepDuration prometheus.Histogram
}

// New registers the collectors on reg. A nil reg uses a private registry,
// which keeps tests from colliding on the global one.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		stashes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stash_total",
			Help:      "Checkpoint stash attempts by outcome",
		}, []string{"status"}),
		pops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pop_total",
			Help:      "Checkpoint restores by status",
		}, []string{"status"}),
		schedules: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_total",
			Help:      "Resume scheduling passes by status",
		}, []string{"status"}),
		timersClear: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timers_cleared_total",
			Help:      "Timers deleted by clear passes",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Job lifecycle transitions by destination phase",
		}, []string{"phase"}),
		timersFired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timers_fired_total",
			Help:      "Timers fired by the dispatcher, by target and result",
		}, []string{"target", "result"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Job invocations by how they ended",
		}, []string{"outcome"}),
		stepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of individual job steps",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Stash records a stash attempt; status is "ok" or "error".
func (m *Metrics) Stash(status string) {
	if m == nil {
		return
	}
	m.stashes.WithLabelValues(status).Inc()
}

// Pop records a restore with its checkpoint.PopStatus.
func (m *Metrics) Pop(status string) {
	if m == nil {
		return
	}
	m.pops.WithLabelValues(status).Inc()
}

// Schedule records a scheduling pass with its trigger.ScheduleStatus.
func (m *Metrics) Schedule(status string) {
	if m == nil {
		return
	}
	m.schedules.WithLabelValues(status).Inc()
}

// TimersCleared adds n deleted timers.
func (m *Metrics) TimersCleared(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.timersClear.Add(float64(n))
}

// Transition records the job entering phase.
func (m *Metrics) Transition(phase string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(phase).Inc()
}

// TimerFired records a dispatcher firing; result is "ok", "error",
// "skipped" or "unknown".
func (m *Metrics) TimerFired(target, result string) {
	if m == nil {
		return
	}
	m.timersFired.WithLabelValues(target, result).Inc()
}

// Outcome records how one invocation ended.
func (m *Metrics) Outcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

// ObserveStep records how long one job step took, in seconds.
func (m *Metrics) ObserveStep(seconds float64) {
	if m == nil {
		return
	}
	m.stepDuration.Observe(seconds)
}
