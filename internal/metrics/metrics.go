// Package metrics exposes engine and session counters to Prometheus.
package metrics

import (
	"github.com/claude/formcoach/internal/coach"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "formcoach"

// NewRegistry returns a registry with build info, Go runtime and process
// collectors plus any extra collectors (such as the pgx pool collector).
func NewRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(extra...)
	return reg
}

// Manager holds the engine instruments.
type Manager struct {
	Frames         *prometheus.CounterVec
	Reps           *prometheus.CounterVec
	FormWarnings   *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	RepQuality     *prometheus.HistogramVec
}

// NewManager registers the engine instruments on reg.
func NewManager(reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)
	return &Manager{
		Frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Landmark frames processed.",
		}, []string{"exercise"}),
		Reps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reps_total",
			Help:      "Completed repetitions.",
		}, []string{"exercise"}),
		FormWarnings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "form_warnings_total",
			Help:      "Transitions into NEEDS_IMPROVEMENT.",
		}, []string{"exercise"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Live sessions held by the tracker.",
		}),
		RepQuality: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rep_quality",
			Help:      "Quality score of completed repetitions.",
			Buckets:   []float64{30, 40, 50, 60, 70, 80, 90, 100},
		}, []string{"exercise"}),
	}
}

// NewTestManager returns a Manager on a private registry.
func NewTestManager() *Manager {
	return NewManager(prometheus.NewRegistry())
}

// ObserveFrame records one processed frame. prev is the feedback state
// before the frame.
func (m *Manager) ObserveFrame(prev coach.FeedbackState, snap coach.Snapshot) {
	m.Frames.WithLabelValues(snap.Exercise).Inc()
	if snap.Feedback == coach.FeedbackNeedsImprovement && prev != coach.FeedbackNeedsImprovement {
		m.FormWarnings.WithLabelValues(snap.Exercise).Inc()
	}
	if snap.Rep != nil {
		m.Reps.WithLabelValues(snap.Exercise).Inc()
		m.RepQuality.WithLabelValues(snap.Exercise).Observe(snap.Rep.Quality)
	}
}
