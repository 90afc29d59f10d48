// Package metrics counts what a pipeline run did, in Prometheus form.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "housegen"

// Recorder owns a private registry so runs and tests never share state.
type Recorder struct {
	registry *prometheus.Registry

	RendersTotal         *prometheus.CounterVec
	RunsTotal            *prometheus.CounterVec
	CollaboratorRequests *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		RendersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Render jobs by outcome (saved, skipped)",
			},
			[]string{"outcome"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by result (completed, aborted)",
			},
			[]string{"result"},
		),
		CollaboratorRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collaborator_requests_total",
				Help:      "Requests sent to external collaborators by role",
			},
			[]string{"role"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time spent in each pipeline stage",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
	}
	r.registry.MustRegister(r.RendersTotal, r.RunsTotal, r.CollaboratorRequests, r.StageDuration)
	return r
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveStage(stage string, started time.Time) {
	r.StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

func (r *Recorder) Request(role string) {
	r.CollaboratorRequests.WithLabelValues(role).Inc()
}

func (r *Recorder) Render(outcome string) {
	r.RendersTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Run(result string) {
	r.RunsTotal.WithLabelValues(result).Inc()
}

// WriteTextfile writes the current values in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
