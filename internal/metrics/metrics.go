// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibereco_pipeline_runs_total",
			Help: "Pipeline runs by terminal outcome",
		},
		[]string{"outcome"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vibereco_pipeline_duration_seconds",
			Help:    "Wall time of a full pipeline run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	StageTracks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibereco_stage_tracks_total",
			Help: "Tracks leaving each stage, by outcome",
		},
		[]string{"stage", "outcome"},
	)

	ExternalRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vibereco_external_request_duration_seconds",
			Help:    "Latency of calls to external providers",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "outcome"},
	)

	Votes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibereco_votes_total",
			Help: "A/B votes recorded, by winning source",
		},
		[]string{"winner"},
	)

	QueuedRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vibereco_queued_runs",
			Help: "Pipeline runs waiting in the worker queue",
		},
	)
)

// ObserveExternal records one provider call.
func ObserveExternal(provider string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ExternalRequestDuration.WithLabelValues(provider, outcome).Observe(time.Since(start).Seconds())
}

// RecordStage adds n tracks to the stage/outcome counter.
func RecordStage(stage, outcome string, n int) {
	if n <= 0 {
		return
	}
	StageTracks.WithLabelValues(stage, outcome).Add(float64(n))
}
