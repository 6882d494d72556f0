package session

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	registry          *prometheus.Registry
	rendersTotal      *prometheus.CounterVec
	renderDuration    prometheus.Histogram
	uncoveredRenders  prometheus.Counter
	uploadsTotal      *prometheus.CounterVec
	frameLoadsTotal   *prometheus.CounterVec
	staleCompletions  *prometheus.CounterVec
	exportsTotal      prometheus.Counter
	exportBytesTotal  prometheus.Counter
	gestureMovesTotal prometheus.Counter
}

// NewMetrics builds a private registry. Sessions never register on the
// global default registry, so several can live in one process.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		rendersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voteframe_session_renders_total",
			Help: "Composite renders by outcome and whether a frame was layered.",
		}, []string{"status", "frame"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voteframe_session_render_duration_seconds",
			Help:    "Wall time of a full composite render.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		uncoveredRenders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voteframe_session_uncovered_renders_total",
			Help: "Renders where the placed photo left part of the clip disk empty.",
		}),
		uploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voteframe_session_uploads_total",
			Help: "Applied photo uploads by outcome and decoded format.",
		}, []string{"status", "format"}),
		frameLoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voteframe_session_frame_loads_total",
			Help: "Applied frame asset loads by outcome and resolved format.",
		}, []string{"status", "format"}),
		staleCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voteframe_session_stale_completions_total",
			Help: "Async completions dropped because a newer request superseded them.",
		}, []string{"kind"}),
		exportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voteframe_session_exports_total",
			Help: "Composites exported as PNG.",
		}),
		exportBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voteframe_session_export_bytes_total",
			Help: "Total encoded PNG bytes exported.",
		}),
		gestureMovesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voteframe_session_gesture_moves_total",
			Help: "Drag moves that changed the transform.",
		}),
	}

	registry.MustRegister(
		m.rendersTotal,
		m.renderDuration,
		m.uncoveredRenders,
		m.uploadsTotal,
		m.frameLoadsTotal,
		m.staleCompletions,
		m.exportsTotal,
		m.exportBytesTotal,
		m.gestureMovesTotal,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
