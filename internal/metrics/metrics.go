// Package metrics counts stage and file outcomes with Prometheus
// collectors. A Recorder is a pipeline observer; at the end of a run its
// registry can be written in the text exposition format for the node
// exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nao1215/pdfscrub/internal/model"
)

const namespace = "pdfscrub"

// Recorder holds the collectors of one process. It is safe for concurrent
// use.
type Recorder struct {
	registry *prometheus.Registry

	// stageTotal counts stage outcomes.
	// Labels: stage, state (completed, skipped, failed_recovered, failed_fatal)
	stageTotal *prometheus.CounterVec

	// stageDuration measures the time spent in each stage.
	// Labels: stage
	stageDuration *prometheus.HistogramVec

	// filesTotal counts files by terminal status.
	// Labels: status
	filesTotal *prometheus.CounterVec

	// fileDuration measures whole-file processing time.
	fileDuration prometheus.Histogram

	// removalsTotal counts removed keys.
	// Labels: key
	removalsTotal *prometheus.CounterVec

	streamsEmptied prometheus.Counter

	// rebuildFallbacks counts nodes copied structurally by the rebuilder.
	rebuildFallbacks prometheus.Counter
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		stageTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "total",
			Help:      "Pipeline stages by final state",
		}, []string{"stage", "state"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		filesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "file",
			Name:      "total",
			Help:      "Processed files by terminal status",
		}, []string{"status"}),
		fileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "file",
			Name:      "duration_seconds",
			Help:      "Whole-file processing time in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
		removalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sanitize",
			Name:      "removals_total",
			Help:      "Dictionary keys removed by the sanitizer",
		}, []string{"key"}),
		streamsEmptied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sanitize",
			Name:      "streams_emptied_total",
			Help:      "Streams whose payload was replaced by an empty one",
		}),
		rebuildFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rebuild",
			Name:      "fallbacks_total",
			Help:      "Nodes copied structurally after a copy failure",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// StageFinished records one stage outcome.
func (r *Recorder) StageFinished(stage string, state model.StageState, elapsed time.Duration) {
	r.stageTotal.WithLabelValues(stage, state.String()).Inc()
	if state != model.StageSkipped {
		r.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	}
}

// FileFinished records the terminal status of one file.
func (r *Recorder) FileFinished(status model.FileStatus, elapsed time.Duration) {
	r.filesTotal.WithLabelValues(string(status)).Inc()
	if status != model.StatusInvalid {
		r.fileDuration.Observe(elapsed.Seconds())
	}
}

// RecordReport adds the sanitizer and rebuilder counts of a finished file.
func (r *Recorder) RecordReport(report *model.FileReport) {
	if report == nil {
		return
	}
	for _, rm := range report.Removals {
		r.removalsTotal.WithLabelValues(rm.Key).Inc()
	}
	r.streamsEmptied.Add(float64(report.StreamsEmptied))
	if report.Rebuild != nil {
		r.rebuildFallbacks.Add(float64(report.Rebuild.Fallbacks))
	}
}

// WriteTextfile writes the current values to path in the Prometheus text
// format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
