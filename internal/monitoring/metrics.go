package monitoring

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ptv"

// RunMetrics holds the Prometheus collectors describing one tracking run.
// Each RunMetrics owns a private registry so that repeated runs in one
// process (tests, batch jobs) never collide on the default registry.
type RunMetrics struct {
	registry *prometheus.Registry

	Frames           prometheus.Counter
	Detections       prometheus.Counter
	Matches          prometheus.Counter
	FreshUIDs        prometheus.Counter
	Lookbacks        prometheus.Counter
	LookbackMisses   prometheus.Counter
	Merges           prometheus.Counter
	RejectedMerges   prometheus.Counter
	DegenerateTracks prometheus.Counter
	TracksOutput     prometheus.Gauge
	RowsOutput       prometheus.Gauge
	StageSeconds     *prometheus.GaugeVec
}

// NewRunMetrics creates and registers the run collectors.
func NewRunMetrics() *RunMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	m := &RunMetrics{
		registry:         prometheus.NewRegistry(),
		Frames:           counter("frames_processed_total", "Snapshots visited by the linker, including empty frames."),
		Detections:       counter("detections_total", "Detections ingested."),
		Matches:          counter("matches_total", "Detections that inherited a UID from the previous frame."),
		FreshUIDs:        counter("fresh_uids_total", "UIDs minted for unmatched detections."),
		Lookbacks:        counter("lookbacks_total", "Empty predecessor frames that required a backward anchor search."),
		LookbackMisses:   counter("lookback_misses_total", "Anchor searches that found no non-empty frame within the bound."),
		Merges:           counter("track_merges_total", "Track pairs stitched across missed detections."),
		RejectedMerges:   counter("track_merges_rejected_total", "Merges refused because the frame ranges overlapped."),
		DegenerateTracks: counter("degenerate_tracks_total", "Tracks dropped for having a single observation."),
		TracksOutput:     gauge("tracks_output", "Tracks in the final table."),
		RowsOutput:       gauge("rows_output", "Rows in the final table."),
		StageSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		m.Frames, m.Detections, m.Matches, m.FreshUIDs,
		m.Lookbacks, m.LookbackMisses, m.Merges, m.RejectedMerges,
		m.DegenerateTracks, m.TracksOutput, m.RowsOutput, m.StageSeconds,
	)
	return m
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (m *RunMetrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the current metric values to path in the text
// exposition format read by node_exporter's textfile collector.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	Logf("[metrics] wrote %s", path)
	return nil
}
