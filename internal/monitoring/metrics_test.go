package monitoring

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunMetrics_WriteTextfile(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()
	SetLogger(nil)

	m := NewRunMetrics()
	m.Frames.Add(12)
	m.Merges.Inc()
	m.TracksOutput.Set(3)
	m.StageSeconds.WithLabelValues("link").Set(0.25)

	path := filepath.Join(t.TempDir(), "ptv.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"ptv_frames_processed_total 12",
		"ptv_track_merges_total 1",
		"ptv_tracks_output 3",
		`ptv_stage_duration_seconds{stage="link"} 0.25`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}
}

func TestRunMetrics_IndependentRegistries(t *testing.T) {
	// Two runs in one process must not panic on duplicate registration.
	a := NewRunMetrics()
	b := NewRunMetrics()
	a.Detections.Add(5)
	if a.Registry() == b.Registry() {
		t.Error("expected distinct registries")
	}
}

func TestRunMetrics_WriteTextfileError(t *testing.T) {
	m := NewRunMetrics()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing-dir", "ptv.prom"))
	if err == nil {
		t.Error("expected error writing into a missing directory")
	}
}
