package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lagrangian.tracks/internal/config"
	"github.com/banshee-data/lagrangian.tracks/internal/db"
	"github.com/banshee-data/lagrangian.tracks/internal/fsutil"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
)

const detectionsCSV = `frame,x,y,diameter
0,0.0,0.0,2
1,0.1,0.0,2
2,0.2,0.0,2
3,0.3,0.0,2
0,5.0,5.0,3
1,5.0,5.1,3
2,5.0,5.2,3
`

func testTracking() *config.TrackingConfig {
	tc := config.EmptyTrackingConfig()
	tc.SetSamplingFrequencyHz(1)
	tc.SetSearchRadiusM(0.5)
	return tc
}

func init() {
	setupLogging(io.Discard, false, false)
}

func TestFlagDefaults(t *testing.T) {
	if *maxSkip != -1 {
		t.Errorf("expected -max-skip default -1 (unset), got %d", *maxSkip)
	}
	if *persist {
		t.Error("expected -persist default false")
	}
	if *samplingHz != 0 || *searchRadius != 0 {
		t.Error("expected -fs and -radius to default to 0 (use config)")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		wantErr string
	}{
		{"no input", options{}, "-input or -dataset"},
		{"dataset without db", options{Dataset: "a"}, "-dataset requires -db"},
		{"persist without db", options{Input: "a.csv", Persist: true}, "-persist requires -db"},
		{"csv only", options{Input: "a.csv"}, ""},
		{"dataset with db", options{Dataset: "a", DBPath: "x.db"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunTracking_CSVToStdout(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("in.csv", []byte(detectionsCSV))

	var stdout bytes.Buffer
	err := runTracking(context.Background(), options{
		Tracking: testTracking(),
		Input:    "in.csv",
		Lengths:  "out/lengths.csv",
	}, mfs, &stdout)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	assert.Equal(t, "x,y,vx,vy,uid,lifetime,frame,ax,ay,diameter", lines[0])
	assert.Len(t, lines, 8)
	assert.True(t, strings.HasPrefix(lines[1], "0,0,0.1,0,1,0,-2,"), lines[1])

	lengths, err := mfs.ReadFile("out/lengths.csv")
	require.NoError(t, err)
	assert.Equal(t, "uid,length\n1,4\n2,3\n", string(lengths))
}

func TestRunTracking_NoTracks(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("in.csv", []byte("frame,x,y\n0,0,0\n5,9,9\n"))

	dir := t.TempDir()
	textfile := filepath.Join(dir, "ptv.prom")

	var stdout bytes.Buffer
	err := runTracking(context.Background(), options{
		Tracking:        testTracking(),
		Input:           "in.csv",
		Output:          "out.csv",
		MetricsTextfile: textfile,
	}, mfs, &stdout)
	assert.True(t, errors.Is(err, ptv.ErrNoTracks), "got %v", err)
	assert.False(t, mfs.Exists("out.csv"), "no partial output")
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ptv_tracks_output 0")
}

func TestRunTracking_ImportAndPersist(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(input, []byte(detectionsCSV), 0644))
	dbFile := filepath.Join(dir, "ptv.db")

	ctx := context.Background()
	err := runTracking(ctx, options{
		Tracking: testTracking(),
		Input:    input,
		DBPath:   dbFile,
		Dataset:  "bench",
		Output:   filepath.Join(dir, "out", "tracks.csv"),
		Persist:  true,
	}, fsutil.OSFileSystem{}, io.Discard)
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(dir, "out", "tracks.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "diameter")

	database, err := db.NewDB(dbFile)
	require.NoError(t, err)
	defer database.Close()

	runs, err := database.ListRuns(ctx, "bench")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Tracks)
	assert.Equal(t, 7, runs[0].Rows)
	assert.Contains(t, runs[0].ConfigJSON, `"search_radius_m":0.5`)

	rows, err := database.TrackRows(ctx, runs[0].RunID)
	require.NoError(t, err)
	assert.Len(t, rows, 7)

	// A second run reads the imported dataset straight from the database.
	var stdout bytes.Buffer
	err = runTracking(ctx, options{
		Tracking: testTracking(),
		DBPath:   dbFile,
		Dataset:  "bench",
	}, fsutil.OSFileSystem{}, &stdout)
	require.NoError(t, err)
	assert.Equal(t, string(out), stdout.String())
}
