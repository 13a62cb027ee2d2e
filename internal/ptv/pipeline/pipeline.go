// Package pipeline runs the tracking stages end to end: snapshot
// ingestion, frame-to-frame linking, track assembly, track repair and
// table building.
package pipeline

import (
	"fmt"
	"time"

	"github.com/banshee-data/lagrangian.tracks/internal/monitoring"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/linking"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/snapshot"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/tracks"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/uid"
	"github.com/banshee-data/lagrangian.tracks/internal/timeutil"
)

// Stage names used for timing and metrics labels.
const (
	StageIngest   = "ingest"
	StageLink     = "link"
	StageAssemble = "assemble"
	StageRepair   = "repair"
	StageTable    = "table"
)

// Options carries the optional collaborators of a run.
type Options struct {
	AuxNames []string
	Clock    timeutil.Clock         // Defaults to RealClock
	Metrics  *monitoring.RunMetrics // Nil disables metrics
}

// Result is everything a successful run produces.
type Result struct {
	Table    *ptv.Table
	Summary  Summary
	Linking  linking.Stats
	Assembly tracks.Assembly
	Repair   tracks.RepairStats
	MaxUID   ptv.UID
	Frames   int // Snapshots in the store, including empty ones
	Input    int // Detections ingested
	Timings  map[string]time.Duration
	Started  time.Time
	Finished time.Time
}

// Run tracks frames end to end. It returns ptv.ErrNoTracks, with a nil
// Result, when no track of at least two observations survives. Frames
// failing ptv.Frames.Validate are rejected before any work is done.
func Run(frames ptv.Frames, cfg Config, opts Options) (*Result, error) {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if err := frames.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detections: %w", err)
	}

	alloc := uid.NewAllocator()
	linker, err := linking.NewLinker(cfg.Linking, alloc)
	if err != nil {
		return nil, fmt.Errorf("invalid linking config: %w", err)
	}
	assembler, err := tracks.NewAssembler(cfg.Tracks)
	if err != nil {
		return nil, fmt.Errorf("invalid tracks config: %w", err)
	}
	repairer, err := tracks.NewRepairer(cfg.Tracks)
	if err != nil {
		return nil, fmt.Errorf("invalid tracks config: %w", err)
	}

	res := &Result{Timings: make(map[string]time.Duration), Started: clock.Now()}
	mark := res.Started
	stage := func(name string) {
		now := clock.Now()
		res.Timings[name] = now.Sub(mark)
		tracef("stage %s took %v", name, res.Timings[name])
		mark = now
	}

	store := snapshot.NewStore(frames)
	res.Frames = store.Len()
	res.Input = store.Detections()
	stage(StageIngest)
	diagf("ingested %d detections over %d frames", res.Input, res.Frames)

	res.Linking = linker.Run(store)
	res.MaxUID = alloc.Max()
	stage(StageLink)

	res.Assembly = assembler.Assemble(store)
	stage(StageAssemble)

	var kept []ptv.UID
	kept, res.Repair = repairer.Repair(store, res.Assembly.UIDs)
	stage(StageRepair)

	if len(kept) == 0 {
		opsf("%v: %d detections, %d uids, %d degenerate",
			ptv.ErrNoTracks, res.Input, alloc.Issued(), res.Assembly.Degenerate)
		observe(opts.Metrics, res)
		return nil, ptv.ErrNoTracks
	}

	res.Table = ptv.NewTable(assembler.Tracks(store, kept), opts.AuxNames)
	stage(StageTable)
	res.Finished = mark
	res.Summary = Summarize(res.Table)

	diagf("run complete: %d tracks, %d rows, %d merges, mean length %.2f",
		res.Summary.Tracks, res.Summary.Rows, len(res.Repair.Merges), res.Summary.MeanTrackLength)
	observe(opts.Metrics, res)
	return res, nil
}

// observe copies run counters into m.
func observe(m *monitoring.RunMetrics, res *Result) {
	if m == nil {
		return
	}
	m.Frames.Add(float64(res.Frames))
	m.Detections.Add(float64(res.Input))
	m.Matches.Add(float64(res.Linking.Matches))
	m.FreshUIDs.Add(float64(res.Linking.FreshUIDs))
	m.Lookbacks.Add(float64(res.Linking.Lookbacks))
	m.LookbackMisses.Add(float64(res.Linking.LookbackMisses))
	m.Merges.Add(float64(len(res.Repair.Merges)))
	m.RejectedMerges.Add(float64(res.Repair.Rejected))
	m.DegenerateTracks.Add(float64(res.Assembly.Degenerate))
	if res.Table != nil {
		m.TracksOutput.Set(float64(len(res.Table.TrackLengths)))
		m.RowsOutput.Set(float64(len(res.Table.Rows)))
	} else {
		m.TracksOutput.Set(0)
		m.RowsOutput.Set(0)
	}
	for name, d := range res.Timings {
		m.StageSeconds.WithLabelValues(name).Set(d.Seconds())
	}
}
