// Package tracks turns a fully linked snapshot store into tracks.
//
// The Assembler gathers each UID's observations in frame order, derives
// acceleration from velocity and drops tracks that cannot represent
// motion. The Repairer then stitches tracks broken by missed detections
// by relabelling store rows; tracks are re-collected afterwards rather
// than patched.
package tracks

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/snapshot"
)

// DefaultFrameOffset aligns output frame numbers with the numbering used by
// the surrounding acquisition pipeline.
const DefaultFrameOffset = -2

// MinTrackLength is the fewest observations a track needs to be kept.
const MinTrackLength = 2

// Config holds assembly and repair parameters.
type Config struct {
	SamplingFrequencyHz float64 // Frame rate; Δt = 1/fs
	SearchRadius        float64 // Base repair radius (metres), scaled by gap+1
	MaxFramesSkipped    int     // Largest frame gap the repairer bridges
	FrameOffset         int     // Added to frame indices in output rows
	Workers             int     // Concurrent per-UID assembly workers
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if c.SamplingFrequencyHz <= 0 {
		return fmt.Errorf("sampling frequency must be positive, got %g", c.SamplingFrequencyHz)
	}
	if c.SearchRadius <= 0 {
		return fmt.Errorf("search radius must be positive, got %g", c.SearchRadius)
	}
	if c.MaxFramesSkipped < 0 {
		return fmt.Errorf("max frames skipped must be non-negative, got %d", c.MaxFramesSkipped)
	}
	return nil
}

// Assembly is the outcome of Assemble.
type Assembly struct {
	// UIDs lists the tracks with at least MinTrackLength observations in
	// increasing order.
	UIDs []ptv.UID
	// Degenerate counts UIDs dropped for having a single observation.
	Degenerate int
}

// Assembler collects tracks from a linked store.
type Assembler struct {
	cfg Config
}

// NewAssembler validates cfg and returns an Assembler.
func NewAssembler(cfg Config) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Assembler{cfg: cfg}, nil
}

// Assemble computes acceleration for every UID in store, writing it onto
// the observations (undefined wherever a velocity it depends on is), and reports which UIDs form real tracks. Distinct UIDs
// are processed concurrently; each worker only writes the observations of
// its own UID.
func (a *Assembler) Assemble(store *snapshot.Store) Assembly {
	uids := store.UIDs()
	keep := make([]bool, len(uids))

	var g errgroup.Group
	g.SetLimit(a.cfg.Workers)
	for i, u := range uids {
		g.Go(func() error {
			keep[i] = a.assembleOne(store, u)
			return nil
		})
	}
	_ = g.Wait()

	var out Assembly
	for i, u := range uids {
		if keep[i] {
			out.UIDs = append(out.UIDs, u)
		} else {
			out.Degenerate++
		}
	}
	diagf("assembled %d tracks, dropped %d single-observation uids", len(out.UIDs), out.Degenerate)
	return out
}

func (a *Assembler) assembleOne(store *snapshot.Store, u ptv.UID) bool {
	obs := store.Collect(u)
	if len(obs) < MinTrackLength {
		return false
	}

	times := make([]float64, len(obs))
	vel := make([]ptv.Optional[ptv.Vec2], len(obs))
	for k, o := range obs {
		times[k] = float64(o.Frame) / a.cfg.SamplingFrequencyHz
		vel[k] = o.Velocity
	}
	for k, acc := range Differentiate(times, vel) {
		obs[k].Acceleration = acc
	}
	tracef("uid %d: %d observations, frames %d..%d", u, len(obs), obs[0].Frame, obs[len(obs)-1].Frame)
	return true
}

// Tracks materialises the given UIDs as frame-ordered tracks.
func (a *Assembler) Tracks(store *snapshot.Store, uids []ptv.UID) []ptv.Track {
	out := make([]ptv.Track, 0, len(uids))
	for _, u := range uids {
		obs := store.Collect(u)
		tr := ptv.Track{UID: u, Rows: make([]ptv.Row, 0, len(obs))}
		for _, o := range obs {
			id, _ := o.Identity.Get()
			tr.Rows = append(tr.Rows, ptv.Row{
				Position:     o.Position,
				Velocity:     o.Velocity,
				UID:          u,
				Lifetime:     id.Lifetime,
				Frame:        o.Frame + a.cfg.FrameOffset,
				Acceleration: o.Acceleration,
				Aux:          o.Aux,
			})
		}
		out = append(out, tr)
	}
	return out
}
