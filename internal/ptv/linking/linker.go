// Package linking performs the sequential frame-to-frame pass that turns
// raw snapshots into UID- and lifetime-labelled observations.
//
// Each successor frame is matched against its predecessor using
// constant-velocity prediction and nearest-neighbour search within a
// search radius. Velocities are written back onto the predecessor once
// its successor is known. The pass is inherently serial: frame i+1 can
// only be resolved after frame i.
package linking

import (
	"errors"

	"github.com/banshee-data/lagrangian.tracks/internal/ptv/snapshot"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/uid"
)

// Stats summarises a full linking pass.
type Stats struct {
	FramePairs     int // Adjacent frame pairs visited
	SkippedPairs   int // Pairs where both frames were empty
	Matches        int
	Gated          int
	Conflicts      int
	FreshUIDs      int
	Lookbacks      int // Empty predecessors that needed a backward anchor search
	LookbackMisses int // Anchor searches that found nothing within the bound
	Unresolved     int // Frames left with an unlabelled observation; always 0 after Run
	Frames         []FrameStats
}

func (s *Stats) add(fs FrameStats) {
	s.Matches += fs.Matches
	s.Gated += fs.Gated
	s.Conflicts += fs.Conflicts
	s.FreshUIDs += fs.Fresh
	s.Frames = append(s.Frames, fs)
}

// Linker drives the associator across a whole store.
type Linker struct {
	cfg   Config
	alloc *uid.Allocator
	assoc *Associator
}

// NewLinker validates cfg and returns a Linker that mints UIDs from alloc.
func NewLinker(cfg Config, alloc *uid.Allocator) (*Linker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyNearest
	}
	return &Linker{cfg: cfg, alloc: alloc, assoc: NewAssociator(cfg, alloc)}, nil
}

// Allocator returns the allocator threaded through the pass.
func (l *Linker) Allocator() *uid.Allocator { return l.alloc }

// Run resolves every snapshot in store, in frame order.
func (l *Linker) Run(store *snapshot.Store) Stats {
	var stats Stats
	n := store.Len()
	if n == 0 {
		return stats
	}

	if first := store.At(0); !first.Empty() {
		stats.add(l.assoc.Seed(store, first))
	}

	for i := 0; i+1 < n; i++ {
		prev, next := store.At(i), store.At(i+1)
		stats.FramePairs++

		switch {
		case prev.Empty() && next.Empty():
			stats.SkippedPairs++
		case next.Empty():
			// Nothing to resolve; prev keeps undefined velocities.
		case prev.Empty():
			if i > 0 {
				stats.Lookbacks++
				if !l.anchor(store, i) {
					stats.LookbackMisses++
				}
			}
			stats.add(l.assoc.Seed(store, next))
		default:
			stats.add(l.assoc.Associate(store, prev, next))
		}
	}

	for i := 0; i < n; i++ {
		if snap := store.At(i); !snap.Resolved() {
			stats.Unresolved++
			opsf("frame %d: %d observations left without a uid", snap.Frame, snap.Len())
		}
	}

	diagf("linked %d frames: %d matches, %d fresh uids, %d skipped pairs, max uid %d",
		n, stats.Matches, stats.FreshUIDs, stats.SkippedPairs, l.alloc.Max())
	return stats
}

// anchor searches backward from position i for the last non-empty frame
// and folds its largest UID into the allocator. It reports whether an
// anchor was found.
func (l *Linker) anchor(store *snapshot.Store, i int) bool {
	snap, err := store.LastNonEmpty(i, l.cfg.MaxLookback)
	if err != nil {
		if errors.Is(err, snapshot.ErrNoAnchor) && l.cfg.MaxLookback > 0 {
			opsf("frame %d: %v (max lookback %d), starting fresh tracks",
				store.At(i+1).Frame, err, l.cfg.MaxLookback)
		} else {
			diagf("frame %d: %v, starting fresh tracks", store.At(i+1).Frame, err)
		}
		return false
	}
	if maxUID, ok := snap.MaxUID(); ok {
		l.alloc.Observe(maxUID)
	}
	tracef("frame %d: anchored on frame %d", store.At(i+1).Frame, snap.Frame)
	return true
}
