package linking

import (
	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/snapshot"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/uid"
)

// FrameStats summarises one frame pair.
type FrameStats struct {
	Frame      int // Frame index of the successor snapshot
	Candidates int // Successor detections considered
	Gated      int // Candidates rejected by the search radius
	Conflicts  int // Candidates dropped because a closer one claimed the same predecessor
	Matches    int // Accepted pairs
	Fresh      int // UIDs minted for unmatched detections
}

// match is an accepted predecessor/successor pair.
type match struct {
	prev, next int
	dist       float64
}

// Associator links a resolved snapshot to the next raw snapshot.
type Associator struct {
	cfg   Config
	alloc *uid.Allocator
	dt    float64
}

// NewAssociator returns an Associator minting fresh UIDs from alloc.
func NewAssociator(cfg Config, alloc *uid.Allocator) *Associator {
	return &Associator{cfg: cfg, alloc: alloc, dt: 1 / cfg.SamplingFrequencyHz}
}

// Associate resolves every observation of next against prev. Matched
// successors inherit the predecessor's UID with lifetime+1 and record
// their displacement; the predecessor receives the velocity toward its
// successor. Unmatched successors start new tracks.
//
// Both snapshots are sorted by x first, fixing iteration and allocation
// order.
func (a *Associator) Associate(store *snapshot.Store, prev, next *snapshot.Snapshot) FrameStats {
	prev.SortByX()
	next.SortByX()

	stats := FrameStats{Frame: next.Frame, Candidates: next.Len()}

	var pairs []match
	switch a.cfg.Strategy {
	case StrategyOptimal:
		pairs = a.pairOptimal(prev, next, &stats)
	default:
		pairs = a.pairNearest(prev, next, &stats)
	}

	successorOf := make([]int, next.Len())
	for i := range successorOf {
		successorOf[i] = -1
	}
	for _, m := range pairs {
		successorOf[m.next] = m.prev
	}

	for bi := range next.Obs {
		b := &next.Obs[bi]
		ai := successorOf[bi]
		if ai < 0 {
			store.Assign(next, bi, ptv.Identity{UID: a.alloc.Next(), Lifetime: 0})
			b.Displacement = ptv.None[ptv.Vec2]()
			stats.Fresh++
			continue
		}

		p := &prev.Obs[ai]
		pid, _ := p.Identity.Get()
		disp := b.Position.Sub(p.Position)
		store.Assign(next, bi, ptv.Identity{UID: pid.UID, Lifetime: pid.Lifetime + 1})
		b.Displacement = a.coerce(disp)
		p.Velocity = a.coerce(disp.Scale(1 / a.dt))
		stats.Matches++
	}

	diagf("frame %d: %d candidates, %d matched, %d gated, %d conflicts, %d fresh",
		stats.Frame, stats.Candidates, stats.Matches, stats.Gated, stats.Conflicts, stats.Fresh)
	return stats
}

// Seed gives every observation of snap a fresh UID with lifetime 0, in x
// order. Used for the first frame and after empty frames.
func (a *Associator) Seed(store *snapshot.Store, snap *snapshot.Snapshot) FrameStats {
	snap.SortByX()
	for i := range snap.Obs {
		store.Assign(snap, i, ptv.Identity{UID: a.alloc.Next(), Lifetime: 0})
		snap.Obs[i].Displacement = ptv.None[ptv.Vec2]()
	}
	return FrameStats{Frame: snap.Frame, Candidates: snap.Len(), Fresh: snap.Len()}
}

// predictions extrapolates every predecessor by its last displacement.
// An undefined displacement predicts no motion.
func predictions(prev *snapshot.Snapshot) []ptv.Vec2 {
	out := make([]ptv.Vec2, prev.Len())
	for i := range prev.Obs {
		o := &prev.Obs[i]
		out[i] = o.Position.Add(o.Displacement.OrElse(ptv.Vec2{}))
	}
	return out
}

// pairNearest finds, for each successor, the nearest predicted position,
// drops candidates at or beyond the search radius, and lets each
// predecessor keep only its closest successor.
func (a *Associator) pairNearest(prev, next *snapshot.Snapshot, stats *FrameStats) []match {
	index := NewSiteIndex(predictions(prev))

	best := make(map[int]match, prev.Len())
	order := make([]int, 0, prev.Len())
	for bi := range next.Obs {
		ai, dist, ok := index.Nearest(next.Obs[bi].Position)
		if !ok {
			continue
		}
		tracef("frame %d: candidate %d -> predecessor %d dist=%.6g", next.Frame, bi, ai, dist)
		// Written as !(dist < R) so a NaN distance is gated too.
		if !(dist < a.cfg.SearchRadius) {
			stats.Gated++
			continue
		}
		cur, taken := best[ai]
		if !taken {
			best[ai] = match{prev: ai, next: bi, dist: dist}
			order = append(order, ai)
			continue
		}
		stats.Conflicts++
		if dist < cur.dist {
			best[ai] = match{prev: ai, next: bi, dist: dist}
		}
	}

	pairs := make([]match, 0, len(order))
	for _, ai := range order {
		pairs = append(pairs, best[ai])
	}
	return pairs
}

// pairOptimal solves a global assignment over predicted-position
// distances. Pairs at or beyond the search radius are forbidden.
func (a *Associator) pairOptimal(prev, next *snapshot.Snapshot, stats *FrameStats) []match {
	preds := predictions(prev)
	cost := make([][]float64, next.Len())
	forbidden := make([][]bool, next.Len())
	for bi := range next.Obs {
		cost[bi] = make([]float64, len(preds))
		forbidden[bi] = make([]bool, len(preds))
		reachable := false
		for ai, p := range preds {
			d := next.Obs[bi].Position.Sub(p).Norm()
			cost[bi][ai] = d
			if !(d < a.cfg.SearchRadius) {
				forbidden[bi][ai] = true
			} else {
				reachable = true
			}
		}
		if !reachable {
			stats.Gated++
		}
	}

	assign := minCostAssignment(cost, forbidden)
	pairs := make([]match, 0, len(assign))
	for bi, ai := range assign {
		if ai < 0 {
			continue
		}
		pairs = append(pairs, match{prev: ai, next: bi, dist: cost[bi][ai]})
	}
	stats.Conflicts = next.Len() - stats.Gated - len(pairs)
	return pairs
}

func (a *Associator) coerce(v ptv.Vec2) ptv.Optional[ptv.Vec2] {
	if a.cfg.CoerceZeroVelocity && v.IsZero() {
		return ptv.None[ptv.Vec2]()
	}
	return ptv.Some(v)
}
