package tracks

import (
	"sort"

	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/linking"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/snapshot"
)

// Merge records one stitched pair of tracks.
type Merge struct {
	Into     ptv.UID // Surviving UID
	From     ptv.UID // UID whose rows were relabelled
	Gap      int     // Frames between Into's end and From's start
	Distance float64 // Distance from Into's predicted position to From's start
}

// RepairStats summarises a repair pass.
type RepairStats struct {
	Merges   []Merge
	Rejected int // Merges refused because the frame ranges overlapped
}

// startPoint is the first observation of a track.
type startPoint struct {
	uid ptv.UID
	pos ptv.Vec2
}

// Repairer stitches tracks broken by missed detections.
type Repairer struct {
	cfg Config
}

// NewRepairer validates cfg and returns a Repairer.
func NewRepairer(cfg Config) (*Repairer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Repairer{cfg: cfg}, nil
}

// Repair walks uids in increasing order. For each track it predicts the
// position after its last observation, and for gaps df = 1..MaxFramesSkipped
// looks for the nearest track starting at end+df. A start closer than
// (df+1)·SearchRadius is merged by relabelling its rows to the current
// UID, after which the extended track is tried again from its new end.
//
// Only track start points are candidates, so merged tracks never share a
// frame. Repair is the single writer of UID labels; it must not run
// concurrently with anything reading the store. It returns the surviving
// UIDs in increasing order.
func (r *Repairer) Repair(store *snapshot.Store, uids []ptv.UID) ([]ptv.UID, RepairStats) {
	var stats RepairStats
	if r.cfg.MaxFramesSkipped == 0 {
		return append([]ptv.UID(nil), uids...), stats
	}

	ordered := append([]ptv.UID(nil), uids...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	alive := make(map[ptv.UID]bool, len(ordered))
	starts := make(map[int][]startPoint)
	for _, u := range ordered {
		obs := store.Collect(u)
		if len(obs) == 0 {
			continue
		}
		alive[u] = true
		starts[obs[0].Frame] = append(starts[obs[0].Frame], startPoint{uid: u, pos: obs[0].Position})
	}

	for _, u := range ordered {
		for alive[u] {
			m, ok := r.extend(store, u, alive, starts, &stats)
			if !ok {
				break
			}
			alive[m.From] = false
			stats.Merges = append(stats.Merges, m)
			diagf("merged uid %d into %d (gap %d, dist %.6g)", m.From, m.Into, m.Gap, m.Distance)
		}
	}

	out := make([]ptv.UID, 0, len(ordered))
	for _, u := range ordered {
		if alive[u] {
			out = append(out, u)
		}
	}
	return out, stats
}

// extend attempts one merge onto the end of track u.
func (r *Repairer) extend(store *snapshot.Store, u ptv.UID, alive map[ptv.UID]bool,
	starts map[int][]startPoint, stats *RepairStats) (Merge, bool) {

	obs := store.Collect(u)
	if len(obs) == 0 {
		return Merge{}, false
	}
	last := obs[len(obs)-1]
	predicted := last.Position.Add(last.Displacement.OrElse(ptv.Vec2{}))

	for df := 1; df <= r.cfg.MaxFramesSkipped; df++ {
		var cands []startPoint
		for _, sp := range starts[last.Frame+df] {
			if alive[sp.uid] && sp.uid != u {
				cands = append(cands, sp)
			}
		}
		if len(cands) == 0 {
			continue
		}

		positions := make([]ptv.Vec2, len(cands))
		for i, c := range cands {
			positions[i] = c.pos
		}
		i, dist, _ := linking.NewSiteIndex(positions).Nearest(predicted)
		threshold := float64(df+1) * r.cfg.SearchRadius
		tracef("uid %d: gap %d nearest start uid %d dist=%.6g threshold=%.6g",
			u, df, cands[i].uid, dist, threshold)
		if dist >= threshold {
			continue
		}

		if _, err := store.Relabel(cands[i].uid, u); err != nil {
			opsf("repair rejected: %v", err)
			stats.Rejected++
			continue
		}
		return Merge{Into: u, From: cands[i].uid, Gap: df, Distance: dist}, true
	}
	return Merge{}, false
}
