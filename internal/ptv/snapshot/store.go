// Package snapshot holds the per-frame observation arrays that the
// tracking stages resolve in place.
//
// A Store is created once from the raw detections and then mutated by
// the linker (identities, displacement, velocity), the assembler
// (acceleration) and the repairer (UID relabelling). It keeps a per-UID
// frame span so a track can be collected without scanning every frame.
package snapshot

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
)

// ErrNoAnchor is returned by LastNonEmpty when no non-empty snapshot lies
// within the lookback bound.
var ErrNoAnchor = errors.New("no non-empty frame within lookback")

// ErrOverlap is returned by Relabel when the two UIDs share a frame.
var ErrOverlap = errors.New("uid frame ranges overlap")

// Span is the inclusive frame range over which a UID occurs.
type Span struct {
	First int
	Last  int
}

// Snapshot is the collection of observations for one frame.
type Snapshot struct {
	Frame int
	Obs   []ptv.ParticleObservation

	index map[ptv.UID]int
}

// Len returns the number of observations in the frame.
func (s *Snapshot) Len() int { return len(s.Obs) }

// Empty reports whether the frame has no observations.
func (s *Snapshot) Empty() bool { return len(s.Obs) == 0 }

// SortByX orders observations by x coordinate. The sort is stable so
// detections sharing an x keep their ingestion order.
func (s *Snapshot) SortByX() {
	sort.SliceStable(s.Obs, func(i, j int) bool {
		return s.Obs[i].Position.X < s.Obs[j].Position.X
	})
	s.reindex()
}

func (s *Snapshot) reindex() {
	s.index = make(map[ptv.UID]int, len(s.Obs))
	for i := range s.Obs {
		if id, ok := s.Obs[i].UID(); ok {
			s.index[id] = i
		}
	}
}

// Find returns the observation labelled uid, if present.
func (s *Snapshot) Find(uid ptv.UID) (*ptv.ParticleObservation, bool) {
	i, ok := s.index[uid]
	if !ok {
		return nil, false
	}
	return &s.Obs[i], true
}

// MaxUID returns the largest UID assigned in this frame.
func (s *Snapshot) MaxUID() (ptv.UID, bool) {
	var best ptv.UID
	found := false
	for id := range s.index {
		if !found || id > best {
			best = id
			found = true
		}
	}
	return best, found
}

// Resolved reports whether every observation carries an identity.
func (s *Snapshot) Resolved() bool {
	return len(s.index) == len(s.Obs)
}

// Store is the ordered sequence of snapshots for a whole recording.
type Store struct {
	frames []*Snapshot
	first  int
	spans  map[ptv.UID]Span
}

// NewStore builds a store covering every frame index from the smallest to
// the largest key of frames. Absent indices become empty snapshots, so
// callers must check frames with ptv.Frames.Validate first.
// Auxiliary columns are copied so the caller's slices are never aliased.
func NewStore(frames ptv.Frames) *Store {
	s := &Store{spans: make(map[ptv.UID]Span)}
	if len(frames) == 0 {
		return s
	}

	lo, hi := 0, 0
	firstKey := true
	for f := range frames {
		if firstKey || f < lo {
			lo = f
		}
		if firstKey || f > hi {
			hi = f
		}
		firstKey = false
	}

	s.first = lo
	s.frames = make([]*Snapshot, 0, hi-lo+1)
	for f := lo; f <= hi; f++ {
		dets := frames[f]
		snap := &Snapshot{Frame: f}
		if len(dets) > 0 {
			snap.Obs = make([]ptv.ParticleObservation, len(dets))
			snap.index = make(map[ptv.UID]int, len(dets))
		}
		for i, d := range dets {
			var aux []float64
			if len(d.Aux) > 0 {
				aux = append([]float64(nil), d.Aux...)
			}
			snap.Obs[i] = ptv.ParticleObservation{
				Frame:    f,
				Position: d.Position,
				Aux:      aux,
			}
		}
		s.frames = append(s.frames, snap)
	}
	return s
}

// Len returns the number of frames, including empty ones.
func (s *Store) Len() int { return len(s.frames) }

// At returns the snapshot at position i (0-based, not a frame index).
func (s *Store) At(i int) *Snapshot { return s.frames[i] }

// FirstFrame returns the smallest frame index in the store.
func (s *Store) FirstFrame() int { return s.first }

// Frame returns the snapshot for a frame index.
func (s *Store) Frame(frame int) (*Snapshot, bool) {
	i := frame - s.first
	if i < 0 || i >= len(s.frames) {
		return nil, false
	}
	return s.frames[i], true
}

// Detections returns the total observation count.
func (s *Store) Detections() int {
	n := 0
	for _, snap := range s.frames {
		n += len(snap.Obs)
	}
	return n
}

// Assign labels observation i of snap and extends the UID's span.
func (s *Store) Assign(snap *Snapshot, i int, id ptv.Identity) {
	if prev, ok := snap.Obs[i].UID(); ok {
		delete(snap.index, prev)
	}
	snap.Obs[i].Identity = ptv.Some(id)
	snap.index[id.UID] = i

	span, ok := s.spans[id.UID]
	if !ok {
		s.spans[id.UID] = Span{First: snap.Frame, Last: snap.Frame}
		return
	}
	if snap.Frame < span.First {
		span.First = snap.Frame
	}
	if snap.Frame > span.Last {
		span.Last = snap.Frame
	}
	s.spans[id.UID] = span
}

// Span returns the inclusive frame range of uid.
func (s *Store) Span(uid ptv.UID) (Span, bool) {
	span, ok := s.spans[uid]
	return span, ok
}

// UIDs returns every UID present in the store in increasing order.
func (s *Store) UIDs() []ptv.UID {
	ids := make([]ptv.UID, 0, len(s.spans))
	for id := range s.spans {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Collect returns uid's observations in increasing frame order. The
// pointers refer into the store and stay valid until the next SortByX.
func (s *Store) Collect(uid ptv.UID) []*ptv.ParticleObservation {
	span, ok := s.spans[uid]
	if !ok {
		return nil
	}
	out := make([]*ptv.ParticleObservation, 0, span.Last-span.First+1)
	for f := span.First; f <= span.Last; f++ {
		snap, ok := s.Frame(f)
		if !ok {
			continue
		}
		if obs, ok := snap.Find(uid); ok {
			out = append(out, obs)
		}
	}
	return out
}

// Relabel moves every observation of from onto to and returns how many
// rows changed. Lifetimes and kinematics are left untouched. It fails
// with ErrOverlap, changing nothing, if both UIDs occur in one frame.
func (s *Store) Relabel(from, to ptv.UID) (int, error) {
	if from == to {
		return 0, nil
	}
	fromSpan, ok := s.spans[from]
	if !ok {
		return 0, fmt.Errorf("relabel %d -> %d: unknown uid %d", from, to, from)
	}

	for f := fromSpan.First; f <= fromSpan.Last; f++ {
		snap, _ := s.Frame(f)
		_, hasFrom := snap.index[from]
		_, hasTo := snap.index[to]
		if hasFrom && hasTo {
			return 0, fmt.Errorf("relabel %d -> %d at frame %d: %w", from, to, f, ErrOverlap)
		}
	}

	moved := 0
	for f := fromSpan.First; f <= fromSpan.Last; f++ {
		snap, _ := s.Frame(f)
		i, ok := snap.index[from]
		if !ok {
			continue
		}
		id, _ := snap.Obs[i].Identity.Get()
		id.UID = to
		snap.Obs[i].Identity = ptv.Some(id)
		delete(snap.index, from)
		snap.index[to] = i
		moved++
	}

	delete(s.spans, from)
	toSpan, ok := s.spans[to]
	if !ok {
		toSpan = fromSpan
	} else {
		toSpan.First = min(toSpan.First, fromSpan.First)
		toSpan.Last = max(toSpan.Last, fromSpan.Last)
	}
	s.spans[to] = toSpan
	return moved, nil
}

// LastNonEmpty scans backward from position before-1 for the nearest
// non-empty snapshot, examining at most maxLookback snapshots (0 means no
// bound). It returns ErrNoAnchor when none is found.
func (s *Store) LastNonEmpty(before, maxLookback int) (*Snapshot, error) {
	examined := 0
	for i := before - 1; i >= 0; i-- {
		if maxLookback > 0 && examined >= maxLookback {
			break
		}
		examined++
		if !s.frames[i].Empty() {
			return s.frames[i], nil
		}
	}
	return nil, ErrNoAnchor
}
