package ptv

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoTracks is returned when no track with at least two observations
// survives assembly. It aborts the run with no partial output.
var ErrNoTracks = errors.New("no tracks found")

// ErrNonFinite is returned by Frames.Validate for a NaN or infinite
// detection coordinate.
var ErrNonFinite = errors.New("non-finite detection position")

// ErrFrameSpan is returned by Frames.Validate when the frame indices
// cover more than MaxFrameSpan frames.
var ErrFrameSpan = errors.New("frame span too large")

// MaxFrameSpan bounds the number of frames, empty ones included, between
// the smallest and largest frame index of a recording. Every frame in the
// span is materialised as a snapshot.
const MaxFrameSpan = 1 << 22

// Vec2 is a 2D vector in metres (positions, displacements) or metres per
// second (velocities) depending on context.
type Vec2 struct {
	X float64
	Y float64
}

// Add returns v + w.
func (v Vec2) Add(w Vec2) Vec2 { return Vec2{X: v.X + w.X, Y: v.Y + w.Y} }

// Sub returns v - w.
func (v Vec2) Sub(w Vec2) Vec2 { return Vec2{X: v.X - w.X, Y: v.Y - w.Y} }

// Scale returns v * s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{X: v.X * s, Y: v.Y * s} }

// Norm returns the Euclidean length of v.
func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// IsFinite reports whether both components are neither NaN nor infinite.
func (v Vec2) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// IsZero reports whether both components are exactly zero.
func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

// Optional is an explicit "value or undefined" wrapper. The zero value is
// undefined.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some wraps a defined value.
func Some[T any](v T) Optional[T] { return Optional[T]{value: v, ok: true} }

// None returns the undefined value.
func None[T any]() Optional[T] { return Optional[T]{} }

// Get returns the value and whether it is defined.
func (o Optional[T]) Get() (T, bool) { return o.value, o.ok }

// Valid reports whether the value is defined.
func (o Optional[T]) Valid() bool { return o.ok }

// OrElse returns the value, or def when undefined.
func (o Optional[T]) OrElse(def T) T {
	if o.ok {
		return o.value
	}
	return def
}

// UID identifies one tracked particle across frames. Allocated UIDs start
// at 1; there is no sentinel value, unassigned observations carry an
// undefined Identity instead.
type UID int64

// Identity is the resolved track label of an observation.
type Identity struct {
	UID UID
	// Lifetime counts consecutive successful matches, 0 at the UID's
	// first appearance.
	Lifetime int
}

// Detection is one raw particle centroid produced by the external
// detection stage.
type Detection struct {
	Position Vec2
	// Aux carries auxiliary per-detection columns (orientation, diameter,
	// quality flags) positionally. It is never interpreted.
	Aux []float64
}

// Frames maps frame index to the detections found in that frame. Frame
// indices between the smallest and largest key that are absent are
// treated as empty frames.
type Frames map[int][]Detection

// Validate checks that every detection position is finite and that the
// frame indices span at most MaxFrameSpan frames.
func (f Frames) Validate() error {
	first := true
	lo, hi := 0, 0
	for frame, dets := range f {
		if first || frame < lo {
			lo = frame
		}
		if first || frame > hi {
			hi = frame
		}
		first = false
		for i, d := range dets {
			if !d.Position.IsFinite() {
				return fmt.Errorf("frame %d detection %d (%g, %g): %w",
					frame, i, d.Position.X, d.Position.Y, ErrNonFinite)
			}
		}
	}
	// hi-lo wraps negative when the true span exceeds the int range.
	if d := hi - lo; d < 0 || d >= MaxFrameSpan {
		return fmt.Errorf("frames %d..%d: %w (limit %d)", lo, hi, ErrFrameSpan, MaxFrameSpan)
	}
	return nil
}

// ParticleObservation is one detection inside a snapshot, together with
// everything the tracker resolves about it.
type ParticleObservation struct {
	Frame    int
	Position Vec2
	// Displacement is position minus the matched predecessor's position.
	// It drives the constant-velocity prediction for the next frame.
	Displacement Optional[Vec2]
	// Velocity is the displacement toward the matched successor divided
	// by the frame interval. It describes the particle while departing
	// this frame.
	Velocity     Optional[Vec2]
	Acceleration Optional[Vec2]
	Identity     Optional[Identity]
	Aux          []float64
}

// UID returns the observation's UID and whether one has been assigned.
func (o *ParticleObservation) UID() (UID, bool) {
	id, ok := o.Identity.Get()
	return id.UID, ok
}

// Row is one line of the flat output table.
type Row struct {
	Position     Vec2
	Velocity     Optional[Vec2]
	UID          UID
	Lifetime     int
	Frame        int
	Acceleration Optional[Vec2]
	Aux          []float64
}

// Track is a frame-ordered run of rows sharing one UID.
type Track struct {
	UID  UID
	Rows []Row
}

// Len returns the number of rows in the track.
func (t Track) Len() int { return len(t.Rows) }

// Table is the final output: rows grouped by UID plus one length per
// track, in the same order.
type Table struct {
	Rows         []Row
	TrackLengths []int
	// AuxNames labels the auxiliary columns, if known.
	AuxNames []string
}

// NewTable flattens tracks into a Table.
func NewTable(tracks []Track, auxNames []string) *Table {
	t := &Table{
		TrackLengths: make([]int, 0, len(tracks)),
		AuxNames:     auxNames,
	}
	for _, tr := range tracks {
		t.Rows = append(t.Rows, tr.Rows...)
		t.TrackLengths = append(t.TrackLengths, len(tr.Rows))
	}
	return t
}

// Track returns the rows of the i-th track.
func (t *Table) Track(i int) []Row {
	start := 0
	for j := 0; j < i; j++ {
		start += t.TrackLengths[j]
	}
	return t.Rows[start : start+t.TrackLengths[i]]
}

// RowsForUID returns all rows labelled uid.
func (t *Table) RowsForUID(uid UID) []Row {
	var out []Row
	for _, r := range t.Rows {
		if r.UID == uid {
			out = append(out, r)
		}
	}
	return out
}
