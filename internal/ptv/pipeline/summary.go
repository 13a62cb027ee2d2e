package pipeline

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
)

// Summary describes the shape of an output table.
type Summary struct {
	Tracks          int
	Rows            int
	MeanTrackLength float64
	StdTrackLength  float64
	MaxTrackLength  int
	MeanSpeed       float64 // Over rows with defined velocity (m/s)
	MaxSpeed        float64
	MeanAccel       float64 // Over rows with defined acceleration (m/s²)
	DefinedVelocity int     // Rows carrying a defined velocity
	DefinedAccel    int     // Rows carrying a defined acceleration
}

// Summarize computes table statistics. A nil or empty table yields the
// zero Summary.
func Summarize(t *ptv.Table) Summary {
	var s Summary
	if t == nil || len(t.Rows) == 0 {
		return s
	}
	s.Tracks = len(t.TrackLengths)
	s.Rows = len(t.Rows)

	lengths := make([]float64, len(t.TrackLengths))
	for i, n := range t.TrackLengths {
		lengths[i] = float64(n)
	}
	s.MeanTrackLength, s.StdTrackLength = stat.MeanStdDev(lengths, nil)
	if math.IsNaN(s.StdTrackLength) {
		s.StdTrackLength = 0
	}
	s.MaxTrackLength = int(floats.Max(lengths))

	speeds := make([]float64, 0, len(t.Rows))
	accels := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		if v, ok := r.Velocity.Get(); ok {
			speeds = append(speeds, v.Norm())
		}
		if acc, ok := r.Acceleration.Get(); ok {
			accels = append(accels, acc.Norm())
		}
	}
	s.DefinedVelocity = len(speeds)
	if len(speeds) > 0 {
		s.MeanSpeed = stat.Mean(speeds, nil)
		s.MaxSpeed = floats.Max(speeds)
	}
	s.DefinedAccel = len(accels)
	if len(accels) > 0 {
		s.MeanAccel = stat.Mean(accels, nil)
	}
	return s
}
