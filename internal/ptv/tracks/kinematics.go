package tracks

import "github.com/banshee-data/lagrangian.tracks/internal/ptv"

// Differentiate returns the time derivative of samples taken at times,
// using a forward difference at the first sample, a backward difference at
// the last, and a central difference everywhere else. A derivative is
// undefined when its own sample or any sample its stencil reads is
// undefined; a lone sample has an undefined derivative too. times must be
// strictly increasing.
func Differentiate(times []float64, samples []ptv.Optional[ptv.Vec2]) []ptv.Optional[ptv.Vec2] {
	n := len(samples)
	out := make([]ptv.Optional[ptv.Vec2], n)
	if n < 2 {
		return out
	}
	for k := range samples {
		if !samples[k].Valid() {
			continue
		}
		lo, hi := max(k-1, 0), min(k+1, n-1)
		out[k] = slope(times[lo], times[hi], samples[lo], samples[hi])
	}
	return out
}

func slope(t0, t1 float64, s0, s1 ptv.Optional[ptv.Vec2]) ptv.Optional[ptv.Vec2] {
	v0, ok0 := s0.Get()
	v1, ok1 := s1.Get()
	if !ok0 || !ok1 {
		return ptv.None[ptv.Vec2]()
	}
	return ptv.Some(v1.Sub(v0).Scale(1 / (t1 - t0)))
}
