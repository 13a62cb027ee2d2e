// Package testutil provides shared test fixtures for the tracking stages.
//
// Generators build ptv.Frames from simple kinematic descriptions so tests
// can state scenarios (a stationary particle, two particles far apart, a
// track that jumps) without hand-writing every detection.
package testutil

import (
	"testing"

	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
)

// Path is a sequence of positions keyed by frame index.
type Path map[int]ptv.Vec2

// Linear returns a path starting at start on frame first and advancing by
// step each frame for n frames.
func Linear(first, n int, start, step ptv.Vec2) Path {
	p := make(Path, n)
	for i := 0; i < n; i++ {
		p[first+i] = start.Add(step.Scale(float64(i)))
	}
	return p
}

// Stationary returns a path that stays at pos for n frames from first.
func Stationary(first, n int, pos ptv.Vec2) Path {
	return Linear(first, n, pos, ptv.Vec2{})
}

// Frames merges paths into a single Frames value. Detections in a frame
// appear in argument order. Frames in between that no path visits are
// left absent (the store treats them as empty).
func Frames(paths ...Path) ptv.Frames {
	out := make(ptv.Frames)
	for _, p := range paths {
		for f, pos := range p {
			out[f] = append(out[f], ptv.Detection{Position: pos})
		}
	}
	return out
}

// WithAux attaches aux to every detection of frames, in place, and returns
// frames for chaining.
func WithAux(frames ptv.Frames, aux ...float64) ptv.Frames {
	for f := range frames {
		for i := range frames[f] {
			frames[f][i].Aux = append([]float64(nil), aux...)
		}
	}
	return frames
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertStrictlyIncreasingFrames fails the test if rows is not strictly
// increasing in frame.
func AssertStrictlyIncreasingFrames(t *testing.T, rows []ptv.Row) {
	t.Helper()
	for i := 1; i < len(rows); i++ {
		if rows[i].Frame <= rows[i-1].Frame {
			t.Fatalf("row %d: frame %d not after frame %d (uid %d)",
				i, rows[i].Frame, rows[i-1].Frame, rows[i].UID)
		}
	}
}
