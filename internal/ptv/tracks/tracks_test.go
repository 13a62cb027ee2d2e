package tracks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/linking"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/snapshot"
	"github.com/banshee-data/lagrangian.tracks/internal/ptv/uid"
	"github.com/banshee-data/lagrangian.tracks/internal/testutil"
)

func testConfig() Config {
	return Config{
		SamplingFrequencyHz: 1,
		SearchRadius:        0.5,
		MaxFramesSkipped:    1,
		FrameOffset:         DefaultFrameOffset,
		Workers:             4,
	}
}

func linked(t *testing.T, radius float64, frames ptv.Frames) *snapshot.Store {
	t.Helper()
	store := snapshot.NewStore(frames)
	l, err := linking.NewLinker(linking.Config{
		SamplingFrequencyHz: 1,
		SearchRadius:        radius,
		CoerceZeroVelocity:  true,
	}, uid.NewAllocator())
	require.NoError(t, err)
	l.Run(store)
	return store
}

func some(vs ...ptv.Vec2) []ptv.Optional[ptv.Vec2] {
	out := make([]ptv.Optional[ptv.Vec2], len(vs))
	for i, v := range vs {
		out[i] = ptv.Some(v)
	}
	return out
}

func TestDifferentiate(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Differentiate(nil, nil))
	lone := Differentiate([]float64{0}, some(ptv.Vec2{X: 3}))
	require.Len(t, lone, 1)
	assert.False(t, lone[0].Valid())

	times := []float64{0, 0.5, 1.0, 1.5}
	got := Differentiate(times, some(ptv.Vec2{X: 0}, ptv.Vec2{X: 1}, ptv.Vec2{X: 4}, ptv.Vec2{X: 5, Y: 2}))
	require.Len(t, got, 4)
	want := []ptv.Vec2{{X: 2}, {X: 4}, {X: 4, Y: 2}, {X: 2, Y: 4}}
	for k, w := range want {
		d, ok := got[k].Get()
		require.True(t, ok, "sample %d", k)
		assert.InDelta(t, w.X, d.X, 1e-12, "sample %d", k)
		assert.InDelta(t, w.Y, d.Y, 1e-12, "sample %d", k)
	}
}

func TestDifferentiate_UndefinedSamples(t *testing.T) {
	t.Parallel()

	times := []float64{0, 1, 2, 3, 4}
	samples := some(ptv.Vec2{X: 1}, ptv.Vec2{X: 1}, ptv.Vec2{X: 1}, ptv.Vec2{X: 1}, ptv.Vec2{})
	samples[4] = ptv.None[ptv.Vec2]()

	got := Differentiate(times, samples)
	require.Len(t, got, 5)
	for k := 0; k < 3; k++ {
		d, ok := got[k].Get()
		require.True(t, ok, "sample %d", k)
		assert.Equal(t, ptv.Vec2{}, d, "sample %d", k)
	}
	assert.False(t, got[3].Valid(), "central stencil reads the undefined sample")
	assert.False(t, got[4].Valid(), "undefined sample")

	all := Differentiate(times[:3], make([]ptv.Optional[ptv.Vec2], 3))
	for k, d := range all {
		assert.False(t, d.Valid(), "sample %d", k)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, testConfig().Validate())

	bad := testConfig()
	bad.SamplingFrequencyHz = 0
	assert.Error(t, bad.Validate())

	bad = testConfig()
	bad.SearchRadius = 0
	assert.Error(t, bad.Validate())

	bad = testConfig()
	bad.MaxFramesSkipped = -1
	assert.Error(t, bad.Validate())

	_, err := NewAssembler(bad)
	assert.Error(t, err)
	_, err = NewRepairer(bad)
	assert.Error(t, err)
}

func TestAssembler_FixedPoint(t *testing.T) {
	t.Parallel()
	const n = 7
	store := linked(t, 1, testutil.Frames(testutil.Stationary(0, n, ptv.Vec2{X: 0.3, Y: 0.7})))

	a, err := NewAssembler(testConfig())
	require.NoError(t, err)
	asm := a.Assemble(store)
	require.Equal(t, []ptv.UID{1}, asm.UIDs)
	assert.Zero(t, asm.Degenerate)

	tracks := a.Tracks(store, asm.UIDs)
	require.Len(t, tracks, 1)
	tr := tracks[0]
	require.Equal(t, n, tr.Len())
	for i, r := range tr.Rows {
		assert.Equal(t, ptv.UID(1), r.UID)
		assert.Equal(t, i, r.Lifetime)
		assert.Equal(t, i+DefaultFrameOffset, r.Frame)
		assert.False(t, r.Velocity.Valid())
		assert.False(t, r.Acceleration.Valid())
	}
}

func TestAssembler_DropsDegenerateTracks(t *testing.T) {
	t.Parallel()
	frames := testutil.Frames(
		testutil.Linear(0, 4, ptv.Vec2{}, ptv.Vec2{X: 0.1}),
		testutil.Stationary(2, 1, ptv.Vec2{X: 50}),
	)
	store := linked(t, 1, frames)

	a, err := NewAssembler(testConfig())
	require.NoError(t, err)
	asm := a.Assemble(store)
	assert.Equal(t, []ptv.UID{1}, asm.UIDs)
	assert.Equal(t, 1, asm.Degenerate)
}

func TestAssembler_ConstantAcceleration(t *testing.T) {
	t.Parallel()
	// x = t², fs = 1: displacements 1,3,5,7 so velocity rises by 2 m/s².
	frames := ptv.Frames{}
	for f := 0; f < 5; f++ {
		frames[f] = []ptv.Detection{{Position: ptv.Vec2{X: float64(f * f)}}}
	}
	store := linked(t, 3, frames)

	a, err := NewAssembler(testConfig())
	require.NoError(t, err)
	asm := a.Assemble(store)
	require.Equal(t, []ptv.UID{1}, asm.UIDs)

	rows := a.Tracks(store, asm.UIDs)[0].Rows
	require.Len(t, rows, 5)
	for k := 0; k < 4; k++ {
		v, ok := rows[k].Velocity.Get()
		require.True(t, ok)
		assert.InDelta(t, float64(2*k+1), v.X, 1e-12)
	}
	for k := 0; k < 3; k++ {
		acc, ok := rows[k].Acceleration.Get()
		require.True(t, ok, "row %d", k)
		assert.InDelta(t, 2.0, acc.X, 1e-12, "row %d", k)
	}
	// The last row has no successor, so neither it nor the central
	// difference reaching it has an acceleration.
	assert.False(t, rows[3].Acceleration.Valid())
	assert.False(t, rows[4].Acceleration.Valid())
}

func TestAssembler_ConstantVelocityHasNoEndpointDeceleration(t *testing.T) {
	t.Parallel()
	store := linked(t, 0.5, testutil.Frames(testutil.Linear(0, 5, ptv.Vec2{}, ptv.Vec2{X: 0.1})))

	a, err := NewAssembler(testConfig())
	require.NoError(t, err)
	asm := a.Assemble(store)
	require.Equal(t, []ptv.UID{1}, asm.UIDs)

	rows := a.Tracks(store, asm.UIDs)[0].Rows
	require.Len(t, rows, 5)
	for k := 0; k < 3; k++ {
		acc, ok := rows[k].Acceleration.Get()
		require.True(t, ok, "row %d", k)
		assert.InDelta(t, 0, acc.X, 1e-12, "row %d", k)
		assert.InDelta(t, 0, acc.Y, 1e-12, "row %d", k)
	}
	for k := 3; k < 5; k++ {
		assert.False(t, rows[k].Acceleration.Valid(), "row %d", k)
	}
}

func TestAssembler_ConcurrentMatchesSerial(t *testing.T) {
	t.Parallel()
	var paths []testutil.Path
	for i := 0; i < 40; i++ {
		paths = append(paths, testutil.Linear(i%5, 12, ptv.Vec2{X: float64(i) * 10}, ptv.Vec2{X: 0.05 * float64(i%3), Y: 0.1}))
	}

	serialCfg := testConfig()
	serialCfg.Workers = 1
	serialStore := linked(t, 1, testutil.Frames(paths...))
	serial, err := NewAssembler(serialCfg)
	require.NoError(t, err)
	want := serial.Tracks(serialStore, serial.Assemble(serialStore).UIDs)

	parallelStore := linked(t, 1, testutil.Frames(paths...))
	parallel, err := NewAssembler(testConfig())
	require.NoError(t, err)
	got := parallel.Tracks(parallelStore, parallel.Assemble(parallelStore).UIDs)

	assert.Equal(t, want, got)
	assert.Len(t, got, 40)
}
