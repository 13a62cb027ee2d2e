package snapshot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
)

func det(x, y float64, aux ...float64) ptv.Detection {
	return ptv.Detection{Position: ptv.Vec2{X: x, Y: y}, Aux: aux}
}

func TestNewStore(t *testing.T) {
	t.Parallel()

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		s := NewStore(nil)
		assert.Equal(t, 0, s.Len())
		assert.Empty(t, s.UIDs())
	})

	t.Run("fills missing frames", func(t *testing.T) {
		t.Parallel()
		s := NewStore(ptv.Frames{
			3: {det(1, 1)},
			6: {det(2, 2), det(3, 3)},
		})
		require.Equal(t, 4, s.Len())
		assert.Equal(t, 3, s.FirstFrame())
		assert.Equal(t, 3, s.Detections())

		snap, ok := s.Frame(4)
		require.True(t, ok)
		assert.True(t, snap.Empty())

		snap, ok = s.Frame(6)
		require.True(t, ok)
		assert.Equal(t, 2, snap.Len())
		assert.Equal(t, 6, snap.Obs[1].Frame)

		_, ok = s.Frame(7)
		assert.False(t, ok)
		_, ok = s.Frame(2)
		assert.False(t, ok)
	})

	t.Run("copies aux columns", func(t *testing.T) {
		t.Parallel()
		aux := []float64{0.5, 12}
		s := NewStore(ptv.Frames{0: {det(0, 0, aux...)}})
		aux[0] = 99
		assert.Equal(t, []float64{0.5, 12}, s.At(0).Obs[0].Aux)
	})
}

func TestSnapshot_SortByX(t *testing.T) {
	t.Parallel()
	s := NewStore(ptv.Frames{0: {det(3, 0), det(1, 0), det(2, 0), det(1, 5)}})
	snap := s.At(0)
	s.Assign(snap, 0, ptv.Identity{UID: 7})
	snap.SortByX()

	xs := make([]float64, 0, snap.Len())
	for _, o := range snap.Obs {
		xs = append(xs, o.Position.X)
	}
	assert.Equal(t, []float64{1, 1, 2, 3}, xs)
	assert.Equal(t, 5.0, snap.Obs[1].Position.Y, "stable order for equal x")

	obs, ok := snap.Find(7)
	require.True(t, ok)
	assert.Equal(t, 3.0, obs.Position.X, "index follows the sort")
}

func TestStore_AssignAndCollect(t *testing.T) {
	t.Parallel()
	s := NewStore(ptv.Frames{
		0: {det(0, 0)},
		1: {det(1, 0), det(9, 9)},
		2: {det(2, 0)},
	})
	s.Assign(s.At(0), 0, ptv.Identity{UID: 1, Lifetime: 0})
	s.Assign(s.At(1), 0, ptv.Identity{UID: 1, Lifetime: 1})
	s.Assign(s.At(1), 1, ptv.Identity{UID: 2, Lifetime: 0})
	s.Assign(s.At(2), 0, ptv.Identity{UID: 1, Lifetime: 2})

	span, ok := s.Span(1)
	require.True(t, ok)
	assert.Equal(t, Span{First: 0, Last: 2}, span)
	assert.Equal(t, []ptv.UID{1, 2}, s.UIDs())

	obs := s.Collect(1)
	require.Len(t, obs, 3)
	for i, o := range obs {
		assert.Equal(t, i, o.Frame)
	}
	assert.Nil(t, s.Collect(42))

	maxUID, ok := s.At(1).MaxUID()
	require.True(t, ok)
	assert.Equal(t, ptv.UID(2), maxUID)
	assert.True(t, s.At(1).Resolved())
}

func TestStore_Relabel(t *testing.T) {
	t.Parallel()

	build := func() *Store {
		s := NewStore(ptv.Frames{
			0: {det(0, 0)},
			1: {det(1, 0)},
			2: {det(2, 0)},
			3: {det(3, 0)},
		})
		s.Assign(s.At(0), 0, ptv.Identity{UID: 1, Lifetime: 0})
		s.Assign(s.At(1), 0, ptv.Identity{UID: 1, Lifetime: 1})
		s.Assign(s.At(2), 0, ptv.Identity{UID: 2, Lifetime: 0})
		s.Assign(s.At(3), 0, ptv.Identity{UID: 2, Lifetime: 1})
		return s
	}

	t.Run("moves rows and merges spans", func(t *testing.T) {
		t.Parallel()
		s := build()
		n, err := s.Relabel(2, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, ok := s.Span(2)
		assert.False(t, ok)
		span, _ := s.Span(1)
		assert.Equal(t, Span{First: 0, Last: 3}, span)

		obs := s.Collect(1)
		require.Len(t, obs, 4)
		lifetimes := []int{}
		for _, o := range obs {
			id, _ := o.Identity.Get()
			lifetimes = append(lifetimes, id.Lifetime)
		}
		assert.Equal(t, []int{0, 1, 0, 1}, lifetimes, "lifetimes are not rewritten")
	})

	t.Run("rejects overlap", func(t *testing.T) {
		t.Parallel()
		s := NewStore(ptv.Frames{0: {det(0, 0), det(5, 0)}})
		s.Assign(s.At(0), 0, ptv.Identity{UID: 1})
		s.Assign(s.At(0), 1, ptv.Identity{UID: 2})
		_, err := s.Relabel(2, 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOverlap))
		_, ok := s.Span(2)
		assert.True(t, ok, "failed relabel leaves the store untouched")
	})

	t.Run("unknown uid", func(t *testing.T) {
		t.Parallel()
		s := build()
		_, err := s.Relabel(9, 1)
		assert.Error(t, err)
	})
}

func TestStore_LastNonEmpty(t *testing.T) {
	t.Parallel()
	s := NewStore(ptv.Frames{
		0: {det(0, 0)},
		5: {det(1, 1)},
	})

	snap, err := s.LastNonEmpty(4, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Frame)

	_, err = s.LastNonEmpty(4, 2)
	assert.ErrorIs(t, err, ErrNoAnchor)

	snap, err = s.LastNonEmpty(4, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Frame)

	_, err = s.LastNonEmpty(0, 0)
	assert.ErrorIs(t, err, ErrNoAnchor)
}
