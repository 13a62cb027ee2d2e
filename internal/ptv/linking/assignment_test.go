package linking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
)

func allowed(rows, cols int) [][]bool {
	f := make([][]bool, rows)
	for i := range f {
		f[i] = make([]bool, cols)
	}
	return f
}

func TestMinCostAssignment(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, minCostAssignment(nil, nil))
		assert.Equal(t, []int{-1, -1}, minCostAssignment([][]float64{{}, {}}, [][]bool{{}, {}}))
	})

	t.Run("square", func(t *testing.T) {
		t.Parallel()
		cost := [][]float64{
			{4, 1, 3},
			{2, 0, 5},
			{3, 2, 2},
		}
		assert.Equal(t, []int{1, 0, 2}, minCostAssignment(cost, allowed(3, 3)))
	})

	t.Run("more rows than columns", func(t *testing.T) {
		t.Parallel()
		cost := [][]float64{
			{5},
			{1},
			{3},
		}
		assert.Equal(t, []int{-1, 0, -1}, minCostAssignment(cost, allowed(3, 1)))
	})

	t.Run("forbidden entries stay unassigned", func(t *testing.T) {
		t.Parallel()
		cost := [][]float64{
			{0.1, 0.2},
			{0.3, 9},
		}
		forbidden := allowed(2, 2)
		forbidden[1][1] = true
		forbidden[0][1] = true
		assert.Equal(t, []int{0, -1}, minCostAssignment(cost, forbidden))
	})

	t.Run("prefers more allowed pairs", func(t *testing.T) {
		t.Parallel()
		cost := [][]float64{
			{0.1, 0.9},
			{0.45, 0.55},
		}
		assert.Equal(t, []int{0, 1}, minCostAssignment(cost, allowed(2, 2)))
	})
}

func TestSiteIndex_Nearest(t *testing.T) {
	t.Parallel()

	empty := NewSiteIndex(nil)
	_, _, ok := empty.Nearest(ptv.Vec2{})
	assert.False(t, ok)

	pts := []ptv.Vec2{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: -1, Y: 1}, {X: 10, Y: 10}, {X: 2, Y: -2}, {X: 5, Y: 5}}
	idx := NewSiteIndex(pts)
	assert.Equal(t, len(pts), idx.Len())
	assert.Equal(t, ptv.Vec2{X: 3, Y: 4}, pts[1], "input is not reordered")

	for want, p := range pts {
		got, dist, ok := idx.Nearest(p)
		assert.True(t, ok)
		assert.Equal(t, want, got)
		assert.Zero(t, dist)
	}

	got, dist, ok := idx.Nearest(ptv.Vec2{X: 3, Y: 0})
	assert.True(t, ok)
	assert.Equal(t, 4, got)
	assert.InDelta(t, 2.236068, dist, 1e-6)
}
