package linking

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/banshee-data/lagrangian.tracks/internal/ptv"
)

// site is a k-d tree point that remembers which observation it came from.
type site struct {
	X, Y  float64
	Index int
}

// Compare implements kdtree.Comparable.
func (s site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(site)
	switch d {
	case 0:
		return s.X - q.X
	case 1:
		return s.Y - q.Y
	default:
		panic("linking: illegal dimension")
	}
}

// Dims implements kdtree.Comparable.
func (s site) Dims() int { return 2 }

// Distance implements kdtree.Comparable. Like kdtree.Point it returns the
// squared Euclidean distance.
func (s site) Distance(c kdtree.Comparable) float64 {
	q := c.(site)
	dx, dy := s.X-q.X, s.Y-q.Y
	return dx*dx + dy*dy
}

type sites []site

func (p sites) Index(i int) kdtree.Comparable         { return p[i] }
func (p sites) Len() int                              { return len(p) }
func (p sites) Pivot(d kdtree.Dim) int                { return sitePlane{Dim: d, sites: p}.Pivot() }
func (p sites) Slice(start, end int) kdtree.Interface { return p[start:end] }

type sitePlane struct {
	kdtree.Dim
	sites
}

func (p sitePlane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.sites[i].X < p.sites[j].X
	}
	return p.sites[i].Y < p.sites[j].Y
}
func (p sitePlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p sitePlane) Slice(start, end int) kdtree.SortSlicer {
	p.sites = p.sites[start:end]
	return p
}
func (p sitePlane) Swap(i, j int) { p.sites[i], p.sites[j] = p.sites[j], p.sites[i] }

// SiteIndex answers nearest-point queries over a fixed set of positions.
// It is read-only after construction and safe for concurrent queries.
type SiteIndex struct {
	tree *kdtree.Tree
	n    int
}

// NewSiteIndex builds an index over positions; query results refer to
// positions by their slice index.
func NewSiteIndex(positions []ptv.Vec2) *SiteIndex {
	pts := make(sites, len(positions))
	for i, p := range positions {
		pts[i] = site{X: p.X, Y: p.Y, Index: i}
	}
	idx := &SiteIndex{n: len(pts)}
	if len(pts) > 0 {
		// kdtree.New partitions pts in place, hence the private copy.
		idx.tree = kdtree.New(pts, false)
	}
	return idx
}

// Len returns the number of indexed positions.
func (s *SiteIndex) Len() int { return s.n }

// Nearest returns the index of the position closest to q and its
// Euclidean distance. ok is false when the index is empty.
func (s *SiteIndex) Nearest(q ptv.Vec2) (index int, dist float64, ok bool) {
	if s.tree == nil {
		return -1, math.Inf(1), false
	}
	got, d2 := s.tree.Nearest(site{X: q.X, Y: q.Y})
	if got == nil {
		return -1, math.Inf(1), false
	}
	return got.(site).Index, math.Sqrt(d2), true
}
