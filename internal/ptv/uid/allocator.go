// Package uid issues track identifiers.
//
// An Allocator is threaded explicitly through the linking pass; there is
// no package-level counter. Allocation order is the order of Next calls,
// which the linker fixes by iterating each frame sorted by x.
package uid

import "github.com/banshee-data/lagrangian.tracks/internal/ptv"

// Allocator hands out strictly increasing UIDs starting at 1.
// It is not safe for concurrent use.
type Allocator struct {
	max    ptv.UID
	issued int
}

// NewAllocator returns an allocator whose first UID is 1.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next mints a fresh UID.
func (a *Allocator) Next() ptv.UID {
	a.max++
	a.issued++
	return a.max
}

// Observe raises the running maximum to at least seen, so UIDs found in
// previously processed frames can never be reissued.
func (a *Allocator) Observe(seen ptv.UID) {
	if seen > a.max {
		a.max = seen
	}
}

// Max returns the largest UID issued or observed so far, 0 if none.
func (a *Allocator) Max() ptv.UID {
	return a.max
}

// Issued returns how many UIDs Next has minted.
func (a *Allocator) Issued() int {
	return a.issued
}
