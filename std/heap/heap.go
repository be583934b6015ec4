// Package heap is the allocation boundary of the handle subsystem.
//
// Managed blocks are requested from a Heap and handed back exactly once when
// the last handle departs. Implementations may instrument, limit, or recycle
// blocks; Sys is the ambient heap used when no other is supplied.
package heap

import (
	"errors"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// ErrExhausted is returned by Grab when the heap cannot supply a region.
var ErrExhausted = errors.New("backing heap exhausted")

// Layout describes one backing region: its size in bytes and the alignment
// the region's base address must satisfy.
type Layout struct {
	Size  uintptr
	Align uintptr
}

// Maker allocates one typed block for the layout it was paired with.
// Heaps call it for naturally aligned layouts so the runtime retains full
// type information for the block; over-aligned layouts are served from raw
// regions instead and mk is ignored.
type Maker func() unsafe.Pointer

// Heap supplies and reclaims backing regions for managed blocks.
//
// Grab is invoked exactly once per constructed object and Reclaim exactly
// once when its strong and weak populations have both drained, with the
// pointer and layout Grab returned. Implementations must be safe for
// concurrent use.
type Heap interface {
	Grab(l Layout, mk Maker) (unsafe.Pointer, error)
	Reclaim(p unsafe.Pointer, l Layout)
}

// MaxNaturalAlign is the strictest alignment the runtime provides on its
// own; layouts beyond it are placed manually inside padded raw regions.
const MaxNaturalAlign = unsafe.Alignof(struct{ x complex128 }{})

// Sys is the ambient heap. Grabbed regions are ordinary runtime allocations;
// Reclaim drops them back to the collector.
var Sys Heap = sysHeap{}

type sysHeap struct{}

func (sysHeap) Grab(l Layout, mk Maker) (unsafe.Pointer, error) {
	if l.Align > MaxNaturalAlign {
		return grabRaw(l), nil
	}
	return mk(), nil
}

func (sysHeap) Reclaim(unsafe.Pointer, Layout) {}

// grabRaw carves an aligned base out of an over-allocated byte region. The
// region stays live as long as anything points into it, so no registry of
// backing slices is needed.
func grabRaw(l Layout) unsafe.Pointer {
	buf := make([]byte, l.Size+l.Align)
	base := unsafe.Pointer(unsafe.SliceData(buf))
	return unsafe.Add(base, AlignUp(uintptr(base), l.Align)-uintptr(base))
}

// AlignUp rounds v up to the next multiple of align, which must be a power
// of two.
func AlignUp[T constraints.Unsigned](v, align T) T {
	return (v + align - 1) &^ (align - 1)
}
