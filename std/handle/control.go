package handle

import (
	"reflect"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/refptr/refptr/std/heap"
)

// control is the per-object ledger behind every handle. Exactly one exists
// per managed object: inside the RefCounted mixin for embedded types, at the
// head of the combined block for external ones.
//
// weak carries one hidden unit owned by the strong population as a whole; it
// is dropped after the object is destroyed. Release of the backing region
// therefore happens exactly once, at the final weak decrement, with no
// additional state.
type control struct {
	strong atomic.Int64
	weak   atomic.Int64
	self   unsafe.Pointer // concrete object
	base   unsafe.Pointer // region base handed back to hp
	vt     *vtable
	hp     heap.Heap
}

// vtable is the per-type half of the control block, shared by every object
// of one managed type and kept reachable for the life of the process.
type vtable struct {
	typ     reflect.Type
	layout  heap.Layout
	dispose func(unsafe.Pointer)
}

func (c *control) incStrong() {
	c.strong.Add(1)
}

// decStrong destroys the object when the last strong unit departs, then
// drops the strong population's hidden weak unit.
func (c *control) decStrong() {
	if c.strong.Add(-1) == 0 {
		if c.vt.dispose != nil {
			c.vt.dispose(c.self)
		}
		c.decWeak()
	}
}

func (c *control) incWeak() {
	c.weak.Add(1)
}

func (c *control) decWeak() {
	if c.weak.Add(-1) == 0 {
		hp, base, vt := c.hp, c.base, c.vt
		// Unpin before Reclaim: a pool heap may recycle the region into a
		// new object, which re-pins the same base, before this returns.
		// The locals keep vt and hp reachable through the Reclaim call.
		if vt.layout.Align > heap.MaxNaturalAlign {
			pins.Delete(base)
		}
		hp.Reclaim(base, vt.layout)
	}
}

// pins holds the vtable and heap of every live raw-region block. Over-aligned
// blocks live in byte regions the collector never scans, so the header's
// pointer fields do not count as references; without this registry, dropping
// the Decl or the injected heap while handles are still live would let the
// collector free them under a live control block.
var pins sync.Map // region base -> pin

type pin struct {
	vt *vtable
	hp heap.Heap
}

// tryIncStrong takes a strong unit only if the count is still positive, as
// one atomic step. A plain load followed by an add would race the final
// decrement and resurrect a destroyed object.
func (c *control) tryIncStrong() bool {
	for {
		s := c.strong.Load()
		if s == 0 {
			return false
		}
		if c.strong.CompareAndSwap(s, s+1) {
			return true
		}
	}
}
