package heap

import (
	"sync"
	"unsafe"

	"github.com/refptr/refptr/std/types/sync_pool"
)

// Pool recycles the blocks of a single managed type: a reclaimed block goes
// back to the pool instead of the collector and serves the next grab. One
// Pool serves exactly one layout; mixing layouts is a caller bug.
//
// Recycled blocks come back dirty. The handle factory re-zeroes the region
// before constructing into it, so Pool itself does not reset.
type Pool struct {
	mu     sync.Mutex
	primed bool
	layout Layout
	pool   sync_pool.SyncPool[unsafe.Pointer]
}

// NewPool returns an empty pool heap.
func NewPool() *Pool {
	return &Pool{}
}

func (p *Pool) Grab(l Layout, mk Maker) (unsafe.Pointer, error) {
	p.prime(l, mk)
	return p.pool.Get(), nil
}

func (p *Pool) Reclaim(ptr unsafe.Pointer, l Layout) {
	p.pool.Put(ptr)
}

// prime captures the allocation path on first use and pins the layout.
func (p *Pool) prime(l Layout, mk Maker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.primed {
		if l != p.layout {
			panic("heap: pool grabbed with a second layout")
		}
		return
	}
	alloc := mk
	if l.Align > MaxNaturalAlign {
		alloc = func() unsafe.Pointer { return grabRaw(l) }
	}
	p.layout = l
	p.pool = sync_pool.New(alloc, nil)
	p.primed = true
}
