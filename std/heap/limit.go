package heap

import (
	"sync/atomic"
	"unsafe"
)

// Limit is a heap with a fixed grab budget. Once the budget is spent every
// further Grab fails with ErrExhausted. It exists to drive the construction
// failure path deterministically.
type Limit struct {
	inner  Heap
	budget atomic.Int64
}

// NewLimit returns a heap that serves at most n grabs from inner (Sys when
// inner is nil).
func NewLimit(n int64, inner Heap) *Limit {
	l := &Limit{inner: inner}
	l.budget.Store(n)
	return l
}

func (h *Limit) Grab(l Layout, mk Maker) (unsafe.Pointer, error) {
	if h.budget.Add(-1) < 0 {
		return nil, ErrExhausted
	}
	if h.inner == nil {
		return Sys.Grab(l, mk)
	}
	return h.inner.Grab(l, mk)
}

func (h *Limit) Reclaim(p unsafe.Pointer, l Layout) {
	if h.inner == nil {
		Sys.Reclaim(p, l)
		return
	}
	h.inner.Reclaim(p, l)
}
