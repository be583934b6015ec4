package heap

import (
	"sync/atomic"
	"unsafe"
)

// Counting wraps another heap and tallies grab/reclaim traffic. The zero
// value wraps Sys. Useful as the instrumented allocator in tests: a balanced
// ledger proves one allocation and one release per managed object.
type Counting struct {
	Inner    Heap
	grabs    atomic.Int64
	reclaims atomic.Int64
}

func (c *Counting) inner() Heap {
	if c.Inner == nil {
		return Sys
	}
	return c.Inner
}

func (c *Counting) Grab(l Layout, mk Maker) (unsafe.Pointer, error) {
	p, err := c.inner().Grab(l, mk)
	if err != nil {
		return nil, err
	}
	c.grabs.Add(1)
	return p, nil
}

func (c *Counting) Reclaim(p unsafe.Pointer, l Layout) {
	c.reclaims.Add(1)
	c.inner().Reclaim(p, l)
}

// Grabs returns the number of regions handed out so far.
func (c *Counting) Grabs() int64 { return c.grabs.Load() }

// Reclaims returns the number of regions handed back so far.
func (c *Counting) Reclaims() int64 { return c.reclaims.Load() }

// Live returns the number of regions currently outstanding.
func (c *Counting) Live() int64 { return c.grabs.Load() - c.reclaims.Load() }
