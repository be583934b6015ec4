package handle

import (
	"reflect"
	"unsafe"

	"github.com/refptr/refptr/std/handle/layout"
)

// Strong is a shared-ownership handle: one word, comparable, zero value
// empty. Every live Strong is exactly one unit of its object's strong count.
//
// Plain assignment copies the word without touching the count — use Clone to
// share ownership and Release (or Move) to give it up. Because a handle is a
// single word, swapping two container slots is always safe, even when both
// slots alias the same handle.
//
// Two handles compare equal exactly when they denote the same managed
// object, or are both empty; the pointee's value never matters. The empty
// handle equals the zero value Strong[T]{}.
type Strong[T any] struct {
	c *control
}

// Empty reports whether the handle denotes no object.
func (s Strong[T]) Empty() bool { return s.c == nil }

// Get returns the managed object's address, adjusted to T's subobject when
// the handle was cast from the concrete type. It returns nil on an empty
// handle; dereferencing that nil is the caller's contract breach, not a
// recoverable condition.
func (s Strong[T]) Get() *T {
	if s.c == nil {
		return nil
	}
	return (*T)(objAddr[T](s.c))
}

// objAddr locates T's subobject inside the concrete object. The offset comes
// from the embedding table, so a handle statically cast to a type the object
// does not actually contain faults here.
func objAddr[T any](c *control) unsafe.Pointer {
	t := reflect.TypeFor[T]()
	if c.vt.typ == t {
		return c.self
	}
	off, ok := layout.Offset(c.vt.typ, t)
	if !ok {
		panic("handle: managed object does not contain " + t.String())
	}
	return unsafe.Add(c.self, off)
}

// Clone returns a handle sharing ownership with s, incrementing the strong
// count. Cloning an empty handle yields an empty handle.
func (s Strong[T]) Clone() Strong[T] {
	if s.c != nil {
		s.c.incStrong()
	}
	return s
}

// Move transfers ownership out of s, leaving it empty. The total
// outstanding count is unchanged.
func (s *Strong[T]) Move() Strong[T] {
	out := *s
	s.c = nil
	return out
}

// Release drops this handle's strong unit and empties it. Dropping the last
// unit destroys the object at once; the backing region is released together
// with it unless weak handles remain, in which case the region outlives the
// object until the last observer departs. Releasing an empty handle is a
// no-op.
func (s *Strong[T]) Release() {
	if s.c == nil {
		return
	}
	c := s.c
	s.c = nil
	c.decStrong()
}

// RefCount reads the current strong count, for diagnostics and tests.
// Empty handles report zero.
func (s Strong[T]) RefCount() int64 {
	if s.c == nil {
		return 0
	}
	return s.c.strong.Load()
}

// Downgrade returns a weak observer of the same object.
func (s Strong[T]) Downgrade() Weak[T] {
	if s.c != nil {
		s.c.incWeak()
	}
	return Weak[T]{c: s.c}
}

// Same reports whether two handles of possibly different static types denote
// the same managed object.
func Same[T, U any](a Strong[T], b Strong[U]) bool {
	return a.c == b.c
}
