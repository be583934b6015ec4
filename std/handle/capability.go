package handle

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/refptr/refptr/std/handle/layout"
	"github.com/refptr/refptr/std/heap"
)

// RefCounted is the embedded capability mixin. Embedding it by value grants
// the surrounding type the embedded allocation strategy: the control block
// lives inside the object and construction adds no extra allocation.
//
// Embedding RefCounted forfeits value copies of the surrounding type — a
// copied object would carry live counters — and go vet enforces that through
// the noCopy field. The only duplication path left is handle sharing.
type RefCounted struct {
	noCopy noCopy
	ctl    control
}

func (rc *RefCounted) refControl() *control { return &rc.ctl }

// refControlled is the sealed accessor satisfied only by types embedding
// RefCounted.
type refControlled interface {
	refControl() *control
}

// Embedded is the capability gate for the embedded strategy: *T must reach
// RefCounted's control accessor through value embedding. Types without the
// mixin fail this constraint at compile time.
type Embedded[T any] interface {
	*T
	refControlled
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Disposable is implemented by managed types that need a destruction-time
// side effect. Dispose runs exactly once, when the strong count reaches
// zero, before the backing region is released.
type Disposable interface {
	Dispose()
}

var disposableType = reflect.TypeFor[Disposable]()

// Decl is the external capability opt-in: an association between an
// ordinary, unmodified type and the external allocation strategy. Only a
// declaration value provides a construction path for such a type, so an
// undeclared type without the mixin has no way into the subsystem.
//
// The declared type keeps whatever copy semantics it already had.
type Decl[T any] struct {
	vt *vtable
}

// DeclOption configures an external declaration.
type DeclOption[T any] func(*declConfig[T])

type declConfig[T any] struct {
	align   uintptr
	dispose func(*T)
}

// WithAlign requires the object to land on an align-byte boundary, which may
// exceed what the runtime provides naturally. Over-aligned placement uses
// raw regions, so it is limited to pointer-free types; Declare panics
// otherwise.
func WithAlign[T any](align uintptr) DeclOption[T] {
	return func(c *declConfig[T]) { c.align = align }
}

// WithDispose captures a destruction hook for the declared type. Without it,
// Declare picks up Dispose when *T implements Disposable.
func WithDispose[T any](fn func(*T)) DeclOption[T] {
	return func(c *declConfig[T]) { c.dispose = fn }
}

// Declare opts T into the external strategy. Misdeclarations — a non
// power-of-two alignment, or over-alignment of a type the collector needs to
// trace — are programming errors and panic here, at declaration time.
func Declare[T any](opts ...DeclOption[T]) Decl[T] {
	var cfg declConfig[T]
	for _, opt := range opts {
		opt(&cfg)
	}

	bt := reflect.TypeFor[extBlock[T]]()
	l := heap.Layout{Size: bt.Size(), Align: uintptr(bt.Align())}
	if cfg.align != 0 {
		if cfg.align&(cfg.align-1) != 0 {
			panic(fmt.Sprintf("handle: alignment %d is not a power of two", cfg.align))
		}
		if cfg.align > l.Align {
			if layout.HasPointers(reflect.TypeFor[T]()) {
				panic(fmt.Sprintf("handle: %v contains pointers and cannot be over-aligned", reflect.TypeFor[T]()))
			}
			// Slack for shifting the block so the object field itself
			// lands on the boundary.
			l = heap.Layout{Size: bt.Size() + cfg.align, Align: cfg.align}
		}
	}

	dispose := cfg.dispose
	if dispose == nil && reflect.TypeFor[*T]().Implements(disposableType) {
		dispose = func(p *T) { any(p).(Disposable).Dispose() }
	}

	vt := &vtable{
		typ:    reflect.TypeFor[T](),
		layout: l,
	}
	if dispose != nil {
		vt.dispose = func(p unsafe.Pointer) { dispose((*T)(p)) }
	}
	return Decl[T]{vt: vt}
}
