package handle

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/refptr/refptr/std/heap"
)

// extBlock is the combined region of the external strategy: control header
// and object in one allocation. The header sits at the block base, so the
// control pointer doubles as the region base for naturally aligned layouts.
type extBlock[T any] struct {
	hdr control
	obj T
}

func extObjOff[T any]() uintptr {
	return reflect.TypeFor[extBlock[T]]().Field(1).Offset
}

var embVts sync.Map // reflect.Type -> *vtable

func embVtable[T any]() *vtable {
	t := reflect.TypeFor[T]()
	if v, ok := embVts.Load(t); ok {
		return v.(*vtable)
	}
	vt := &vtable{
		typ:    t,
		layout: heap.Layout{Size: t.Size(), Align: uintptr(t.Align())},
	}
	if reflect.TypeFor[*T]().Implements(disposableType) {
		vt.dispose = func(p unsafe.Pointer) { any((*T)(p)).(Disposable).Dispose() }
	}
	v, _ := embVts.LoadOrStore(t, vt)
	return v.(*vtable)
}

// New constructs an embedded-capability object on the ambient heap and
// returns its first strong handle. init may be nil; it runs at the reserved
// address and may mint transient handles to the object with Retain.
func New[T any, P Embedded[T]](init func(P)) Strong[T] {
	var wrapped func(P) error
	if init != nil {
		wrapped = func(p P) error { init(p); return nil }
	}
	s, err := NewIn[T, P](heap.Sys, wrapped)
	if err != nil {
		panic(err) // heap.Sys does not fail
	}
	return s
}

// NewIn constructs an embedded-capability object on an explicit heap.
//
// The control block is armed with one pending strong unit before init runs,
// so self-handles created and dropped during initialization oscillate above
// that baseline and can never destroy the object mid-construction. The
// returned handle adopts the pending unit. If init returns an error the
// region goes straight back to the heap — no dispose, nothing leaked, no
// partial object escapes.
func NewIn[T any, P Embedded[T]](hp heap.Heap, init func(P) error) (Strong[T], error) {
	vt := embVtable[T]()
	base, err := hp.Grab(vt.layout, func() unsafe.Pointer { return unsafe.Pointer(new(T)) })
	if err != nil {
		return Strong[T]{}, err
	}
	reflect.NewAt(vt.typ, base).Elem().SetZero()

	obj := P((*T)(base))
	c := obj.refControl()
	c.self = base
	c.base = base
	c.hp = hp
	c.vt = vt
	c.strong.Store(1)
	c.weak.Store(1)

	if init != nil {
		if err := init(obj); err != nil {
			hp.Reclaim(base, vt.layout)
			return Strong[T]{}, err
		}
	}
	return Strong[T]{c: c}, nil
}

// New constructs a declared external object on the ambient heap.
func (d Decl[T]) New(init func(*T)) Strong[T] {
	var wrapped func(*T) error
	if init != nil {
		wrapped = func(p *T) error { init(p); return nil }
	}
	s, err := d.NewIn(heap.Sys, wrapped)
	if err != nil {
		panic(err) // heap.Sys does not fail
	}
	return s
}

// NewIn constructs a declared external object on an explicit heap, with the
// same construction contract as the embedded NewIn.
func (d Decl[T]) NewIn(hp heap.Heap, init func(*T) error) (Strong[T], error) {
	if d.vt == nil {
		panic("handle: use of zero Decl; call Declare")
	}
	l := d.vt.layout
	base, err := hp.Grab(l, func() unsafe.Pointer { return unsafe.Pointer(new(extBlock[T])) })
	if err != nil {
		return Strong[T]{}, err
	}

	// Over-aligned layouts come back as raw regions with slack; shift the
	// block so the object field itself lands on the boundary. The region is
	// untyped, so the header's vtable and heap pointers must be pinned for
	// as long as the block lives.
	blkp := base
	if l.Align > heap.MaxNaturalAlign {
		off := extObjOff[T]()
		blkp = unsafe.Add(base, (l.Align-off%l.Align)%l.Align)
		pins.Store(base, pin{vt: d.vt, hp: hp})
	}
	reflect.NewAt(reflect.TypeFor[extBlock[T]](), blkp).Elem().SetZero()

	blk := (*extBlock[T])(blkp)
	c := &blk.hdr
	c.self = unsafe.Pointer(&blk.obj)
	c.base = base
	c.hp = hp
	c.vt = d.vt
	c.strong.Store(1)
	c.weak.Store(1)

	if init != nil {
		if err := init(&blk.obj); err != nil {
			if l.Align > heap.MaxNaturalAlign {
				pins.Delete(base)
			}
			hp.Reclaim(base, l)
			return Strong[T]{}, err
		}
	}
	return Strong[T]{c: c}, nil
}

// Retain mints a strong handle from the raw address of a live managed
// object, incrementing its count. This is how an initializer hands out
// references to the object under construction, and how a known-live address
// is rehydrated into a handle. p must be the address construction reserved;
// anything else is a contract breach.
func Retain[T any](p *T) Strong[T] {
	if p == nil {
		return Strong[T]{}
	}
	c := controlOf(p)
	c.incStrong()
	return Strong[T]{c: c}
}

func controlOf[T any](p *T) *control {
	if h, ok := any(p).(refControlled); ok {
		return h.refControl()
	}
	return (*control)(unsafe.Add(unsafe.Pointer(p), -int(extObjOff[T]())))
}
