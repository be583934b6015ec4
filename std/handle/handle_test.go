package handle_test

import (
	"errors"
	"strings"
	"testing"
	"unsafe"

	"github.com/refptr/refptr/std/handle"
	"github.com/refptr/refptr/std/heap"
	tu "github.com/refptr/refptr/std/utils/testutils"
	"github.com/stretchr/testify/require"
)

var errInit = errors.New("init failed")

type SimpleWidget struct {
	handle.RefCounted
	Data string
}

type DerivedWidget struct {
	SimpleWidget
	Value int
}

type SelfRefWidget struct {
	handle.RefCounted
	Log *strings.Builder
}

func (w *SelfRefWidget) Dispose() {
	w.Log.WriteString("4")
}

// Two independent base paths under one object.
type MetaPart struct {
	Kind string
}

type DataPart struct {
	Payload string
}

type CompoundWidget struct {
	handle.RefCounted
	MetaPart
	DataPart
	Extra int
}

type PlainWidget struct {
	handle.RefCounted
	MetaPart
}

func TestHandleWord(t *testing.T) {
	tu.SetT(t)

	require.Equal(t, unsafe.Sizeof(uintptr(0)), unsafe.Sizeof(handle.Strong[SimpleWidget]{}))
	require.Equal(t, unsafe.Sizeof(uintptr(0)), unsafe.Sizeof(handle.Weak[SimpleWidget]{}))
}

func TestEmpty(t *testing.T) {
	tu.SetT(t)

	var empty handle.Strong[SimpleWidget]
	require.True(t, empty.Empty())
	require.Nil(t, empty.Get())
	require.Equal(t, int64(0), empty.RefCount())
}

func TestEmptyCasts(t *testing.T) {
	tu.SetT(t)

	var empty handle.Strong[DerivedWidget]
	require.True(t, handle.Cast[SimpleWidget](empty).Empty())
	require.True(t, handle.As[SimpleWidget](empty).Empty())

	// Unrelated types are a breach even when the handle is empty.
	require.Panics(t, func() {
		handle.Cast[CompoundWidget](empty)
	})

	var other handle.Strong[SimpleWidget]
	require.True(t, handle.Same(empty, other))

	ptr := handle.New[SimpleWidget](nil)
	defer ptr.Release()
	require.False(t, handle.Same(empty, ptr))
}

func TestNew(t *testing.T) {
	tu.SetT(t)

	ptr := handle.New[SimpleWidget](func(w *SimpleWidget) { w.Data = "Hello World" })
	defer ptr.Release()

	require.False(t, ptr.Empty())
	require.Equal(t, "Hello World", ptr.Get().Data)
	require.Equal(t, int64(1), ptr.RefCount())
}

func TestClone(t *testing.T) {
	tu.SetT(t)

	ptr := handle.New[SimpleWidget](func(w *SimpleWidget) { w.Data = "CopyTest" })
	require.Equal(t, int64(1), ptr.RefCount())

	cpy := ptr.Clone()
	require.Equal(t, ptr.RefCount(), cpy.RefCount())
	require.Equal(t, int64(2), cpy.RefCount())
	require.Equal(t, "CopyTest", cpy.Get().Data)

	cpy.Release()
	require.Equal(t, int64(1), ptr.RefCount())
	ptr.Release()
}

func TestMove(t *testing.T) {
	tu.SetT(t)

	ptr := handle.New[SimpleWidget](func(w *SimpleWidget) { w.Data = "MoveTest" })
	require.Equal(t, int64(1), ptr.RefCount())

	moved := ptr.Move()
	require.True(t, ptr.Empty())
	require.Equal(t, handle.Strong[SimpleWidget]{}, ptr)

	require.Equal(t, int64(1), moved.RefCount())
	require.Equal(t, "MoveTest", moved.Get().Data)
	moved.Release()
}

func TestReplace(t *testing.T) {
	tu.SetT(t)

	ptr := handle.New[SimpleWidget](func(w *SimpleWidget) { w.Data = "AssignTest" })
	ptr2 := handle.New[SimpleWidget](func(w *SimpleWidget) { w.Data = "DiscardedMessage" })

	ptr2.Release()
	ptr2 = ptr.Clone()

	require.Equal(t, ptr.RefCount(), ptr2.RefCount())
	require.Equal(t, int64(2), ptr2.RefCount())
	require.Equal(t, "AssignTest", ptr2.Get().Data)

	ptr2.Release()
	ptr.Release()
}

func TestSelfSwap(t *testing.T) {
	tu.SetT(t)

	vec := []handle.Strong[SimpleWidget]{
		handle.New[SimpleWidget](func(w *SimpleWidget) { w.Data = "SelfMove" }),
	}
	i, j := 0, len(vec)-1
	vec[i], vec[j] = vec[j], vec[i]

	require.Equal(t, int64(1), vec[0].RefCount())
	require.Equal(t, "SelfMove", vec[0].Get().Data)
	vec[0].Release()
}

func TestNoPrematureDestruction(t *testing.T) {
	tu.SetT(t)

	var sb strings.Builder
	count := 3

	ptr := handle.New[SelfRefWidget](func(w *SelfRefWidget) {
		w.Log = &sb
		sb.WriteString("1")
		for i := 0; i < count; i++ {
			sb.WriteString("2")
			self := handle.Retain(w)
			self.Release()
		}
		sb.WriteString("3")
	})
	ptr.Release()

	require.Equal(t, "1"+strings.Repeat("2", count)+"34", sb.String())
}

func TestUpcast(t *testing.T) {
	tu.SetT(t)

	drv := handle.New[DerivedWidget](func(w *DerivedWidget) {
		w.Data = "Derived"
		w.Value = 42
	})
	require.Equal(t, int64(1), drv.RefCount())

	base := handle.Cast[SimpleWidget](drv)
	require.Equal(t, drv.RefCount(), base.RefCount())
	require.Equal(t, int64(2), base.RefCount())
	require.Equal(t, "Derived", base.Get().Data)
	require.True(t, handle.Same(base, drv))

	base.Release()
	require.Equal(t, int64(1), drv.RefCount())
	drv.Release()
}

func TestDowncast(t *testing.T) {
	tu.SetT(t)

	drv := handle.New[DerivedWidget](func(w *DerivedWidget) {
		w.Data = "Derived"
		w.Value = 11
	})
	base := handle.Cast[SimpleWidget](drv)
	drv.Release()

	back := handle.Cast[DerivedWidget](base)
	require.Equal(t, "Derived", back.Get().Data)
	require.Equal(t, 11, back.Get().Value)

	back.Release()
	base.Release()
}

func TestCastUnrelatedPanics(t *testing.T) {
	tu.SetT(t)

	ptr := handle.New[SimpleWidget](nil)
	defer ptr.Release()

	require.Panics(t, func() {
		handle.Cast[CompoundWidget](ptr)
	})
}

func TestCheckedCastValid(t *testing.T) {
	tu.SetT(t)

	cw := handle.New[CompoundWidget](func(w *CompoundWidget) {
		w.Kind = "compound"
		w.Payload = "DynCast"
	})
	meta := handle.Cast[MetaPart](cw)
	cw.Release()

	drv := handle.As[CompoundWidget](meta)
	require.False(t, drv.Empty())
	require.Equal(t, "DynCast", drv.Get().Payload)

	// Cross-cast between the two base paths.
	data := handle.As[DataPart](meta)
	require.False(t, data.Empty())
	require.Equal(t, "DynCast", data.Get().Payload)
	require.True(t, handle.Same(drv, data))

	data.Release()
	drv.Release()
	meta.Release()
}

func TestCheckedCastInvalid(t *testing.T) {
	tu.SetT(t)

	pw := handle.New[PlainWidget](func(w *PlainWidget) { w.Kind = "plain" })
	meta := handle.Cast[MetaPart](pw)
	pw.Release()
	require.Equal(t, int64(1), meta.RefCount())

	drv := handle.As[CompoundWidget](meta)
	require.True(t, drv.Empty())

	data := handle.As[DataPart](meta)
	require.True(t, data.Empty())

	// The failed casts left the source untouched.
	require.Equal(t, int64(1), meta.RefCount())
	require.Equal(t, "plain", meta.Get().Kind)
	meta.Release()
}

func TestAllocCountSingle(t *testing.T) {
	tu.SetT(t)

	hp := &heap.Counting{}

	ptr := tu.NoErr(handle.NewIn[SimpleWidget](hp, func(w *SimpleWidget) error {
		w.Data = "AllocTest"
		return nil
	}))
	require.Equal(t, int64(1), hp.Grabs())
	require.Equal(t, int64(0), hp.Reclaims())

	ptr.Release()
	require.Equal(t, int64(1), hp.Grabs())
	require.Equal(t, int64(1), hp.Reclaims())
	require.Equal(t, int64(0), hp.Live())
}

func TestAllocCountShared(t *testing.T) {
	tu.SetT(t)

	hp := &heap.Counting{}

	ptr := tu.NoErr(handle.NewIn[SimpleWidget](hp, func(w *SimpleWidget) error {
		w.Data = "AllocTest"
		return nil
	}))
	require.Equal(t, int64(1), hp.Grabs())

	another := tu.NoErr(handle.NewIn[SimpleWidget](hp, func(w *SimpleWidget) error {
		w.Data = "AllocTest2"
		return nil
	}))
	require.Equal(t, int64(2), hp.Grabs())
	require.Equal(t, int64(0), hp.Reclaims())

	// Replacing the second handle with a share of the first frees one block.
	another.Release()
	another = ptr.Clone()
	require.Equal(t, int64(2), hp.Grabs())
	require.Equal(t, int64(1), hp.Reclaims())

	another.Release()
	require.Equal(t, int64(1), hp.Reclaims())

	ptr.Release()
	require.Equal(t, int64(2), hp.Reclaims())
	require.Equal(t, int64(0), hp.Live())
}

func TestInitFailure(t *testing.T) {
	tu.SetT(t)

	hp := &heap.Counting{}
	boom := tu.Err(handle.NewIn[SelfRefWidget](hp, func(w *SelfRefWidget) error {
		w.Log = &strings.Builder{}
		return errInit
	}))

	require.ErrorIs(t, boom, errInit)
	require.Equal(t, int64(1), hp.Grabs())
	require.Equal(t, int64(1), hp.Reclaims())
}

func TestHeapExhaustion(t *testing.T) {
	tu.SetT(t)

	hp := heap.NewLimit(1, nil)

	ptr := tu.NoErr(handle.NewIn[SimpleWidget](hp, nil))
	defer ptr.Release()

	err := tu.Err(handle.NewIn[SimpleWidget](hp, nil))
	require.ErrorIs(t, err, heap.ErrExhausted)
}

func TestCompareWithOther(t *testing.T) {
	tu.SetT(t)

	ptr1 := handle.New[SimpleWidget](func(w *SimpleWidget) { w.Data = "1" })
	ptr2 := handle.New[SimpleWidget](func(w *SimpleWidget) { w.Data = "1" })
	defer ptr1.Release()
	defer ptr2.Release()

	// Identity, not payload: equal contents still compare unequal.
	require.False(t, ptr1 == ptr2)
	require.True(t, ptr1 == ptr1)
}

func TestCompareWithNull(t *testing.T) {
	tu.SetT(t)

	ptr := handle.New[SimpleWidget](func(w *SimpleWidget) { w.Data = "1" })
	defer ptr.Release()

	require.False(t, ptr == handle.Strong[SimpleWidget]{})

	var a, b handle.Strong[SimpleWidget]
	require.True(t, a == b)
}

func TestRetainRehydrates(t *testing.T) {
	tu.SetT(t)

	ptr := handle.New[SimpleWidget](func(w *SimpleWidget) { w.Data = "raw" })

	again := handle.Retain(ptr.Get())
	require.Equal(t, int64(2), again.RefCount())
	require.True(t, again == ptr)

	again.Release()
	require.Equal(t, int64(1), ptr.RefCount())
	ptr.Release()
}
