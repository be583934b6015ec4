package layout_test

import (
	"reflect"
	"testing"
	"unsafe"

	"github.com/refptr/refptr/std/handle/layout"
	"github.com/stretchr/testify/require"
)

type inner struct {
	X int64
}

type middle struct {
	pad [3]uint32
	inner
}

type outer struct {
	head uint16
	middle
}

type viaPointer struct {
	*inner
}

type twin struct {
	A inner
	B inner
}

type diamondLeft struct {
	inner
}

type diamondRight struct {
	inner
}

type diamond struct {
	diamondLeft
	diamondRight
}

type shadowing struct {
	inner
	diamondLeft
}

func TestOffsetSelf(t *testing.T) {
	ty := reflect.TypeFor[inner]()
	off, ok := layout.Offset(ty, ty)
	require.True(t, ok)
	require.Zero(t, off)
}

func TestOffsetNested(t *testing.T) {
	var o outer
	want := uintptr(unsafe.Pointer(&o.inner)) - uintptr(unsafe.Pointer(&o))

	off, ok := layout.Offset(reflect.TypeFor[outer](), reflect.TypeFor[inner]())
	require.True(t, ok)
	require.Equal(t, want, off)

	off, ok = layout.Offset(reflect.TypeFor[outer](), reflect.TypeFor[middle]())
	require.True(t, ok)
	require.Equal(t, uintptr(unsafe.Pointer(&o.middle))-uintptr(unsafe.Pointer(&o)), off)
}

func TestOffsetNamedFieldInvisible(t *testing.T) {
	// Only anonymous fields count; named fields of the same type do not.
	_, ok := layout.Offset(reflect.TypeFor[twin](), reflect.TypeFor[inner]())
	require.False(t, ok)
}

func TestOffsetPointerEmbedExcluded(t *testing.T) {
	_, ok := layout.Offset(reflect.TypeFor[viaPointer](), reflect.TypeFor[inner]())
	require.False(t, ok)
}

func TestOffsetAmbiguous(t *testing.T) {
	// inner is reachable through both halves at the same depth.
	_, ok := layout.Offset(reflect.TypeFor[diamond](), reflect.TypeFor[inner]())
	require.False(t, ok)
}

func TestOffsetShallowestWins(t *testing.T) {
	// The direct embed at depth one shadows the one inside diamondLeft.
	var s shadowing
	want := uintptr(unsafe.Pointer(&s.inner)) - uintptr(unsafe.Pointer(&s))

	off, ok := layout.Offset(reflect.TypeFor[shadowing](), reflect.TypeFor[inner]())
	require.True(t, ok)
	require.Equal(t, want, off)
}

func TestOffsetUnrelated(t *testing.T) {
	_, ok := layout.Offset(reflect.TypeFor[inner](), reflect.TypeFor[outer]())
	require.False(t, ok)
}

func TestHasPointers(t *testing.T) {
	require.False(t, layout.HasPointers(reflect.TypeFor[int64]()))
	require.False(t, layout.HasPointers(reflect.TypeFor[[8]float64]()))
	require.False(t, layout.HasPointers(reflect.TypeFor[inner]()))
	require.False(t, layout.HasPointers(reflect.TypeFor[outer]()))
	require.False(t, layout.HasPointers(reflect.TypeFor[[0]*int]()))

	require.True(t, layout.HasPointers(reflect.TypeFor[string]()))
	require.True(t, layout.HasPointers(reflect.TypeFor[[]byte]()))
	require.True(t, layout.HasPointers(reflect.TypeFor[*inner]()))
	require.True(t, layout.HasPointers(reflect.TypeFor[map[int]int]()))
	require.True(t, layout.HasPointers(reflect.TypeFor[struct{ s []int }]()))
	require.True(t, layout.HasPointers(reflect.TypeFor[[2]struct{ p *int }]()))
}
