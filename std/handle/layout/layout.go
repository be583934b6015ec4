// Package layout resolves subobject positions inside managed types.
//
// A Go embedding hierarchy is a DAG of anonymous struct fields. The offset
// table answers "where does inner live inside outer", following the same
// shallowest-unique rule as Go's own selector resolution: a type reachable
// along two embedding paths at the same depth is treated as unreachable.
package layout

import (
	"reflect"
	"sync"
)

type offsetKey struct {
	outer reflect.Type
	inner reflect.Type
}

var offsets sync.Map // offsetKey -> offsetEntry

type offsetEntry struct {
	off uintptr
	ok  bool
}

// Offset returns the byte offset of the inner type's subobject within outer,
// reachable through anonymous fields embedded by value. The offset of a type
// within itself is zero. Pointer embeds are excluded: their subobject lives
// in a different allocation.
func Offset(outer, inner reflect.Type) (uintptr, bool) {
	if outer == inner {
		return 0, true
	}
	key := offsetKey{outer, inner}
	if e, hit := offsets.Load(key); hit {
		entry := e.(offsetEntry)
		return entry.off, entry.ok
	}
	off, ok := resolve(outer, inner)
	offsets.Store(key, offsetEntry{off, ok})
	return off, ok
}

type candidate struct {
	typ reflect.Type
	off uintptr
}

// resolve walks the embedding DAG breadth-first. The first depth containing
// the target decides: exactly one hit is a match, more than one is ambiguous.
func resolve(outer, inner reflect.Type) (uintptr, bool) {
	level := []candidate{{outer, 0}}
	for len(level) > 0 {
		var hits []uintptr
		var next []candidate
		for _, c := range level {
			if c.typ.Kind() != reflect.Struct {
				continue
			}
			for i := 0; i < c.typ.NumField(); i++ {
				f := c.typ.Field(i)
				if !f.Anonymous || f.Type.Kind() == reflect.Pointer {
					continue
				}
				at := c.off + f.Offset
				if f.Type == inner {
					hits = append(hits, at)
					continue
				}
				next = append(next, candidate{f.Type, at})
			}
		}
		if len(hits) == 1 {
			return hits[0], true
		}
		if len(hits) > 1 {
			return 0, false
		}
		level = next
	}
	return 0, false
}

// HasPointers reports whether values of t contain pointers the garbage
// collector would need to trace. Pointer-free types are the only ones that
// may be placed in raw over-aligned regions.
func HasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Slice, reflect.String, reflect.Interface, reflect.Func:
		return true
	case reflect.Array:
		return t.Len() > 0 && HasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if HasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
