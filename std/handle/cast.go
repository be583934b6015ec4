package handle

import (
	"reflect"

	"github.com/refptr/refptr/std/handle/layout"
)

// Cast reinterprets a handle along a statically asserted embedding
// relationship: U within T (upcast) or T within U (asserted downcast). The
// result shares ownership with s. No check is made against the object's
// concrete type — a downcast asserted wrongly faults later, at Get. Passing
// unrelated types is a contract breach and panics immediately.
func Cast[U, T any](s Strong[T]) Strong[U] {
	tt, ut := reflect.TypeFor[T](), reflect.TypeFor[U]()
	if tt != ut {
		_, up := layout.Offset(tt, ut)
		if !up {
			if _, down := layout.Offset(ut, tt); !down {
				panic("handle: cast between unrelated types " + tt.String() + " and " + ut.String())
			}
		}
	}
	if s.c == nil {
		return Strong[U]{}
	}
	s.c.incStrong()
	return Strong[U]{c: s.c}
}

// As is the checked reinterpretation: it resolves U against the concrete
// type recorded at construction. When the object is a U, or contains a U
// subobject along a unique embedding path — including hierarchies with
// several independent base paths — it returns a handle sharing ownership,
// addressed at that subobject. Otherwise it returns the empty handle and the
// source is untouched.
func As[U, T any](s Strong[T]) Strong[U] {
	if s.c == nil {
		return Strong[U]{}
	}
	ut := reflect.TypeFor[U]()
	if s.c.vt.typ != ut {
		if _, ok := layout.Offset(s.c.vt.typ, ut); !ok {
			return Strong[U]{}
		}
	}
	s.c.incStrong()
	return Strong[U]{c: s.c}
}
