package handle

// Weak is a non-owning observer handle: one word, comparable, zero value
// empty. It can detect the managed object's death but never delays it; what
// it does delay is release of the backing region, which stays until the last
// weak handle departs.
//
// Equality mirrors Strong: identity of the observed object, with all empty
// handles equal to the zero value.
type Weak[T any] struct {
	c *control
}

// Empty reports whether the handle observes no object.
func (w Weak[T]) Empty() bool { return w.c == nil }

// Clone returns a handle observing the same object, incrementing the weak
// count.
func (w Weak[T]) Clone() Weak[T] {
	if w.c != nil {
		w.c.incWeak()
	}
	return w
}

// Move transfers the observation out of w, leaving it empty.
func (w *Weak[T]) Move() Weak[T] {
	out := *w
	w.c = nil
	return out
}

// Release drops this handle's weak unit and empties it. The last weak unit
// out releases the backing region if the object is already destroyed.
func (w *Weak[T]) Release() {
	if w.c == nil {
		return
	}
	c := w.c
	w.c = nil
	c.decWeak()
}

// Lock attempts to reacquire ownership. It succeeds only if the object is
// still alive at the instant of the attempt, returning a populated strong
// handle that shares the count; once the object has died it returns the
// empty handle. The attempt is a single conditional increment, so racing
// Locks near a dying object each independently win or lose without
// resurrection.
func (w Weak[T]) Lock() Strong[T] {
	if w.c == nil || !w.c.tryIncStrong() {
		return Strong[T]{}
	}
	return Strong[T]{c: w.c}
}

// Expired reports whether the observed object has been destroyed. An empty
// handle is expired.
func (w Weak[T]) Expired() bool {
	return w.c == nil || w.c.strong.Load() == 0
}
