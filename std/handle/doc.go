// Package handle implements reference-counted ownership of heap objects
// outside the collector's pacing: Strong handles share ownership, Weak
// handles observe without extending lifetime, and the object dies the
// instant its last strong handle does.
//
// A type becomes constructible in one of two ways. Embedding RefCounted by
// value gives it the embedded capability: the counters live inside the
// object itself and construction goes through New or NewIn. Any other type
// can be opted in externally with Declare, which colocates a control header
// with the object in a single block and leaves the type untouched. A type
// with neither capability cannot reach a constructor at all.
//
// Handles are single-word comparable values. The zero value is the empty
// handle; copies are plain word copies, and sharing is explicit through
// Clone, Retain, Downgrade and the cast functions.
package handle
