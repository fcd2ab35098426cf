// Package refcnt provides deterministic reference counting for GPU and host
// resources.
//
// A counter starts at one reference when initialized. The release callback
// runs synchronously when the last reference is dropped, never from a
// finalizer.
package refcnt

import (
	"fmt"
	"sync/atomic"
)

// RefCnt is an embeddable strong reference counter.
//
// The zero value is not usable; call Init first.
type RefCnt struct {
	count   atomic.Int32
	release func()
}

// Init sets the count to one and records the release callback.
func (r *RefCnt) Init(release func()) {
	r.count.Store(1)
	r.release = release
}

// Ref adds a reference.
func (r *RefCnt) Ref() {
	if n := r.count.Add(1); n <= 1 {
		panic(fmt.Sprintf("refcnt: Ref on released object (count %d)", n-1))
	}
}

// Unref drops a reference and runs the release callback when none remain.
func (r *RefCnt) Unref() {
	n := r.count.Add(-1)
	switch {
	case n == 0:
		if r.release != nil {
			r.release()
		}
	case n < 0:
		panic("refcnt: Unref below zero")
	}
}

// RefCount returns the current number of strong references.
func (r *RefCnt) RefCount() int32 {
	return r.count.Load()
}

// IsUnique reports whether exactly one reference is held.
func (r *RefCnt) IsUnique() bool {
	return r.count.Load() == 1
}
