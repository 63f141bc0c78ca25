package frame

import "sync/atomic"

// pinCount is a zero-based atomic reference count reporting zero/non-zero
// transitions, which is the signal a frame's owner needs to know when to
// flip the replacer's evictable bit. Adapted from the teacher's
// locking.RefCount (internal/lock/refcount.go), which started counts at 1
// and never reported transitions; this version starts at 0 (a frame is
// unpinned until someone pins it) and its Inc/Dec report the 0<->1 edges
// Header.Pin/Unpin need instead of just the current value.
type pinCount struct {
	count int32
}

// inc increments the count and reports whether this was the 0->1
// transition.
func (r *pinCount) inc() (becamePinned bool) {
	return atomic.AddInt32(&r.count, 1) == 1
}

// dec decrements the count and reports whether this was the 1->0
// transition. A no-op returning false if the count is already zero —
// unlike the teacher's Dec, this never panics on going negative, since an
// unpin on an already-unpinned frame is a caller bug we'd rather ignore
// than crash the worker handling it.
func (r *pinCount) dec() (becameUnpinned bool) {
	for {
		cur := atomic.LoadInt32(&r.count)
		if cur <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&r.count, cur, cur-1) {
			return cur-1 == 0
		}
	}
}

func (r *pinCount) get() int32 {
	return atomic.LoadInt32(&r.count)
}

func (r *pinCount) reset() {
	atomic.StoreInt32(&r.count, 0)
}
