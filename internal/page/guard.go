// Package page implements the scoped guards through which callers touch a
// pinned page's bytes. A guard is issued already holding a pin; dropping it
// is the only way to release that pin.
package page

import (
	"fmt"
	"sync"

	"github.com/tuannm99/bufpool/internal/common"
	"github.com/tuannm99/bufpool/internal/disk"
	"github.com/tuannm99/bufpool/internal/frame"
)

// ErrInvalidGuard is the value panicked with when a guard is used after
// being dropped, including by Flush. Per spec, "invalid use
// aborts" — Go has no abort, so we panic, matching the teacher's treatment
// of programmer errors elsewhere (e.g. Scheduler.Schedule after Close).
var ErrInvalidGuard = fmt.Errorf("page: guard used after drop")

// Replacer is the slice of the replacer's surface a guard needs on drop.
type Replacer interface {
	SetEvictable(frameID common.FrameID, evictable bool)
}

// base holds the fields shared by ReadGuard and WriteGuard. Neither guard
// is safe for concurrent use from multiple goroutines (same constraint as
// the original's move-only guard); it is safe to hand off to another
// goroutine entirely, which is the Go analogue of move semantics.
type base struct {
	valid bool

	pageID   common.PageID
	fr       *frame.Header
	replacer Replacer
	global   *sync.Mutex
	sched    *disk.Scheduler
}

func (g *base) checkValid() {
	if !g.valid {
		panic(ErrInvalidGuard)
	}
}

// PageID returns the page this guard is holding.
func (g *base) PageID() common.PageID {
	g.checkValid()
	return g.pageID
}

// IsDirty reports the frame's dirty bit.
func (g *base) IsDirty() bool {
	g.checkValid()
	return g.fr.IsDirty()
}

// flush submits the frame's current bytes for a durable write and blocks
// until the scheduler's worker has completed it, clearing the dirty bit
// first so a concurrent writer racing in after this call sets it again
// rather than losing an update. Shared by both guard kinds per spec 4.3/4.4.
func (g *base) flush() error {
	g.checkValid()

	if !g.fr.IsDirty() {
		return nil
	}
	g.fr.SetDirty(false)

	promise, future := g.sched.CreatePromise()
	g.sched.Schedule(disk.NewWriteRequest(g.pageID, g.fr.Data, promise))
	return future.Wait()
}

// drop runs after the caller has released the frame's rwlatch (the caller
// does so immediately before calling drop, since the lock kind differs
// between read/write guards); it decrements the pin count, and — iff that decrement reached zero and a
// racing re-pin did not beat us to the global latch — marks the frame
// evictable. Idempotent: a second call is a no-op.
func (g *base) drop() {
	if !g.valid {
		return
	}
	g.valid = false

	if g.fr.Unpin() {
		g.global.Lock()
		if g.fr.PinCount() == 0 {
			g.replacer.SetEvictable(g.fr.FrameID, true)
		}
		g.global.Unlock()
	}
}
