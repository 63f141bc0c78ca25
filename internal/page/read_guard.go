package page

import (
	"sync"

	"github.com/tuannm99/bufpool/internal/common"
	"github.com/tuannm99/bufpool/internal/disk"
	"github.com/tuannm99/bufpool/internal/frame"
)

// ReadGuard grants shared, read-only access to a pinned page's bytes.
// Constructed only by the buffer pool manager, which has already pinned
// the frame and loaded its data; NewReadGuard itself only acquires the
// frame's rwlatch for read.
type ReadGuard struct {
	base
}

// NewReadGuard acquires fr's rwlatch for read and returns a valid guard
// over it. Callers must have already pinned fr and recorded the access.
func NewReadGuard(pageID common.PageID, fr *frame.Header, replacer Replacer, global *sync.Mutex, sched *disk.Scheduler) *ReadGuard {
	fr.RLock()
	return &ReadGuard{base{
		valid:    true,
		pageID:   pageID,
		fr:       fr,
		replacer: replacer,
		global:   global,
		sched:    sched,
	}}
}

// GetData returns the frame's bytes, read-only by convention (Go has no
// const slices; callers must not mutate what this returns).
func (g *ReadGuard) GetData() []byte {
	g.checkValid()
	return g.fr.Data
}

// Flush writes the frame back to disk if dirty and waits for completion.
// Permitted on a read guard because the caller may be synchronizing a
// dirty bit it inherited from an earlier writer, not one it set itself.
func (g *ReadGuard) Flush() error {
	return g.flush()
}

// Drop releases the shared latch and the pin. Idempotent.
func (g *ReadGuard) Drop() {
	if !g.valid {
		return
	}
	g.fr.RUnlock()
	g.drop()
}
