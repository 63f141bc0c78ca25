package page

import (
	"sync"

	"github.com/tuannm99/bufpool/internal/common"
	"github.com/tuannm99/bufpool/internal/disk"
	"github.com/tuannm99/bufpool/internal/frame"
)

// WriteGuard grants exclusive, read-write access to a pinned page's bytes.
type WriteGuard struct {
	base
}

// NewWriteGuard acquires fr's rwlatch for write and returns a valid guard
// over it. Callers must have already pinned fr and recorded the access.
func NewWriteGuard(pageID common.PageID, fr *frame.Header, replacer Replacer, global *sync.Mutex, sched *disk.Scheduler) *WriteGuard {
	fr.Lock()
	return &WriteGuard{base{
		valid:    true,
		pageID:   pageID,
		fr:       fr,
		replacer: replacer,
		global:   global,
		sched:    sched,
	}}
}

// GetData returns the frame's bytes read-only, for callers that only need
// to inspect a write-locked page.
func (g *WriteGuard) GetData() []byte {
	g.checkValid()
	return g.fr.Data
}

// GetDataMut returns the frame's bytes for mutation.
func (g *WriteGuard) GetDataMut() []byte {
	g.checkValid()
	return g.fr.Data
}

// Flush writes the frame back to disk if dirty and waits for completion.
func (g *WriteGuard) Flush() error {
	return g.flush()
}

// Drop unconditionally marks the frame dirty — a write guard is presumed
// to have modified the page, and the conservative policy avoids lost
// updates from a caller that mutated GetDataMut()'s result without a
// matching explicit SetDirty call — then releases the exclusive latch and
// the pin. Idempotent.
func (g *WriteGuard) Drop() {
	if !g.valid {
		return
	}
	g.fr.SetDirty(true)
	g.fr.Unlock()
	g.drop()
}
