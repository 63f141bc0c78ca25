// Package frame holds the fixed-size, reusable slots the buffer pool loads
// pages into. A Header never moves once allocated; only the page it holds
// changes across its lifetime.
package frame

import (
	"sync"

	"github.com/tuannm99/bufpool/internal/common"
)

// Header is one in-memory frame: PageSize bytes of page data plus the
// bookkeeping the pool and its guards need to coordinate concurrent access.
// Grounded on the teacher's bufferpool.Frame (PageID/Page/Dirty/Pin), split
// here into the two locks the three-lock-ordering protocol needs:
//
//   - rwlatch guards the frame's Data contents. A reader of the page holds
//     it for read; a writer holds it for write.
//   - dataLatch is a short-lived mutex guarding only the page id and the
//     dirty bit, so reading or setting them never has to wait behind a
//     long-held rwlatch. The pin count is a separate atomic counter.
//
// Callers take the pool's global latch before either of these; see
// internal/bpm for the ordering this frame is built to support.
type Header struct {
	FrameID common.FrameID
	Data    []byte

	rwlatch sync.RWMutex

	dataLatch sync.Mutex
	pageID    common.PageID
	pins      pinCount
	isDirty   bool
}

// NewHeader allocates a zeroed frame of common.PageSize bytes.
func NewHeader(id common.FrameID) *Header {
	return &Header{
		FrameID: id,
		Data:    make([]byte, common.PageSize),
		pageID:  common.InvalidPageID,
	}
}

// RLock/RUnlock/Lock/Unlock expose the frame's content latch directly so
// page guards can hold it across their lifetime without an extra layer of
// indirection.
func (h *Header) RLock()   { h.rwlatch.RLock() }
func (h *Header) RUnlock() { h.rwlatch.RUnlock() }
func (h *Header) Lock()    { h.rwlatch.Lock() }
func (h *Header) Unlock()  { h.rwlatch.Unlock() }

// PageID returns the page currently resident in this frame.
func (h *Header) PageID() common.PageID {
	h.dataLatch.Lock()
	defer h.dataLatch.Unlock()
	return h.pageID
}

// SetPageID rebinds the frame to a new page identity. Callers must hold the
// pool's global latch and this frame's rwlatch for write before calling it,
// since it changes what Data logically represents.
func (h *Header) SetPageID(id common.PageID) {
	h.dataLatch.Lock()
	defer h.dataLatch.Unlock()
	h.pageID = id
}

// PinCount returns the current pin count.
func (h *Header) PinCount() int32 {
	return h.pins.get()
}

// Pin increments the pin count and reports whether this transitioned the
// frame from unpinned to pinned (0 -> 1), which callers use to flip the
// replacer's evictable bit.
func (h *Header) Pin() (becamePinned bool) {
	return h.pins.inc()
}

// Unpin decrements the pin count and reports whether this transitioned the
// frame from pinned to unpinned (1 -> 0). It is a no-op returning false if
// the pin count is already zero.
func (h *Header) Unpin() (becameUnpinned bool) {
	return h.pins.dec()
}

// IsDirty reports the frame's dirty bit.
func (h *Header) IsDirty() bool {
	h.dataLatch.Lock()
	defer h.dataLatch.Unlock()
	return h.isDirty
}

// SetDirty sets the dirty bit. Guards call this under dataLatch alone so a
// reader's SetDirty(false) after a flush never has to wait on the content
// rwlatch held by an unrelated writer.
func (h *Header) SetDirty(dirty bool) {
	h.dataLatch.Lock()
	defer h.dataLatch.Unlock()
	h.isDirty = dirty
}

// Reset clears identity and dirty state, keeping the allocated Data buffer
// for reuse by the next page loaded into this frame. Callers must hold the
// frame's rwlatch for write.
func (h *Header) Reset() {
	h.dataLatch.Lock()
	h.pageID = common.InvalidPageID
	h.isDirty = false
	h.dataLatch.Unlock()
	h.pins.reset()
	for i := range h.Data {
		h.Data[i] = 0
	}
}
