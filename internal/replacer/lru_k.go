// Package replacer implements the LRU-K page replacement policy used to
// choose which buffer-pool frame to evict.
//
// The algorithm: track, per frame, the timestamps of its last k accesses.
// A frame's backward k-distance is the age of its k-th most recent access;
// frames with fewer than k accesses have infinite backward k-distance, so
// they are evicted before any frame with a full k-length history. Within
// the infinite bucket ties break by classical LRU (earliest most-recent
// access first).
package replacer

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/tuannm99/bufpool/internal/common"
)

// ErrOutOfRange is returned by RecordAccess when the frame id is not a
// valid index into the replacer's tracked range [0, N).
var ErrOutOfRange = errors.New("replacer: frame id out of range")

// ErrInvalidState is returned by Remove when the named frame exists but is
// not currently evictable.
var ErrInvalidState = errors.New("replacer: frame is not evictable")

// infDistance represents the +∞ backward k-distance of a frame with fewer
// than k recorded accesses.
const infDistance = uint64(math.MaxUint64)

type lruKNode struct {
	frameID   common.FrameID
	history   []uint64 // oldest access in front, newest in back; len <= k
	evictable bool
}

func newLRUKNode(frameID common.FrameID) *lruKNode {
	return &lruKNode{frameID: frameID}
}

func (n *lruKNode) recordAccess(k int, timestamp uint64) {
	if len(n.history) == k {
		n.history = n.history[1:]
	}
	n.history = append(n.history, timestamp)
}

// distance returns the backward k-distance of this node at time `now`,
// given the replacer's configured k.
func (n *lruKNode) distance(k int, now uint64) uint64 {
	if len(n.history) < k {
		return infDistance
	}
	return now - n.history[0]
}

// lastAccess is the classical-LRU tie-break key: the most recent access
// timestamp, used only to order frames that share the same (infinite)
// distance.
func (n *lruKNode) lastAccess() uint64 {
	return n.history[len(n.history)-1]
}

// LRUK is a thread-safe LRU-K replacer tracking up to N frames.
type LRUK struct {
	mu sync.Mutex

	nodes map[common.FrameID]*lruKNode

	replacerSize     int
	k                int
	currSize         int // number of evictable frames
	currentTimestamp uint64
}

// NewLRUK constructs a replacer for up to numFrames frames, each evaluated
// against the last k accesses.
func NewLRUK(numFrames, k int) *LRUK {
	return &LRUK{
		nodes:        make(map[common.FrameID]*lruKNode),
		replacerSize: numFrames,
		k:            k,
	}
}

// RecordAccess appends the current logical timestamp to frameID's access
// history, creating the node on first sight. It never changes Size().
func (r *LRUK) RecordAccess(frameID common.FrameID, accessType common.AccessType) error {
	if frameID < 0 || int(frameID) >= r.replacerSize {
		return fmt.Errorf("%w: frame %d (size %d)", ErrOutOfRange, frameID, r.replacerSize)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.currentTimestamp++

	node, ok := r.nodes[frameID]
	if !ok {
		node = newLRUKNode(frameID)
		r.nodes[frameID] = node
	}
	node.recordAccess(r.k, r.currentTimestamp)
	return nil
}

// SetEvictable toggles whether frameID is a candidate for eviction,
// adjusting Size() by ±1 only on a genuine state transition. Unknown
// frames are a no-op.
func (r *LRUK) SetEvictable(frameID common.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if node.evictable == evictable {
		return
	}
	node.evictable = evictable
	if evictable {
		r.currSize++
	} else {
		r.currSize--
	}
}

// Evict returns the frame with the largest backward k-distance among
// evictable frames, removing its node and history. ok is false when no
// frame is currently evictable.
func (r *LRUK) Evict() (frameID common.FrameID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currSize == 0 {
		return 0, false
	}

	var (
		victim      *lruKNode
		victimDist  uint64
		victimTieBy uint64
	)
	for _, node := range r.nodes {
		if !node.evictable {
			continue
		}
		dist := node.distance(r.k, r.currentTimestamp)
		tie := node.lastAccess()
		if victim == nil || dist > victimDist || (dist == victimDist && tie < victimTieBy) {
			victim = node
			victimDist = dist
			victimTieBy = tie
		}
	}
	if victim == nil {
		return 0, false
	}

	delete(r.nodes, victim.frameID)
	r.currSize--
	return victim.frameID, true
}

// Remove unconditionally drops frameID's tracked history. The frame must
// currently be evictable; removing a pinned (non-evictable) frame is an
// InvalidState error. Removing an unknown frame is a no-op.
func (r *LRUK) Remove(frameID common.FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[frameID]
	if !ok {
		return nil
	}
	if !node.evictable {
		return fmt.Errorf("%w: frame %d", ErrInvalidState, frameID)
	}

	delete(r.nodes, frameID)
	r.currSize--
	return nil
}

// Size returns the number of frames currently marked evictable.
func (r *LRUK) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currSize
}
