// Package ringbuf implements C3: the single-producer/single-consumer ring
// buffer of blocks shared between the planner flow and the step-generator
// flow (spec.md §3 lifecycle, §5 concurrency model).
//
// Four indices chase each other around a power-of-two-sized array:
//
//	tail    - consumer reads/executes here, advances it when a block drains
//	nonbusy - first block the consumer has not yet latched (set Busy)
//	planned - first block the look-ahead recalculator has not yet proven
//	          optimal; the planner never writes past it backwards
//	head    - next free slot; producer-only
//
// head is written only by the planner; tail and nonbusy's *advance* is
// driven only by the consumer (the consumer also sets each block's Busy bit
// as it latches it — that happens before nonbusy moves past it). planned is
// written only by the planner. All four are plain atomics: per spec.md §5,
// the only operation requiring mutual exclusion is quick_stop's four-index
// swap, since that is the sole place more than one index must move as a
// unit and be observed as a unit by the other flow.
package ringbuf

import (
	"sync/atomic"

	"github.com/onekk/gplanner/block"
	"github.com/onekk/gplanner/internal/lock"
)

// Buffer is the ring buffer itself. Capacity must be a power of two.
type Buffer struct {
	slots []*block.Block
	mask  uint32

	head    atomic.Uint32
	tail    atomic.Uint32
	nonbusy atomic.Uint32
	planned atomic.Uint32

	quickStopMu lock.SpinLock
}

// New allocates a ring buffer with room for capacity blocks (rounded up to
// the next power of two) and preallocates every block slot so admission
// never allocates on the hot path.
func New(capacity int) *Buffer {
	n := 1
	for n < capacity {
		n <<= 1
	}
	b := &Buffer{
		slots: make([]*block.Block, n),
		mask:  uint32(n - 1),
	}
	for i := range b.slots {
		b.slots[i] = &block.Block{}
	}
	return b
}

func (b *Buffer) Cap() uint32 { return uint32(len(b.slots)) }

func (b *Buffer) Next(i uint32) uint32 { return (i + 1) & b.mask }
func (b *Buffer) Prev(i uint32) uint32 { return (i - 1) & b.mask }

func (b *Buffer) Head() uint32    { return b.head.Load() }
func (b *Buffer) Tail() uint32    { return b.tail.Load() }
func (b *Buffer) NonBusy() uint32 { return b.nonbusy.Load() }
func (b *Buffer) Planned() uint32 { return b.planned.Load() }

// At returns the block stored in slot i. The caller is responsible for
// knowing whether that slot currently holds live data (i.e. lies between
// tail and head).
func (b *Buffer) At(i uint32) *block.Block { return b.slots[i&b.mask] }

// Empty reports head == tail.
func (b *Buffer) Empty() bool { return b.Head() == b.Tail() }

// Full reports that advancing head would collide with tail.
func (b *Buffer) Full() bool { return b.Next(b.Head()) == b.Tail() }

// Len returns the number of live (queued, not yet drained) blocks.
func (b *Buffer) Len() uint32 {
	h, t := b.Head(), b.Tail()
	return (h - t) & b.mask
}

// Reserve returns the next free slot for the producer to fill, or ok=false
// if the buffer is full (back-pressure, not an error — spec.md §7).
func (b *Buffer) Reserve() (blk *block.Block, idx uint32, ok bool) {
	if b.Full() {
		return nil, 0, false
	}
	h := b.Head()
	return b.slots[h&b.mask], h, true
}

// Commit publishes the block just filled via Reserve and makes it visible
// to the consumer by advancing head. Per spec.md §5, this advance is the
// commit point: all of the block's fields must be written before Commit is
// called.
func (b *Buffer) Commit() {
	b.head.Store(b.Next(b.Head()))
}

// AdvanceTail is called by the consumer flow once it has fully executed the
// block at the current tail; it recycles that slot.
func (b *Buffer) AdvanceTail() {
	b.tail.Store(b.Next(b.Tail()))
}

// Latch is called by the consumer flow when it begins executing the block
// at nonbusy: it sets that block's Busy bit and advances nonbusy past it.
func (b *Buffer) Latch() {
	nb := b.NonBusy()
	if nb == b.Head() {
		return
	}
	b.At(nb).SetBusy(true)
	b.nonbusy.Store(b.Next(nb))
}

// SetPlanned pins the look-ahead recalculator's "proven optimal" boundary.
// The planner must never write to a block at or before planned.
func (b *Buffer) SetPlanned(i uint32) { b.planned.Store(i) }

// QuickStop implements the index-swap half of spec.md §4.6 quick_stop: it
// atomically collapses nonbusy, planned and head onto the current tail,
// discarding every queued block. This is the only ring-buffer operation
// that needs mutual exclusion, because it moves three indices as a unit and
// the consumer flow (which may call this too, per spec.md §5) must never
// observe it half-applied.
func (b *Buffer) QuickStop() {
	b.quickStopMu.Lock()
	defer b.quickStopMu.Unlock()
	t := b.Tail()
	b.nonbusy.Store(t)
	b.planned.Store(t)
	b.head.Store(t)
}
