package planner

import (
	"math"

	"github.com/onekk/gplanner/kinematics"
)

// Synchronize blocks the calling goroutine until every currently queued
// block has drained (spec.md §4.6), the wait-for-moves-to-finish primitive
// behind, e.g., an upstream M400. It spins on the idle yield rather than a
// condition variable because the consumer side never signals the planner
// directly (spec.md §5: the only cross-flow handshake is the atomic
// indices themselves).
func (p *Planner) Synchronize() {
	for {
		p.mu.Lock()
		empty := p.rb.Empty()
		p.mu.Unlock()
		if empty {
			return
		}
		yieldIdle()
	}
}

// QuickStop implements spec.md §4.6's emergency abort: it discards every
// queued-but-not-yet-executing block, forgets the junction history so the
// next admitted move is bounded at the minimum planner speed like the first
// move after a reset, and arms a short window
// during which buffer_line/buffer_segment/buffer_steps refuse new moves
// (spec.md §7's "absorbed, not silently accepted" framing applied to the
// post-abort settling period rather than to a single bad move).
func (p *Planner) QuickStop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	epoch := shortID()
	p.rb.QuickStop()
	p.havePrevUnit = false
	p.prevNominalSpeedSqr = math.Inf(1)
	p.armCleanBuffer(p.cfg.BlockDelayFor1stMove)
	p.resetFirstMoveDelay()
	p.diag.logQuickStop(epoch)
}

// SetPositionMM forces the canonical position of one geometric axis (A, B
// or C) without enqueuing a move, per spec.md §4.6. If the queue is
// non-empty, the step generator's own running position hasn't caught up to
// this axis yet, so a direct write here would desync it the moment it does
// (invariant I1): a sync block is published instead, carrying the new
// position to the consumer at the right point in the stream. An empty
// queue has nothing to desync, so the register is written directly.
// Callers are expected to have already called Synchronize if they need the
// write to be visible before returning; this does not itself wait.
func (p *Planner) SetPositionMM(axis int, mm float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if axis < 0 || axis > kinematics.C {
		return
	}
	newSteps := int64(mm * p.model.Axes[axis].StepsPerMM)
	if newSteps == p.positionSteps[axis] && p.positionMM[axis] == mm {
		return
	}
	p.positionMM[axis] = mm
	p.positionSteps[axis] = newSteps
	p.havePrevUnit = false
	p.prevNominalSpeedSqr = math.Inf(1)
	if !p.rb.Empty() {
		p.bufferSyncBlockLocked()
	}
}

// SetEPositionMM is SetPositionMM's extruder-axis counterpart, kept
// separate because resetting the extruder's logical position (e.g. after a
// G92 E0) is far more common in practice than resetting a geometric axis
// and deserves its own entry point per spec.md §4.6. It follows the same
// sync-block-or-direct-write split as SetPositionMM.
func (p *Planner) SetEPositionMM(mm float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	newSteps := int64(mm * p.model.Axes[kinematics.E].StepsPerMM)
	if newSteps == p.positionSteps[kinematics.E] && p.positionMM[kinematics.E] == mm {
		return
	}
	p.positionMM[kinematics.E] = mm
	p.positionSteps[kinematics.E] = newSteps
	if !p.rb.Empty() {
		p.bufferSyncBlockLocked()
	}
}

// BufferSyncBlock enqueues a zero-motion block carrying a position
// snapshot instead of step counts (spec.md §4.6): the step generator, on
// latching it, re-synchronizes its own running step counters to
// SyncPositionSteps rather than integrating any axis deltas. Used after an
// out-of-band position change (e.g. a probe touch) that the step generator
// could not itself observe.
func (p *Planner) BufferSyncBlock() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bufferSyncBlockLocked()
}

// bufferSyncBlockLocked is BufferSyncBlock's body, split out so
// SetPositionMM and SetEPositionMM can publish a sync block without
// recursively taking p.mu.
func (p *Planner) bufferSyncBlockLocked() bool {
	blk, _, ok := p.reserveWithBackpressure()
	if !ok {
		return false
	}
	blk.Reset()
	blk.ID = shortID()
	blk.SyncPosition = true
	blk.SyncPositionSteps = p.positionSteps
	blk.Recalculate = false
	blk.NominalLength = true
	wasEmpty := p.rb.Empty()
	p.rb.Commit()
	if wasEmpty {
		p.rb.SetPlanned(p.rb.Prev(p.rb.Head()))
		p.armFirstMoveDelay()
	}
	return true
}

// EndstopTriggered reports an asynchronous endstop hit on the given axis to
// the planner (spec.md §4.6). A hit always aborts whatever is queued: the
// move that was executing when the endstop fired was, by construction,
// going somewhere the machine cannot safely go.
func (p *Planner) EndstopTriggered(axis int) {
	p.QuickStop()
}
