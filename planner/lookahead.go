package planner

import (
	"math"

	"github.com/onekk/gplanner/block"
)

// Recalculate re-runs the full look-ahead pass. buffer_steps already calls
// this internally after every admitted move (spec.md §4.3 step 14); it is
// exported so a host can force a pass after, say, changing an extruder's
// temperature reading out from under an otherwise-idle queue.
func (p *Planner) Recalculate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recalculateLocked()
}

func (p *Planner) recalculateLocked() {
	if p.rb.Empty() {
		return
	}
	p.advancePlannedPastBusy()
	p.reversePass()
	p.forwardPass()
	p.recalculateTrapezoids()
}

// advancePlannedPastBusy moves planned forward over any block the consumer
// has already latched. A busy block's profile is already being executed and
// can never be rewritten (every write site in this file guards on
// !IsBusy()), so it is vacuously "proven" the moment it latches: there is
// nothing left for either pass to decide about it, and leaving planned
// pointing at it would needlessly shrink next time's reverse-pass window
// without ever letting the forward pass's own proof advance past it again.
func (p *Planner) advancePlannedPastBusy() {
	rb := p.rb
	head := rb.Head()
	i := rb.Planned()
	for i != head && rb.At(i).IsBusy() {
		i = rb.Next(i)
	}
	if i != rb.Planned() {
		rb.SetPlanned(i)
	}
}

// reversePass walks from the newest queued block back to planned,
// tightening each block's entry speed against what its successor can
// actually decelerate down to (spec.md §4.4). It stops early, leaving
// everything before it untouched, the moment it reaches a block the step
// generator has already latched: that block's profile is already being
// executed and must not change underneath it.
func (p *Planner) reversePass() {
	rb := p.rb
	head := rb.Head()
	planned := rb.Planned()
	if head == planned {
		return
	}
	last := rb.Prev(head)

	// The newest block has no real successor yet, so it is checked against
	// a virtual one whose entry speed is the minimum planner speed (spec.md
	// §4.4: "the next block's entry_speed_sqr, or MINIMUM_PLANNER_SPEED² if
	// this is the last block"). Without this seed the newest block would
	// never be reconsidered here at all.
	nextEntrySqr := p.cfg.minimumPlannerSpeedSqr()
	for i := last; ; i = rb.Prev(i) {
		cur := rb.At(i)
		if cur.IsBusy() {
			break
		}
		if cur.SyncPosition {
			// A sync block carries no motion and no entry_speed_sqr of its
			// own (spec.md §4.4 "for each non-sync block"); skip it so the
			// real block behind it is checked against the real block ahead
			// of it, as if the sync block weren't there.
			if i == planned {
				break
			}
			continue
		}
		if cur.EntrySpeedSqr != cur.MaxEntrySpeedSqr {
			var newSqr float64
			if cur.NominalLength {
				newSqr = cur.MaxEntrySpeedSqr
			} else {
				newSqr = math.Min(cur.MaxEntrySpeedSqr,
					block.MaxAllowableSpeedSqr(-cur.AccelerationMMs2, nextEntrySqr, cur.MillimetersVal))
			}
			// Re-check busy right before the write: a block can only
			// transition not-busy -> busy while we are in this loop (never
			// the reverse), so a write here is safe exactly when this
			// second check still sees it idle.
			if cur.IsBusy() {
				break
			}
			cur.EntrySpeedSqr = newSqr
			cur.Recalculate = true
		}
		nextEntrySqr = cur.EntrySpeedSqr
		if i == planned {
			break
		}
	}
}

// forwardPass walks from planned forward to the newest block, lowering each
// block's entry speed to whatever its predecessor can actually accelerate
// up to by the junction (it never raises one), and advances planned past whichever blocks this
// proves optimal (spec.md §4.4): either this pass itself settled the
// block's final entry speed, or the block was already admitted straight
// onto its max_entry_speed_sqr ceiling and can never be improved by a
// later reverse pass either.
func (p *Planner) forwardPass() {
	rb := p.rb
	head := rb.Head()
	planned := rb.Planned()
	newPlanned := planned

	var prev *block.Block
	for i := planned; i != head; i = rb.Next(i) {
		cur := rb.At(i)
		if cur.SyncPosition {
			// Pass through untouched: the real block after this sync block
			// is compared against the real block before it, as if the sync
			// block weren't there (spec.md §4.4 "for each non-sync block").
			continue
		}
		if prev != nil && !prev.IsBusy() && !prev.NominalLength && prev.EntrySpeedSqr < cur.EntrySpeedSqr {
			newEntry := math.Min(cur.EntrySpeedSqr,
				block.MaxAllowableSpeedSqr(-prev.AccelerationMMs2, prev.EntrySpeedSqr, prev.MillimetersVal))
			if newEntry < cur.EntrySpeedSqr && !cur.IsBusy() {
				cur.EntrySpeedSqr = newEntry
				cur.Recalculate = true
				newPlanned = i
			}
		}
		if cur.EntrySpeedSqr == cur.MaxEntrySpeedSqr && !cur.IsBusy() {
			newPlanned = i
		}
		prev = cur
	}
	if newPlanned != planned {
		rb.SetPlanned(newPlanned)
	}
}

// recalculateTrapezoids fits every non-sync, non-busy block from tail to
// the newest block with its now-settled entry/exit speeds (spec.md §4.5).
// The proof that lets planned advance lives entirely in forwardPass; this
// pass only refits shapes, it never moves the planned boundary itself.
func (p *Planner) recalculateTrapezoids() {
	rb := p.rb
	tail, head := rb.Tail(), rb.Head()
	if tail == head {
		return
	}

	lastReal, haveLastReal := uint32(0), false
	for i := tail; i != head; i = rb.Next(i) {
		if !rb.At(i).SyncPosition {
			lastReal, haveLastReal = i, true
		}
	}
	if !haveLastReal {
		return
	}

	for i := tail; ; i = rb.Next(i) {
		cur := rb.At(i)
		if cur.SyncPosition {
			if i == lastReal {
				break
			}
			continue
		}
		var exitSqr float64
		if i == lastReal {
			exitSqr = p.cfg.minimumPlannerSpeedSqr()
		} else {
			exitSqr = p.nextRealEntrySqr(i, head)
		}
		if !cur.IsBusy() {
			cur.FitTrapezoid(cur.EntrySpeedSqr, exitSqr)
			cur.Recalculate = false
		}
		if i == lastReal {
			break
		}
	}
}

// nextRealEntrySqr finds the entry_speed_sqr of the next non-sync block
// after i, passing through any sync blocks in between untouched. Falls back
// to the minimum planner speed if i has no real successor before head (it
// is itself the last real block, handled separately by the caller, or the
// ring holds nothing but trailing sync blocks past i).
func (p *Planner) nextRealEntrySqr(i, head uint32) float64 {
	rb := p.rb
	for j := rb.Next(i); j != head; j = rb.Next(j) {
		if !rb.At(j).SyncPosition {
			return rb.At(j).EntrySpeedSqr
		}
	}
	return p.cfg.minimumPlannerSpeedSqr()
}
