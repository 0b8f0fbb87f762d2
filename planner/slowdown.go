package planner

import (
	"math"

	"github.com/onekk/gplanner/block"
)

// applySlowdown is the optional hook named in spec.md §6: on machines where
// the step generator's interrupt has a real floor on how short a segment
// it can service, a block whose nominal rate would produce a shorter
// segment than that floor gets stretched instead of being left to starve
// the consumer. It only engages once the queue has built up a couple of
// blocks of slack and backs off again as the queue fills past half its
// capacity, so it never fights back-pressure on an already-busy buffer.
// Disabled (MinSegmentTimeUs == 0) by default, matching spec.md's framing
// of this as opt-in.
func (p *Planner) applySlowdown(blk *block.Block) {
	if p.cfg.MinSegmentTimeUs <= 0 || blk.StepEventCount == 0 || blk.NominalRate == 0 {
		return
	}
	occupancy := int(p.rb.Len())
	upper := int(p.rb.Cap())/2 - 1
	if occupancy < 2 || occupancy > upper {
		return
	}
	segmentUs := float64(blk.StepEventCount) / float64(blk.NominalRate) * 1e6
	if segmentUs >= p.cfg.MinSegmentTimeUs {
		return
	}
	stretchedUs := segmentUs + 2*(p.cfg.MinSegmentTimeUs-segmentUs)/float64(occupancy)
	newRate := uint32(math.Max(block.MinimalStepRate, float64(blk.StepEventCount)/stretchedUs*1e6))
	if newRate >= blk.NominalRate {
		return
	}
	ratio := float64(newRate) / float64(blk.NominalRate)
	blk.NominalRate = newRate
	blk.NominalSpeedSqr *= ratio * ratio
}
