// Package block implements C2: the queued-move record and its trapezoid
// fitter (spec.md §3, §4.5).
package block

import "sync/atomic"

// MinimalStepRate is the floor on initial_rate/final_rate (steps/s),
// preventing a step-rate period counter from overflowing. Spec §4.5.
const MinimalStepRate = 120

// DirBits packs one direction bit per axis plus CoreXY "head" direction
// bits, per spec.md §3.
type DirBits uint8

const (
	DirA     DirBits = 1 << 0
	DirB     DirBits = 1 << 1
	DirC     DirBits = 1 << 2
	DirE     DirBits = 1 << 3
	DirHeadX DirBits = 1 << 4
	DirHeadY DirBits = 1 << 5
)

// Block is one queued coordinated move. Fields are grouped by who writes
// them: the planner owns everything except Busy, which only the step
// generator ever sets (spec.md §3 invariant I3, §5).
type Block struct {
	// Steps holds the per-axis non-negative step counts (A, B, C, E).
	Steps         [4]uint32
	DirectionBits DirBits

	StepEventCount uint32
	MillimetersVal float64

	NominalRate      uint32
	NominalSpeedSqr  float64

	AccelerationStepsPerS2 float64
	AccelerationMMs2       float64

	EntrySpeedSqr    float64
	MaxEntrySpeedSqr float64

	AccelerateUntil uint32
	DecelerateAfter uint32
	InitialRate     uint32
	FinalRate       uint32

	Recalculate    bool
	NominalLength  bool
	SyncPosition   bool
	Continued      bool

	// Busy is written only by the consumer (step generator); the planner
	// only ever reads it. Accessed atomically so the two flows never race.
	busy uint32

	// SyncPositionSteps is the position snapshot carried by a sync block
	// (buffer_sync_block); zero value for ordinary motion blocks.
	SyncPositionSteps [4]int64

	// ID is a short correlation identifier for diagnostics, independent of
	// the block's slot index (which gets recycled).
	ID string
}

func (b *Block) SetBusy(v bool) {
	if v {
		atomic.StoreUint32(&b.busy, 1)
	} else {
		atomic.StoreUint32(&b.busy, 0)
	}
}

func (b *Block) IsBusy() bool {
	return atomic.LoadUint32(&b.busy) == 1
}

// Millimeters returns the Euclidean head-space length of the move.
func (b *Block) Millimeters() float64 { return b.MillimetersVal }

// Reset clears a block for reuse by move admission when the ring buffer
// recycles a slot. Busy is cleared last in program order by the caller's
// own synchronization (ring buffer only reuses a slot behind tail, which is
// only advanced by the consumer after busy has already served its purpose).
func (b *Block) Reset() {
	*b = Block{}
}
