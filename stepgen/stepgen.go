// Package stepgen is test tooling only: a simulated consumer of the ring
// buffer that stands in for the real step-generator interrupt so planner
// tests can exercise the producer/consumer handshake (Latch, AdvanceTail,
// Busy) without any hardware, mirroring spec.md §5's description of the
// step generator's half of the contract.
package stepgen

import (
	"time"

	"github.com/onekk/gplanner/ringbuf"
)

// Simulator drains a ring buffer one block per step, recording every
// block it executes so a test can assert on the sequence of rates/timings
// the planner actually produced.
type Simulator struct {
	rb    *ringbuf.Buffer
	Clock func() time.Time

	// ReadyToStart, when set, is consulted before latching the first block
	// off an otherwise-idle queue, mirroring the real step generator's
	// obligation to honor BLOCK_DELAY_FOR_1ST_MOVE before it starts
	// executing a just-armed queue. Left nil, the simulator never waits.
	ReadyToStart func() bool

	Executed []ExecutedBlock
	idle     bool
}

type ExecutedBlock struct {
	ID             string
	StepEventCount uint32
	InitialRate    uint32
	NominalRate    uint32
	FinalRate      uint32
	SyncPosition   bool
}

func New(rb *ringbuf.Buffer) *Simulator {
	return &Simulator{rb: rb, Clock: time.Now, idle: true}
}

// RunUntilEmpty latches and drains every block currently in the buffer,
// plus anything the planner admits while this call is running, until the
// buffer reports empty or maxSteps blocks have been executed, whichever
// comes first. It never sleeps for the block's real execution
// time: tests care about the sequence and the computed rates, not wall
// clock fidelity.
func (s *Simulator) RunUntilEmpty(maxSteps int) {
	for i := 0; i < maxSteps; i++ {
		if s.rb.Empty() {
			return
		}
		s.step()
	}
}

// Step executes exactly one block if one is available, reporting whether it
// did.
func (s *Simulator) Step() bool {
	if s.rb.Empty() {
		return false
	}
	s.step()
	return true
}

func (s *Simulator) step() {
	if s.idle && s.ReadyToStart != nil {
		for !s.ReadyToStart() {
			time.Sleep(time.Millisecond)
		}
	}
	s.idle = false

	tail := s.rb.Tail()
	s.rb.Latch()
	blk := s.rb.At(tail)

	s.Executed = append(s.Executed, ExecutedBlock{
		ID:             blk.ID,
		StepEventCount: blk.StepEventCount,
		InitialRate:    blk.InitialRate,
		NominalRate:    blk.NominalRate,
		FinalRate:      blk.FinalRate,
		SyncPosition:   blk.SyncPosition,
	})

	blk.SetBusy(false)
	s.rb.AdvanceTail()
	if s.rb.Empty() {
		s.idle = true
	}
}
