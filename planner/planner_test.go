package planner

import (
	"testing"
	"time"

	"github.com/onekk/gplanner/extruder"
	"github.com/onekk/gplanner/kinematics"
	"github.com/onekk/gplanner/stepgen"
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	model := validModel()
	table := &extruder.Table{Extruders: []extruder.Config{{
		AxisLimits: model.Axes[kinematics.E],
	}}}
	p, err := New(model, table, Config{RingCapacity: 8, MinStepsPerSegment: 6})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestBufferLineAdmitsSimpleMove(t *testing.T) {
	p := newTestPlanner(t)
	if ok := p.BufferLine(10, 0, 0, 0, 50, 0, 0); !ok {
		t.Fatalf("BufferLine rejected an ordinary move")
	}
	if p.RingBuffer().Empty() {
		t.Fatalf("expected a block to have been queued")
	}
	pos := p.PositionSteps()
	if pos[kinematics.A] == 0 {
		t.Fatalf("position_steps.a should have advanced")
	}
}

func TestTinyMoveAbsorbedWithoutQueuing(t *testing.T) {
	p := newTestPlanner(t)
	// 80 steps/mm, threshold 6 steps => well under 0.05mm moves nothing.
	if ok := p.BufferLine(0.01, 0, 0, 0, 50, 0, 0); !ok {
		t.Fatalf("a tiny move should be absorbed, not rejected")
	}
	if !p.RingBuffer().Empty() {
		t.Fatalf("a tiny move should not have queued a block")
	}
}

func TestColdExtrudeAbsorbsPositionWithoutQueuing(t *testing.T) {
	p := newTestPlanner(t)
	p.extruders.Extruders[0].MinExtrudeTempC = 180
	p.extruders.Extruders[0].Temperature = 25

	if ok := p.BufferLine(0, 0, 0, 5, 10, 0, 0); !ok {
		t.Fatalf("a cold extrude should be absorbed, not rejected")
	}
	if !p.RingBuffer().Empty() {
		t.Fatalf("a cold, pure-extrude move should not have queued a block")
	}
	pos := p.PositionSteps()
	wantSteps := int64(5 * p.model.Axes[kinematics.E].StepsPerMM)
	if pos[kinematics.E] != wantSteps {
		t.Fatalf("position_steps.e = %d, want %d (cold extrude still advances position)", pos[kinematics.E], wantSteps)
	}
}

func TestOverLongExtrudeAbsorbedAlongsideGeometricMove(t *testing.T) {
	p := newTestPlanner(t)
	p.extruders.Extruders[0].MaxExtrudeLengthMM = 1

	if ok := p.BufferLine(10, 0, 0, 50, 50, 0, 0); !ok {
		t.Fatalf("BufferLine rejected")
	}
	if p.RingBuffer().Empty() {
		t.Fatalf("the geometric part of the move should still have queued a block")
	}
	blk := p.RingBuffer().At(p.RingBuffer().Prev(p.RingBuffer().Head()))
	if blk.Steps[kinematics.E] != 0 {
		t.Fatalf("over-long extrude should have been absorbed out of the queued block, got %d steps", blk.Steps[kinematics.E])
	}
	pos := p.PositionSteps()
	wantSteps := int64(50 * p.model.Axes[kinematics.E].StepsPerMM)
	if pos[kinematics.E] != wantSteps {
		t.Fatalf("position_steps.e = %d, want %d", pos[kinematics.E], wantSteps)
	}
}

func TestQuickStopClearsQueueAndArmsCleanWindow(t *testing.T) {
	p := newTestPlanner(t)
	now := time.Unix(1000, 0)
	p.Now = func() time.Time { return now }

	p.BufferLine(10, 0, 0, 0, 50, 0, 0)
	p.BufferLine(20, 0, 0, 0, 50, 0, 0)
	if p.RingBuffer().Empty() {
		t.Fatalf("setup: expected queued blocks before quick_stop")
	}

	p.QuickStop()
	if !p.RingBuffer().Empty() {
		t.Fatalf("QuickStop should clear the queue")
	}
	if ok := p.BufferLine(30, 0, 0, 0, 50, 0, 0); ok {
		t.Fatalf("BufferLine should be refused during the post-quick_stop window")
	}

	now = now.Add(p.cfg.BlockDelayFor1stMove + time.Millisecond)
	if ok := p.BufferLine(30, 0, 0, 0, 50, 0, 0); !ok {
		t.Fatalf("BufferLine should succeed once the clean-buffer window has elapsed")
	}
}

func TestSynchronizeReturnsOnceDrained(t *testing.T) {
	p := newTestPlanner(t)
	p.BufferLine(10, 0, 0, 0, 50, 0, 0)
	p.BufferLine(20, 10, 0, 0, 50, 0, 0)

	sim := stepgen.New(p.RingBuffer())
	sim.RunUntilEmpty(100)

	done := make(chan struct{})
	go func() {
		p.Synchronize()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Synchronize did not return after the buffer drained")
	}
}

func TestBufferSyncBlockCarriesPositionSnapshot(t *testing.T) {
	p := newTestPlanner(t)
	p.SetPositionMM(kinematics.A, 42)

	if ok := p.BufferSyncBlock(); !ok {
		t.Fatalf("BufferSyncBlock rejected")
	}
	if p.RingBuffer().Empty() {
		t.Fatalf("BufferSyncBlock should have queued a block")
	}
	blk := p.RingBuffer().At(p.RingBuffer().Tail())
	if !blk.SyncPosition {
		t.Fatalf("queued block should be a sync block")
	}
	wantSteps := int64(42 * p.model.Axes[kinematics.A].StepsPerMM)
	if blk.SyncPositionSteps[kinematics.A] != wantSteps {
		t.Fatalf("SyncPositionSteps.a = %d, want %d", blk.SyncPositionSteps[kinematics.A], wantSteps)
	}
}
