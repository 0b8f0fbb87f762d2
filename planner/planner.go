// Package planner implements the core of the motion planner: C4 move
// admission, C5 look-ahead recalculation, and C6 sync/control, operating
// over the C2 block records held in a C3 ring buffer. See spec.md §4 for
// every formula reproduced here.
package planner

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onekk/gplanner/block"
	"github.com/onekk/gplanner/extruder"
	"github.com/onekk/gplanner/internal/lock"
	"github.com/onekk/gplanner/internal/logger"
	"github.com/onekk/gplanner/kinematics"
	"github.com/onekk/gplanner/ringbuf"
)

// LevelingTransform and RetractTransform are the two position modifiers
// named in spec.md §4.3 step 1. Both are out-of-scope collaborators; a nil
// transform is the identity.
type LevelingTransform func(x, y, z float64) (float64, float64, float64)
type RetractTransform func(extruderIdx int, e float64) float64

// Planner owns every field the look-ahead algorithm touches. The host
// injects the kinematic model, the extruder table, and (optionally) the
// position modifiers at construction, per the Design Note in spec.md §9
// ("bundle all fields into one Planner value owned by the host").
type Planner struct {
	model     kinematics.Model
	extruders *extruder.Table
	cfg       Config
	rb        *ringbuf.Buffer
	diag      *diagnostics

	Leveling LevelingTransform
	Retract  RetractTransform

	// Now is the injectable clock; defaults to time.Now so tests can use a
	// fake clock to exercise the clean-buffer window deterministically.
	Now func() time.Time

	mu sync.Mutex // guards the fields below; admission is single-producer
	// but buffer_line, buffer_sync_block and set_position are all called
	// from the same planner flow, so this is a convenience lock, not the
	// SPSC handshake (that lives entirely in ringbuf).

	positionSteps [4]int64
	positionMM    [4]float64
	prevUnit      [4]float64
	havePrevUnit  bool

	// prevNominalSpeedSqr is the previous real block's NominalSpeedSqr,
	// tracked alongside prevUnit so maxEntrySpeedSqr can enforce spec.md
	// §4.3 step 10's "upper-bound by min(nominal_speed_sqr,
	// previous.nominal_speed_sqr)" (also P5): a fast move can never enter a
	// junction faster than the slower block ahead of it ever travels.
	prevNominalSpeedSqr float64

	cleanBufferUntil atomic.Int64 // unix nanos; 0 means not armed

	// firstMoveDeadline is BLOCK_DELAY_FOR_1ST_MOVE (spec.md §4.3 step 13):
	// armed whenever a block is committed to a previously-empty queue, so
	// the step generator can hold off latching that first block for a
	// moment and give look-ahead a chance to chain a few more moves behind
	// it before execution starts. quick_stop resets it (spec.md §4.6).
	firstMoveDeadline atomic.Int64 // unix nanos; 0 means not armed
}

// New constructs a Planner. cfg's zero-valued fields are filled from
// sensible defaults (spec.md §6 configuration surface).
func New(model kinematics.Model, extruders *extruder.Table, cfg Config) (*Planner, error) {
	if err := ValidateModel(model); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	p := &Planner{
		model:               model,
		extruders:           extruders,
		cfg:                 cfg,
		rb:                  ringbuf.New(cfg.RingCapacity),
		diag:                newDiagnostics(),
		Now:                 time.Now,
		prevNominalSpeedSqr: math.Inf(1),
	}
	return p, nil
}

func (p *Planner) RingBuffer() *ringbuf.Buffer { return p.rb }

// BlockDelayFor1stMove reports the configured BLOCK_DELAY_FOR_1ST_MOVE
// (spec.md §4.3 step 13), for a step-generator flow that wants to know how
// long FirstMoveReady might hold it off.
func (p *Planner) BlockDelayFor1stMove() time.Duration { return p.cfg.BlockDelayFor1stMove }

// PositionSteps returns a copy of the canonical step-generator position
// (spec.md §3 invariant I1).
func (p *Planner) PositionSteps() [4]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionSteps
}

// AxisPositionMM reports the current commanded position of one axis in mm,
// for host status reporting (spec.md §6 upstream contract).
func (p *Planner) AxisPositionMM(axis int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.positionSteps[axis]) * p.model.Axes[axis].StepsToMM()
}

func (p *Planner) cleanBufferActive() bool {
	until := p.cleanBufferUntil.Load()
	if until == 0 {
		return false
	}
	return p.Now().UnixNano() < until
}

func (p *Planner) armCleanBuffer(d time.Duration) {
	p.cleanBufferUntil.Store(p.Now().Add(d).UnixNano())
}

// FirstMoveReady reports whether BLOCK_DELAY_FOR_1ST_MOVE has elapsed since
// the queue last went from empty to non-empty, or true if no delay is
// currently armed. The step generator's flow is expected to consult this
// before latching a block off an otherwise-idle queue.
func (p *Planner) FirstMoveReady() bool {
	deadline := p.firstMoveDeadline.Load()
	if deadline == 0 {
		return true
	}
	return p.Now().UnixNano() >= deadline
}

func (p *Planner) armFirstMoveDelay() {
	d := p.cfg.BlockDelayFor1stMove
	if d <= 0 {
		p.firstMoveDeadline.Store(0)
		return
	}
	p.firstMoveDeadline.Store(p.Now().Add(d).UnixNano())
}

func (p *Planner) resetFirstMoveDelay() {
	p.firstMoveDeadline.Store(0)
}

// admissionMove carries the geometric/kinematic facts computed while
// filling one block, threaded between buffer_segment, buffer_steps and
// fill_block without yet being committed to the ring buffer.
type admissionMove struct {
	id          string
	targetSteps [4]int64
	deltaSteps  [4]int64
	deltaMM     [4]float64
	headDeltaMM [4]float64
	unit        [4]float64
	millimeters float64
	feedrate    float64
	extruderIdx int
	maxAccel    [4]float64 // per-axis mm/s^2 ceiling (a,b,c from model, e from extruder table)
}

// BufferLine is the external entry point named in spec.md §6: it applies
// the position modifiers, transforms to machine axes, and admits the move.
// It returns false only when the clean-buffer flag (post quick_stop) is
// set; an absorbed-but-tiny move still returns true.
func (p *Planner) BufferLine(rx, ry, rz, e, frMMs float64, extruderIdx int, mmHint float64) bool {
	if p.cleanBufferActive() {
		return false
	}

	x, y, z := rx, ry, rz
	if p.Leveling != nil {
		x, y, z = p.Leveling(x, y, z)
	}
	if p.Retract != nil {
		e = p.Retract(extruderIdx, e)
	}

	axesTarget := p.model.Kind.ToAxes(x, y, z, e)
	return p.BufferSegment(axesTarget, frMMs, extruderIdx, mmHint)
}

// BufferSegment is C4's middle tier: it takes an already machine-axis
// target (a, b, c, e) and converts it to integer step targets.
func (p *Planner) BufferSegment(axesTarget [4]float64, frMMs float64, extruderIdx int, mmHint float64) bool {
	p.mu.Lock()
	var targetSteps [4]int64
	for i := 0; i < 4; i++ {
		targetSteps[i] = int64(math.Round(axesTarget[i] * p.model.Axes[i].StepsPerMM))
	}
	p.mu.Unlock()
	return p.BufferSteps(targetSteps, frMMs, extruderIdx, mmHint)
}

// BufferSteps is C4's innermost tier: admission steps 3-14 of spec.md §4.3,
// operating directly on integer step targets.
func (p *Planner) BufferSteps(targetSteps [4]int64, frMMs float64, extruderIdx int, mmHint float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cleanBufferActive() {
		return false
	}

	mv := &admissionMove{id: shortID(), extruderIdx: extruderIdx, feedrate: frMMs}
	mv.targetSteps = targetSteps
	for i := 0; i < 4; i++ {
		mv.deltaSteps[i] = targetSteps[i] - p.positionSteps[i]
	}

	extCfg, haveExt := p.extruders.Get(extruderIdx)

	// Step 4: reject/absorb conditions.
	if mv.deltaSteps[kinematics.E] != 0 && haveExt {
		deltaEMM := float64(mv.deltaSteps[kinematics.E]) * p.model.Axes[kinematics.E].StepsToMM()
		if extCfg.IsCold() {
			p.diag.logColdExtrude(mv.id, extruderIdx)
			p.positionSteps[kinematics.E] = targetSteps[kinematics.E]
			mv.deltaSteps[kinematics.E] = 0
		} else if extCfg.OverLong(deltaEMM) {
			p.diag.logOverLong(mv.id, deltaEMM)
			p.positionSteps[kinematics.E] = targetSteps[kinematics.E]
			mv.deltaSteps[kinematics.E] = 0
		}
	}

	absMax := func(a, b, c int64) int64 {
		m := absI64(a)
		if absI64(b) > m {
			m = absI64(b)
		}
		if absI64(c) > m {
			m = absI64(c)
		}
		return m
	}
	geomMax := absMax(mv.deltaSteps[kinematics.A], mv.deltaSteps[kinematics.B], mv.deltaSteps[kinematics.C])
	if geomMax < int64(p.cfg.MinStepsPerSegment) && absI64(mv.deltaSteps[kinematics.E]) < int64(p.cfg.MinStepsPerSegment) {
		p.diag.logTinyMove(mv.id, uint32(math.Max(float64(geomMax), math.Abs(float64(mv.deltaSteps[kinematics.E])))))
		return true
	}

	for i := 0; i < 4; i++ {
		mv.deltaMM[i] = float64(mv.deltaSteps[i]) * p.model.Axes[i].StepsToMM()
	}
	mv.headDeltaMM = p.model.Kind.HeadDeltaMM(mv.deltaMM)

	// Step 5: millimeters.
	if mmHint > 0 {
		mv.millimeters = mmHint
	} else {
		geomLenSqr := mv.headDeltaMM[kinematics.A]*mv.headDeltaMM[kinematics.A] +
			mv.headDeltaMM[kinematics.B]*mv.headDeltaMM[kinematics.B] +
			mv.headDeltaMM[kinematics.C]*mv.headDeltaMM[kinematics.C]
		if geomLenSqr > 0 {
			mv.millimeters = math.Sqrt(geomLenSqr)
		} else {
			mv.millimeters = math.Abs(mv.deltaMM[kinematics.E])
		}
	}
	if mv.millimeters <= 0 {
		// Zero-length move: nothing to queue, nothing to reject either.
		return true
	}

	// Step 6: clamp feedrate below the configured minimum.
	isExtruding := mv.deltaSteps[kinematics.E] != 0
	minFeed := p.cfg.MinTravelFeedrateMMs
	if isExtruding {
		minFeed = p.cfg.MinFeedrateMMs
	}
	if mv.feedrate < minFeed {
		mv.feedrate = minFeed
	}

	for i := 0; i < 4; i++ {
		mv.unit[i] = mv.headDeltaMM[i] / mv.millimeters
	}

	blk, _, ok := p.reserveWithBackpressure()
	if !ok {
		return false
	}
	blk.Reset()
	blk.ID = mv.id
	for i := 0; i < 4; i++ {
		blk.Steps[i] = uint32(absI64(mv.deltaSteps[i]))
	}
	blk.StepEventCount = maxU32(blk.Steps[0], blk.Steps[1], blk.Steps[2], blk.Steps[3])
	blk.MillimetersVal = mv.millimeters
	blk.NominalSpeedSqr = mv.feedrate * mv.feedrate
	blk.NominalRate = ceilRate(blk.StepEventCount, mv.feedrate, mv.millimeters)
	setDirectionBits(blk, mv)

	// Step 8: per-axis feedrate cap.
	p.applyFeedrateCap(blk, mv)

	// Step 9: effective acceleration.
	mv.maxAccel = p.maxAccelVector(extruderIdx)
	p.applyAcceleration(blk, mv)

	// Step 10: max_entry_speed_sqr.
	blk.MaxEntrySpeedSqr = p.maxEntrySpeedSqr(mv)

	// Step 11/12: entry speed, flags.
	minSqr := p.cfg.minimumPlannerSpeedSqr()
	blk.EntrySpeedSqr = minSqr
	blk.Recalculate = true
	blk.NominalLength = blk.NominalSpeedSqr <= block.MaxAllowableSpeedSqr(-blk.AccelerationMMs2, minSqr, blk.MillimetersVal)

	// Step 13: commit.
	p.positionSteps = targetSteps
	for i := 0; i < 4; i++ {
		p.positionMM[i] += mv.deltaMM[i]
	}
	p.prevUnit = mv.unit
	p.havePrevUnit = true
	p.prevNominalSpeedSqr = blk.NominalSpeedSqr

	wasEmpty := p.rb.Empty()
	p.rb.Commit()
	if wasEmpty {
		p.armFirstMoveDelay()
	}

	p.applySlowdown(blk)

	// Step 14.
	p.recalculateLocked()
	return true
}

// reserveWithBackpressure implements the queue-full back-pressure from
// spec.md §5/§7: buffer_line never fails on a full queue, it spins (with a
// scheduler yield) until room exists.
func (p *Planner) reserveWithBackpressure() (*block.Block, uint32, bool) {
	for {
		if p.cleanBufferActive() {
			return nil, 0, false
		}
		blk, idx, ok := p.rb.Reserve()
		if ok {
			return blk, idx, true
		}
		p.mu.Unlock()
		yieldIdle()
		p.mu.Lock()
	}
}

func absI64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxU32(vs ...uint32) uint32 {
	m := uint32(0)
	for _, v := range vs {
		if v > m {
			m = v
		}
	}
	return m
}

func ceilRate(stepEventCount uint32, feedrate, millimeters float64) uint32 {
	if millimeters <= 0 {
		return block.MinimalStepRate
	}
	r := math.Ceil(float64(stepEventCount) * feedrate / millimeters)
	if r < block.MinimalStepRate {
		r = block.MinimalStepRate
	}
	return uint32(r)
}

func setDirectionBits(blk *block.Block, mv *admissionMove) {
	var d block.DirBits
	if mv.deltaSteps[kinematics.A] > 0 {
		d |= block.DirA
	}
	if mv.deltaSteps[kinematics.B] > 0 {
		d |= block.DirB
	}
	if mv.deltaSteps[kinematics.C] > 0 {
		d |= block.DirC
	}
	if mv.deltaSteps[kinematics.E] > 0 {
		d |= block.DirE
	}
	if mv.headDeltaMM[kinematics.A] > 0 {
		d |= block.DirHeadX
	}
	if mv.headDeltaMM[kinematics.B] > 0 {
		d |= block.DirHeadY
	}
	blk.DirectionBits = d
}

func (p *Planner) applyFeedrateCap(blk *block.Block, mv *admissionMove) {
	shrink := 1.0
	limitAxis := -1
	for i := 0; i < 4; i++ {
		if mv.deltaMM[i] == 0 {
			continue
		}
		currentSpeed := mv.deltaMM[i] * (mv.feedrate / mv.millimeters)
		limit := p.axisMaxFeedrate(i, mv.extruderIdx)
		if limit <= 0 {
			continue
		}
		if math.Abs(currentSpeed) > limit {
			factor := limit / math.Abs(currentSpeed)
			if factor < shrink {
				shrink = factor
				limitAxis = i
			}
		}
	}
	if shrink < 1.0 {
		mv.feedrate *= shrink
		blk.NominalSpeedSqr = mv.feedrate * mv.feedrate
		blk.NominalRate = ceilRate(blk.StepEventCount, mv.feedrate, mv.millimeters)
		logger.Debugf("move %s: feedrate clamped to %.3f mm/s by axis %s",
			mv.id, mv.feedrate, "abce"[limitAxis:limitAxis+1])
	}
}

func (p *Planner) axisMaxFeedrate(axis, extruderIdx int) float64 {
	if axis == kinematics.E {
		if cfg, ok := p.extruders.Get(extruderIdx); ok && cfg.MaxFeedrateMMs > 0 {
			return cfg.MaxFeedrateMMs
		}
	}
	return p.model.Axes[axis].MaxFeedrateMMs
}

func (p *Planner) maxAccelVector(extruderIdx int) [4]float64 {
	var v [4]float64
	for i := 0; i < 3; i++ {
		v[i] = p.model.Axes[i].MaxAccelerationMMs2
	}
	if cfg, ok := p.extruders.Get(extruderIdx); ok && cfg.MaxAccelerationMMs2 > 0 {
		v[kinematics.E] = cfg.MaxAccelerationMMs2
	} else {
		v[kinematics.E] = p.model.Axes[kinematics.E].MaxAccelerationMMs2
	}
	return v
}

func (p *Planner) applyAcceleration(blk *block.Block, mv *admissionMove) {
	isExtruding := mv.deltaSteps[kinematics.E] != 0
	geomMoves := mv.deltaSteps[kinematics.A] != 0 || mv.deltaSteps[kinematics.B] != 0 || mv.deltaSteps[kinematics.C] != 0

	accel := p.cfg.TravelAcceleration
	if isExtruding {
		accel = p.cfg.PrintAcceleration
	}
	if !geomMoves {
		accel = p.cfg.RetractAcceleration
	}
	if accel <= 0 {
		accel = minNonZero(mv.maxAccel[:]...)
	}

	for i := 0; i < 4; i++ {
		if blk.Steps[i] == 0 {
			continue
		}
		stepsPerMM := p.model.Axes[i].StepsPerMM
		if stepsPerMM <= 0 {
			continue
		}
		maxAccelStepsPerS2 := mv.maxAccel[i] * stepsPerMM
		perAxisCap := maxAccelStepsPerS2 * float64(blk.StepEventCount) / float64(blk.Steps[i])
		perAxisCapMMs2 := perAxisCap / stepsPerMM
		if perAxisCapMMs2 < accel {
			accel = perAxisCapMMs2
		}
	}

	blk.AccelerationMMs2 = accel
	// mm/s^2 along the path converts to steps/s^2 of the Bresenham master
	// count by the ratio step_event_count/millimeters, rather than picking
	// one axis's steps_per_mm.
	if blk.MillimetersVal > 0 {
		blk.AccelerationStepsPerS2 = accel * float64(blk.StepEventCount) / blk.MillimetersVal
	}
}

func minNonZero(vs ...float64) float64 {
	m := math.Inf(1)
	for _, v := range vs {
		if v > 0 && v < m {
			m = v
		}
	}
	if math.IsInf(m, 1) {
		return 0
	}
	return m
}

// yieldIdle is the scheduler hint used by every spin-wait in this package
// (spec.md §5 suspension points), called through the package variable
// yieldIdleFn.
var yieldIdleFn = lock.Yield

func yieldIdle() { yieldIdleFn() }
