package machine

import (
	"context"
	"fmt"
	"sync"

	"github.com/pleasantmill/millctl/dda"
	"github.com/pleasantmill/millctl/point"
)

// NumWCS is the number of selectable work coordinate systems, G54-G59.
const NumWCS = 6

// Envelope describes the machine's physical travel limits in millimeters,
// matching MACHINE_MAX_X/Y/Z_MM in configuration.h.
type Envelope struct {
	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// DefaultEnvelope is the mill's working volume per the external
// interface contract: X in [0,180], Y in [0,145], Z in [0,80].
var DefaultEnvelope = Envelope{MaxX: 180, MaxY: 145, MaxZ: 80}

// Model is the shared machine state: the motion queue, absolute
// position, active units and coordinate system, and homing/endstop
// bookkeeping. It is the Go counterpart of sharedMachineModel.
type Model struct {
	Queue Queue

	mu                     sync.Mutex
	notEmpty               chan struct{}
	notFull                chan struct{}
	segAvail               chan struct{}
	units                  point.Units
	mmUnits                bool // true = millimeters, false = inches
	absolutePos            point.StepPoint
	localZero              point.FloatPoint
	wcs                    [NumWCS]point.FloatPoint
	activeWCS              int
	absolutePositionValid  bool
	envelope               Envelope
	endstops               dda.Endstops
	fatal                  bool
	fatalReason            string
	currentTool            int
}

// NewModel constructs a Model using the given steps-per-unit table
// (millimeters) and envelope.
func NewModel(mmUnits point.Units, envelope Envelope) *Model {
	m := &Model{
		units:    mmUnits,
		mmUnits:  true,
		envelope: envelope,
	}
	m.notEmpty = make(chan struct{}, 1)
	m.notFull = make(chan struct{}, 1)
	m.segAvail = make(chan struct{}, 1)
	m.notFull <- struct{}{}
	return m
}

// SetUnits switches between millimeters and inches, the equivalent of
// setUnits(isMM).
func (m *Model) SetUnits(mmUnits, inchUnits point.Units, mm bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mm {
		m.units = mmUnits
	} else {
		m.units = inchUnits
	}
	m.mmUnits = mm
}

// Units returns the active steps-per-unit table.
func (m *Model) Units() point.Units {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.units
}

func (m *Model) wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// WaitForEmpty blocks until the queue has drained or ctx is done,
// mirroring waitFor_qEmpty but expressed as a cooperative channel wait
// rather than a busy spin, per the design notes.
func (m *Model) WaitForEmpty(ctx context.Context) error {
	for {
		if m.Queue.Empty() {
			return nil
		}
		select {
		case <-m.notEmpty:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitForNotFull blocks until the queue has room or ctx is done,
// mirroring waitFor_qNotFull.
func (m *Model) WaitForNotFull(ctx context.Context) error {
	for {
		if !m.Queue.Full() {
			return nil
		}
		select {
		case <-m.notFull:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// QMove enqueues seg, waiting for room if necessary, then wakes a
// consumer blocked in NextSegment. It refuses the move while the
// machine is fatal. This is qMove from the spec's §4.2.
func (m *Model) QMove(ctx context.Context, seg *dda.Segment) error {
	if fatal, reason := m.Fatal(); fatal {
		return fmt.Errorf("machine: move refused while fatal: %s", reason)
	}
	if err := m.WaitForNotFull(ctx); err != nil {
		return err
	}
	if !m.Queue.Push(seg) {
		return fmt.Errorf("machine: queue push failed after wait")
	}
	m.wake(m.segAvail)
	return nil
}

// NextSegment blocks until a segment is available to run or ctx is
// done, then dequeues and returns it. This is the consumer side of the
// queue the runner goroutine drives the stepper engine from, the Go
// equivalent of the main loop polling the knot buffer for work.
func (m *Model) NextSegment(ctx context.Context) (*dda.Segment, bool) {
	for {
		if seg, ok := m.DQMove(); ok {
			return seg, true
		}
		select {
		case <-m.segAvail:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// DQMove dequeues the next segment for execution and wakes producers
// waiting on room (and WaitForEmpty callers once the queue is empty),
// mirroring dQMove's side effect on qFull callers.
func (m *Model) DQMove() (*dda.Segment, bool) {
	seg, ok := m.Queue.Pop()
	if ok {
		m.wake(m.notFull)
		if m.Queue.Empty() {
			m.wake(m.notEmpty)
		}
	}
	return seg, ok
}

// CancelAndClearQueue empties the queue, e.g. on an emergency stop or
// M112.
func (m *Model) CancelAndClearQueue() {
	m.Queue.Clear()
	m.wake(m.notFull)
	m.wake(m.notEmpty)
}

// CheckEndstops updates the live endstop bitmap and slaves the
// absolute position to it, mirroring checkEndstops: both ends of every
// linear axis are checked against the machine envelope, matching
// ENDSTOPS_MIN_ENABLED and ENDSTOPS_MAX_ENABLED both being set in the
// original firmware's configuration.h — the machine has six physical
// limit switches, not three.
func (m *Model) CheckEndstops(hit dda.EndstopFlag, liveSteps point.StepPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endstops.Hit = hit
	m.absolutePos = liveSteps

	minXSteps := int64(m.envelope.MinX * m.units.X)
	maxXSteps := int64(m.envelope.MaxX * m.units.X)
	minYSteps := int64(m.envelope.MinY * m.units.Y)
	maxYSteps := int64(m.envelope.MaxY * m.units.Y)
	minZSteps := int64(m.envelope.MinZ * m.units.Z)
	maxZSteps := int64(m.envelope.MaxZ * m.units.Z)
	if liveSteps.X < minXSteps {
		m.endstops.Hit |= dda.XLowHit
	}
	if liveSteps.X > maxXSteps {
		m.endstops.Hit |= dda.XHighHit
	}
	if liveSteps.Y < minYSteps {
		m.endstops.Hit |= dda.YLowHit
	}
	if liveSteps.Y > maxYSteps {
		m.endstops.Hit |= dda.YHighHit
	}
	if liveSteps.Z < minZSteps {
		m.endstops.Hit |= dda.ZLowHit
	}
	if liveSteps.Z > maxZSteps {
		m.endstops.Hit |= dda.ZHighHit
	}
}

// Endstops returns a snapshot of the endstop bitmap at the time of the
// call.
func (m *Model) Endstops() *dda.Endstops {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.endstops
	return &e
}

// liveEndstops re-reads Model's endstop bitmap on every CanStep call,
// so a segment mid-flight sees a limit switch trip as soon as the
// watcher goroutine reports it, rather than the snapshot Endstops()
// would freeze at plan time.
type liveEndstops struct{ m *Model }

func (l liveEndstops) CanStep(axis point.Axis, positive bool) bool {
	return l.m.Endstops().CanStep(axis, positive)
}

// LiveEndstops returns an EndstopChecker that consults the current
// endstop state on every step, the collaborator the queue runner and
// jog mover drive dda.Segment.Step with.
func (m *Model) LiveEndstops() dda.EndstopChecker {
	return liveEndstops{m: m}
}

// LivePosition returns the current machine position in the active
// local coordinate system and units, the equivalent of livePosition:
// from_steps(units, absolutePosition) - localZeroOffset, feedrate
// copied from the last commanded position.
func (m *Model) LivePosition(lastF float64) point.FloatPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.absolutePos.FromSteps(m.units)
	p = p.Sub(m.localZero)
	p.F = lastF
	return p
}

// AbsoluteSteps returns the raw absolute step position.
func (m *Model) AbsoluteSteps() point.StepPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.absolutePos
}

// SetLocalZero replaces the local zero offset with at. The G92
// arithmetic (offset += commanded position - requested value) is done
// by the caller, gcode.Executor's setLocalZero.
func (m *Model) SetLocalZero(at point.FloatPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localZero = at
}

// LocalZero returns the active local zero offset.
func (m *Model) LocalZero() point.FloatPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.localZero
}

// SwitchToWCS selects one of G54-G59 as the active work coordinate
// system, the equivalent of switchToWCS. It replaces localZeroOffset
// with the slot's stored offset outright rather than layering it on
// top of whatever G92 offset was active, and requires a completed
// homing cycle (absolutePositionValid) since the stored offsets are
// only meaningful relative to a known absolute position. It returns
// the change in localZeroOffset (old - new) so the caller can keep its
// own commanded-position bookkeeping invariant across the switch.
func (m *Model) SwitchToWCS(index int) (point.FloatPoint, error) {
	if index < 0 || index >= NumWCS {
		return point.FloatPoint{}, fmt.Errorf("machine: WCS index %d out of range", index)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.absolutePositionValid {
		return point.FloatPoint{}, fmt.Errorf("machine: cannot select work coordinate system before homing")
	}
	old := m.localZero
	next := m.wcs[index]
	m.localZero = next
	m.activeWCS = index
	return old.Sub(next), nil
}

// SetAbsolutePositionValid records whether absolutePosition currently
// reflects a known machine origin. It is set once a full homing cycle
// (G28 with no axes named) completes, and gates SwitchToWCS.
func (m *Model) SetAbsolutePositionValid(valid bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.absolutePositionValid = valid
}

// AbsolutePositionValid reports whether absolutePosition is currently
// trustworthy.
func (m *Model) AbsolutePositionValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.absolutePositionValid
}

// AnchorAxis forces the absolute step position and local zero offset
// of axis to the endstop-anchored value a homing cycle establishes (0
// for X/Y low, the envelope maximum for Z high), overriding whatever
// step count the jog sequence actually accumulated, so small
// ease-in/out rounding during the reapproach never drifts the defined
// origin.
func (m *Model) AnchorAxis(axis point.Axis, anchor float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	steps := int64(anchor*m.units.Get(axis) + 0.5)
	m.absolutePos = m.absolutePos.Set(axis, steps)
	m.localZero = m.localZero.Set(axis, anchor)
}

// ActiveWCS returns the currently selected work offset.
func (m *Model) ActiveWCS() (int, point.FloatPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeWCS, m.wcs[m.activeWCS]
}

// SetWCS stores a new offset for the given work coordinate system
// slot without necessarily making it active.
func (m *Model) SetWCS(index int, offset point.FloatPoint) error {
	if index < 0 || index >= NumWCS {
		return fmt.Errorf("machine: WCS index %d out of range", index)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wcs[index] = offset
	return nil
}

// WCSTable returns a copy of all six work coordinate system offsets,
// for persistence.
func (m *Model) WCSTable() [NumWCS]point.FloatPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wcs
}

// LoadWCSTable replaces all six work coordinate system offsets, used
// when restoring from persisted storage at startup.
func (m *Model) LoadWCSTable(t [NumWCS]point.FloatPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wcs = t
}

// SetFatal records a hard machine fault (e.g. a homing move that never
// saw its endstop), the equivalent of talkToHost.setFatal(). While it
// is set, QMove refuses further queued moves until ClearFatal.
func (m *Model) SetFatal(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fatal = true
	m.fatalReason = reason
}

// ClearFatal resets the fatal flag, e.g. after a manual reset.
func (m *Model) ClearFatal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fatal = false
	m.fatalReason = ""
}

// Fatal reports whether the machine is in a hard fault state, and why.
func (m *Model) Fatal() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fatal, m.fatalReason
}

// ManualToolChange records the active tool slot, the equivalent of
// manualToolChange.
func (m *Model) ManualToolChange(tool int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTool = tool
}

// CurrentTool returns the active tool slot.
func (m *Model) CurrentTool() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTool
}

// Envelope returns the configured travel envelope.
func (m *Model) Envelope() Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.envelope
}
