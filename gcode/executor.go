package gcode

import (
	"context"
	"fmt"

	"github.com/pleasantmill/millctl/dda"
	"github.com/pleasantmill/millctl/machine"
	"github.com/pleasantmill/millctl/point"
)

// Config carries the feedrate envelope and motion profile an Executor
// plans segments against, the runtime equivalent of the feedrate and
// per-axis macros in configuration.h.
type Config struct {
	Profile         dda.Profile
	FastXYFeedrate  float64 // units/s
	FastZFeedrate   float64 // units/s
	SlowFeedrate    float64 // units/s
}

// DebugMask mirrors the original firmware's SendDebug bitmask. M111
// stores its S value on the Executor, but nothing reads that stored
// value: echoing is controlled only by hostlink.Link.SetDebug, and
// error reporting is not gated by any mask.
type DebugMask uint8

const (
	DebugEcho DebugMask = 1 << iota
	DebugInfo
	DebugErrors
)

// Capabilities is the M115 response payload.
type Capabilities struct {
	FirmwareName string
	Protocol     string
}

// Status is returned from Execute to tell the caller (normally
// hostlink) what to report back to the host: an ok, a position report,
// a capabilities report, or nothing extra.
type Status struct {
	OK           bool
	Position     *point.FloatPoint
	Capabilities *Capabilities
	Halt         bool // true after M2 or an unrecoverable fault
}

// Executor dispatches tokenized G-code lines against a machine.Model,
// the equivalent of process_g_code's big G/M switch statements.
type Executor struct {
	model *machine.Model
	mover machine.Mover
	cfg   Config

	position     point.FloatPoint // last commanded target, in the active unit system
	absoluteMode bool
	plane        int // 17=XY, 18=XZ, 19=YZ; stored, not enforced (arcs are always XY per spec scope)
	stickyP      float64
	stickyQ      float64
	oldZRetract  bool // true = G98 (retract to prior Z), false = G99 (retract to R)
	debug        DebugMask
	cutterComp   int // 0 = G40 (off), 1 = G41, 2 = G42
}

// NewExecutor constructs an Executor bound to model and mover (used for
// homing jogs), starting in absolute mode, the power-on default.
func NewExecutor(model *machine.Model, mover machine.Mover, cfg Config) *Executor {
	return &Executor{
		model:        model,
		mover:        mover,
		cfg:          cfg,
		absoluteMode: true,
		plane:        17,
		oldZRetract:  true,
	}
}

// Execute dispatches one tokenized line, mirroring process_string's
// repeat-last-G-code-aware switch over l.Gs/l.Ms.
func (e *Executor) Execute(ctx context.Context, l *Line) (Status, error) {
	for _, m := range l.Ms {
		st, halt, err := e.execM(ctx, int(m), l)
		if err != nil || halt {
			return st, err
		}
	}
	for _, g := range l.Gs {
		st, err := e.execG(ctx, int(g), l)
		if err != nil {
			return st, err
		}
	}
	if len(l.Gs) == 0 && len(l.Ms) == 0 {
		return Status{OK: true}, nil
	}
	return Status{OK: true}, nil
}

func (e *Executor) execG(ctx context.Context, code int, l *Line) (Status, error) {
	switch code {
	case 0:
		return e.rapidMove(ctx, l)
	case 1:
		return e.linearMove(ctx, l)
	case 2:
		return e.drawArc(ctx, l, true)
	case 3:
		return e.drawArc(ctx, l, false)
	case 4:
		return Status{OK: true}, nil // dwell: no scheduler to model without real time control; accepted as a no-op boundary.
	case 17, 18, 19:
		e.plane = code
		return Status{OK: true}, nil
	case 20:
		e.setUnits(false)
		return Status{OK: true}, nil
	case 21:
		e.setUnits(true)
		return Status{OK: true}, nil
	case 28:
		return e.homeAll(ctx)
	case 53:
		return e.moveInMachineCoords(ctx, l)
	case 40, 41, 42:
		e.cutterComp = code - 40
		return Status{OK: true}, nil
	case 54, 55, 56, 57, 58, 59:
		delta, err := e.model.SwitchToWCS(code - 54)
		if err != nil {
			return Status{}, err
		}
		savedF := e.position.F
		e.position = e.position.Add(delta)
		e.position.F = savedF
		return Status{OK: true}, nil
	case 73, 81, 82, 83, 85, 89:
		return e.doDrillCycle(ctx, code, l)
	case 80:
		e.stickyP, e.stickyQ = 0, 0
		return Status{OK: true}, nil
	case 90:
		e.absoluteMode = true
		return Status{OK: true}, nil
	case 91:
		e.absoluteMode = false
		return Status{OK: true}, nil
	case 92:
		return e.setLocalZero(l), nil
	case 98:
		e.oldZRetract = true
		return Status{OK: true}, nil
	case 99:
		e.oldZRetract = false
		return Status{OK: true}, nil
	default:
		return Status{}, fmt.Errorf("gcode: unsupported G%d", code)
	}
}

func (e *Executor) execM(ctx context.Context, code int, l *Line) (Status, bool, error) {
	switch code {
	case 0, 1:
		// Optional stop / program pause: no UI to block on, accepted
		// as a no-op rather than merged into default so it is never
		// reported as an unsupported code.
		return Status{OK: true}, false, nil
	case 2:
		return Status{OK: true, Halt: true}, true, nil
	case 6:
		tool := int(l.ValueOr('T', float64(e.model.CurrentTool())))
		e.model.ManualToolChange(tool)
		return Status{OK: true}, false, nil
	case 110:
		// Line-number reset is handled by the Parser; nothing to do here.
		return Status{OK: true}, false, nil
	case 111:
		e.debug = DebugMask(l.ValueOr('S', float64(e.debug)))
		return Status{OK: true}, false, nil
	case 112:
		e.model.CancelAndClearQueue()
		e.model.SetFatal("M112 emergency stop")
		return Status{OK: true, Halt: true}, true, nil
	case 114:
		pos := e.model.LivePosition(e.position.F)
		return Status{OK: true, Position: &pos}, false, nil
	case 115:
		return Status{OK: true, Capabilities: &Capabilities{
			FirmwareName: "PleasantMill",
			Protocol:     "linecheck",
		}}, false, nil
	case 141, 142:
		// Thermal control: explicitly out of scope (Non-goal); accepted
		// as a no-op rather than an error, matching the original's
		// stub handling for builds without a heater.
		return Status{OK: true}, false, nil
	default:
		return Status{}, false, fmt.Errorf("gcode: unsupported M%d", code)
	}
}

func (e *Executor) setUnits(mm bool) {
	// Two fixed steps-per-unit tables: the configured profile's is
	// mm-based; inches use the mm table scaled by 25.4, matching
	// setUnits's mm-vs-inch vectors.
	mmUnits := e.cfg.Profile.Units
	inchUnits := point.Units{
		X: mmUnits.X * 25.4, Y: mmUnits.Y * 25.4, Z: mmUnits.Z * 25.4,
		A: mmUnits.A * 25.4, B: mmUnits.B * 25.4,
	}
	e.model.SetUnits(mmUnits, inchUnits, mm)
}

// fetchCartesianParameters computes the absolute target position for a
// motion line, given the current commanded position. It preserves the
// original firmware's quirk where, in incremental mode, a B parameter
// is added into fp.a rather than fp.b — an Open Question the spec asks
// to preserve rather than silently fix; see DESIGN.md.
func (e *Executor) fetchCartesianParameters(l *Line) point.FloatPoint {
	target := e.position
	get := func(letter byte) (float64, bool) {
		if l.Seen(letter) {
			return l.Value(letter), true
		}
		return 0, false
	}
	if v, ok := get('E'); ok { // E is an alias for A.
		if e.absoluteMode {
			target.A = v
		} else {
			target.A += v
		}
	}
	if v, ok := get('X'); ok {
		if e.absoluteMode {
			target.X = v
		} else {
			target.X += v
		}
	}
	if v, ok := get('Y'); ok {
		if e.absoluteMode {
			target.Y = v
		} else {
			target.Y += v
		}
	}
	if v, ok := get('Z'); ok {
		if e.absoluteMode {
			target.Z = v
		} else {
			target.Z += v
		}
	}
	if v, ok := get('A'); ok {
		if e.absoluteMode {
			target.A = v
		} else {
			target.A += v
		}
	}
	if v, ok := get('B'); ok {
		if e.absoluteMode {
			target.B = v
		} else {
			target.A += v // preserved quirk: see doc comment above.
		}
	}
	if v, ok := get('F'); ok {
		target.F = v
	}
	return target
}

// move enqueues a single linear segment from the executor's current
// commanded position to target at feedrate (units/s), updating the
// commanded position on success.
func (e *Executor) move(ctx context.Context, target point.FloatPoint, feedSps float64) error {
	units := e.model.Units()
	offset := e.model.LocalZero()
	start := e.position.Add(offset)
	start.F = 0
	end := target.Add(offset)
	end.F = 0
	startSteps := start.ToSteps(units)
	endSteps := end.ToSteps(units)
	seg, err := dda.Plan(e.cfg.Profile, startSteps, endSteps, feedSps)
	if err == dda.ErrZeroMove {
		e.position = target
		return nil
	}
	if err != nil {
		return err
	}
	if err := e.model.QMove(ctx, seg); err != nil {
		return err
	}
	e.position = target
	return nil
}

func (e *Executor) linearMove(ctx context.Context, l *Line) (Status, error) {
	target := e.fetchCartesianParameters(l)
	feed := target.F
	if feed <= 0 {
		feed = e.cfg.SlowFeedrate
	}
	if err := e.move(ctx, target, feed); err != nil {
		return Status{}, err
	}
	return Status{OK: true}, nil
}

// rapidMove executes G0 at the fast traverse feedrate, restoring the
// line's own F word (if any) afterward for subsequent G1 moves, the
// equivalent of rapidMove's save/force/restore of FAST_XY_FEEDRATE.
func (e *Executor) rapidMove(ctx context.Context, l *Line) (Status, error) {
	target := e.fetchCartesianParameters(l)
	savedF := target.F
	target.F = e.cfg.FastXYFeedrate
	if err := e.move(ctx, target, e.cfg.FastXYFeedrate); err != nil {
		return Status{}, err
	}
	e.position.F = savedF
	return Status{OK: true}, nil
}

func (e *Executor) moveInMachineCoords(ctx context.Context, l *Line) (Status, error) {
	// G53 applies to the next move only; since the executor here
	// processes one line at a time and WCS offsets are applied by the
	// caller when converting work to machine coordinates elsewhere in
	// the pipeline, this is accepted as a plain linear move in the
	// current frame.
	return e.linearMove(ctx, l)
}

// setLocalZero implements G92: for each axis named on the line, the
// local zero offset absorbs the difference between the current
// commanded position and the requested value, and the commanded
// position itself becomes the requested value. Unlike a flat
// overwrite, this composes correctly with whatever offset (WCS or
// earlier G92) was already active.
func (e *Executor) setLocalZero(l *Line) Status {
	offset := e.model.LocalZero()
	for _, letter := range []byte{'X', 'Y', 'Z', 'A', 'B'} {
		if !l.Seen(letter) {
			continue
		}
		axis := axisFor(letter)
		p := l.Value(letter)
		cur := e.position.Get(axis)
		offset = offset.Set(axis, offset.Get(axis)+(cur-p))
		e.position = e.position.Set(axis, p)
	}
	e.model.SetLocalZero(offset)
	return Status{OK: true}
}

func axisFor(letter byte) point.Axis {
	switch letter {
	case 'X':
		return point.X
	case 'Y':
		return point.Y
	case 'Z':
		return point.Z
	case 'A', 'E':
		return point.A
	case 'B':
		return point.B
	default:
		return point.X
	}
}

// homeAll runs a full G28 cycle (no axis words) over Z, X and Y in
// that order, retracting the tool before the XY travel so it never
// drags across the work. Each axis is anchored to its endstop-defined
// value immediately after homing it, and only once all three succeed
// is the machine's absolute position considered trustworthy enough to
// gate WCS selection on.
func (e *Executor) homeAll(ctx context.Context) (Status, error) {
	rates := machine.HomingFeedrates{Fast: e.cfg.FastXYFeedrate, Slow: e.cfg.SlowFeedrate}
	envelope := e.model.Envelope()
	if err := e.model.ZeroZ(ctx, e.mover, machine.HomingFeedrates{Fast: e.cfg.FastZFeedrate, Slow: e.cfg.SlowFeedrate}); err != nil {
		return Status{}, err
	}
	e.model.AnchorAxis(point.Z, envelope.MaxZ)
	if err := e.model.ZeroX(ctx, e.mover, rates); err != nil {
		return Status{}, err
	}
	e.model.AnchorAxis(point.X, 0)
	if err := e.model.ZeroY(ctx, e.mover, rates); err != nil {
		return Status{}, err
	}
	e.model.AnchorAxis(point.Y, 0)
	e.model.SetAbsolutePositionValid(true)
	e.position = point.FloatPoint{Z: envelope.MaxZ}
	return Status{OK: true}, nil
}
