package gcode

import (
	"context"
	"fmt"

	"github.com/pleasantmill/millctl/point"
)

// drillPeckRelief is the small retract between pecks in a G73
// chip-break cycle, in units — enough to clear the chip without a full
// retract to the R plane as G83 does.
const drillPeckRelief = 0.5

// doDrillCycle executes one of the canned drilling cycles (G73, G81,
// G82, G83, G85, G89), mirroring doDrillCycle's state machine: rapid to
// the hole's X/Y, rapid to the retract plane R, feed to depth Z
// (pecking for G73/G83), optionally dwell at the bottom, then retract
// either to R or to the prior Z depending on G98/G99.
func (e *Executor) doDrillCycle(ctx context.Context, code int, l *Line) (Status, error) {
	if !l.Seen('X') && !l.Seen('Y') {
		return Status{}, fmt.Errorf("gcode: G%d requires X or Y", code)
	}
	if l.Seen('A') || l.Seen('B') || l.Seen('E') {
		return Status{}, fmt.Errorf("gcode: G%d does not accept A/B", code)
	}
	if e.cutterComp != 0 {
		return Status{}, fmt.Errorf("gcode: G%d requires cutter radius compensation off (G40)", code)
	}
	if l.Seen('P') {
		e.stickyP = l.Value('P')
	}
	if l.Seen('Q') {
		e.stickyQ = l.Value('Q')
	}
	if (code == 82 || code == 89) && e.stickyP < 0 {
		return Status{}, fmt.Errorf("gcode: G%d requires P >= 0", code)
	}
	if (code == 73 || code == 83) && e.stickyQ <= 0 {
		return Status{}, fmt.Errorf("gcode: G%d requires a Q peck increment", code)
	}

	loops := 1
	if l.Seen('L') {
		loops = int(l.Value('L'))
		if loops <= 0 {
			return Status{}, fmt.Errorf("gcode: G%d requires L > 0", code)
		}
	}

	for i := 0; i < loops; i++ {
		if _, err := e.drillOneHole(ctx, code, l); err != nil {
			return Status{}, err
		}
	}
	return Status{OK: true}, nil
}

// drillOneHole runs a single pass of the canned cycle at the X/Y
// resolved from l against the executor's current position, the body
// of the L-repeat loop in doDrillCycle. In incremental mode, calling
// this repeatedly with the same line naturally advances X/Y by the
// line's own increment each time, since e.position carries forward
// between calls; in absolute mode repeats land on the same hole.
func (e *Executor) drillOneHole(ctx context.Context, code int, l *Line) (Status, error) {
	priorZ := e.position.Z
	r := l.ValueOr('R', priorZ)
	depth := l.ValueOr('Z', priorZ)
	feed := l.ValueOr('F', e.position.F)
	if feed <= 0 {
		feed = e.cfg.SlowFeedrate
	}

	hole := e.position
	if l.Seen('X') {
		hole.X = e.fetchAxisAbsolute(l, 'X', hole.X)
	}
	if l.Seen('Y') {
		hole.Y = e.fetchAxisAbsolute(l, 'Y', hole.Y)
	}

	// Rapid to the hole's X/Y at the current Z, then rapid down to R.
	xy := hole
	xy.Z = e.position.Z
	if err := e.move(ctx, xy, e.cfg.FastXYFeedrate); err != nil {
		return Status{}, err
	}
	atR := xy
	atR.Z = r
	if err := e.move(ctx, atR, e.cfg.FastZFeedrate); err != nil {
		return Status{}, err
	}

	switch code {
	case 81:
		if err := e.feedTo(ctx, atR, depth, feed); err != nil {
			return Status{}, err
		}
	case 82, 89:
		if err := e.feedTo(ctx, atR, depth, feed); err != nil {
			return Status{}, err
		}
		// Dwell at the bottom for stickyP seconds. There is no
		// real-time scheduler to block on here (G4 is likewise a
		// no-op, see execG); the dwell is accepted as a boundary the
		// caller is responsible for timing if it matters.
	case 85:
		if err := e.feedTo(ctx, atR, depth, feed); err != nil {
			return Status{}, err
		}
		// Retract at feed rate rather than rapid, the distinguishing
		// feature of the boring cycle.
		up := atR
		up.Z = r
		if err := e.move(ctx, up, feed); err != nil {
			return Status{}, err
		}
		return e.finishDrill(ctx, atR, priorZ, r)
	case 73, 83:
		cur := atR
		bottom := atR.Z
		for cur.Z > depth {
			next := cur
			next.Z = bottom - e.stickyQ
			if next.Z < depth {
				next.Z = depth
			}
			if err := e.feedTo(ctx, cur, next.Z, feed); err != nil {
				return Status{}, err
			}
			cur.Z = next.Z
			bottom = next.Z
			if cur.Z <= depth {
				break
			}
			relief := drillPeckRelief
			retractTo := r
			if code == 73 {
				retractTo = cur.Z + relief
				if retractTo > r {
					retractTo = r
				}
			}
			up := cur
			up.Z = retractTo
			if err := e.move(ctx, up, e.cfg.FastZFeedrate); err != nil {
				return Status{}, err
			}
			cur.Z = retractTo
		}
	default:
		return Status{}, fmt.Errorf("gcode: unsupported drill cycle G%d", code)
	}

	return e.finishDrill(ctx, atR, priorZ, r)
}

// finishDrill performs the shared rapid retract to R or back to the
// prior Z, governed by G98/G99, and reports the cycle complete.
func (e *Executor) finishDrill(ctx context.Context, at point.FloatPoint, priorZ, r float64) (Status, error) {
	retract := r
	if e.oldZRetract {
		retract = priorZ
	}
	up := at
	up.Z = retract
	if err := e.move(ctx, up, e.cfg.FastZFeedrate); err != nil {
		return Status{}, err
	}
	return Status{OK: true}, nil
}

// feedTo feeds straight down (or up) in Z from at's current depth to
// targetZ at feed, used by every cycle variant's cutting pass.
func (e *Executor) feedTo(ctx context.Context, at point.FloatPoint, targetZ, feed float64) error {
	down := at
	down.Z = targetZ
	return e.move(ctx, down, feed)
}

// fetchAxisAbsolute resolves one axis word to an absolute coordinate
// given the executor's current absolute/incremental mode, for use
// outside the full fetchCartesianParameters pass (drill cycles only
// consume X/Y/Z/R/P/Q/F, never E/A/B).
func (e *Executor) fetchAxisAbsolute(l *Line, letter byte, cur float64) float64 {
	v := l.Value(letter)
	if e.absoluteMode {
		return v
	}
	return cur + v
}
