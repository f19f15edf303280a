package gcode

import (
	"context"
	"fmt"
	"math"

	"github.com/pleasantmill/millctl/point"
)

// arcAngleStepsFactor sets the angular resolution floor for arc
// interpolation: at least angle*arcAngleStepsFactor segments regardless
// of radius, so small, tight arcs aren't approximated by a single
// chord.
const arcAngleStepsFactor = 2.4

// drawArc executes G2 (clockwise) or G3 (counterclockwise), generating
// a sequence of short linear moves approximating the circular arc in
// the XY plane, the equivalent of drawArc. The arc center is given
// relative to the start point by I/J, or by a radius R; this
// implementation computes the center and swept angle directly rather
// than reusing one point variable for both the current and target
// position, resolving the ambiguity left open by the original
// implementation (see DESIGN.md).
func (e *Executor) drawArc(ctx context.Context, l *Line, clockwise bool) (Status, error) {
	start := e.position
	target := e.fetchCartesianParameters(l)

	var cx, cy float64
	switch {
	case l.Seen('I') || l.Seen('J'):
		cx = start.X + l.ValueOr('I', 0)
		cy = start.Y + l.ValueOr('J', 0)
	case l.Seen('R'):
		r := l.Value('R')
		mx, my := (start.X+target.X)/2, (start.Y+target.Y)/2
		dx, dy := target.X-start.X, target.Y-start.Y
		d := math.Hypot(dx, dy)
		if d == 0 {
			return Status{}, fmt.Errorf("gcode: arc radius given with zero-length chord")
		}
		h := math.Sqrt(math.Max(r*r-(d/2)*(d/2), 0))
		// Perpendicular direction; sign chosen by winding direction
		// and sign of R, matching the usual G2/G3 R-format convention.
		ux, uy := -dy/d, dx/d
		sign := 1.0
		if (clockwise && r > 0) || (!clockwise && r < 0) {
			sign = -1
		}
		cx = mx + sign*h*ux
		cy = my + sign*h*uy
	default:
		return Status{}, fmt.Errorf("gcode: arc requires I/J or R")
	}

	startAngle := math.Atan2(start.Y-cy, start.X-cx)
	endAngle := math.Atan2(target.Y-cy, target.X-cx)
	radius := math.Hypot(start.X-cx, start.Y-cy)

	sweep := endAngle - startAngle
	if clockwise {
		for sweep > 0 {
			sweep -= 2 * math.Pi
		}
	} else {
		for sweep < 0 {
			sweep += 2 * math.Pi
		}
	}
	if sweep == 0 {
		sweep = -2 * math.Pi
		if !clockwise {
			sweep = 2 * math.Pi
		}
	}

	arcLen := math.Abs(sweep) * radius
	steps := int(math.Ceil(math.Max(math.Abs(sweep)*arcAngleStepsFactor, arcLen)))
	if steps < 1 {
		steps = 1
	}
	feed := target.F
	if feed <= 0 {
		feed = e.cfg.SlowFeedrate
	}

	zStart, zEnd := start.Z, target.Z
	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		angle := startAngle + sweep*frac
		p := point.FloatPoint{
			X: cx + radius*math.Cos(angle),
			Y: cy + radius*math.Sin(angle),
			Z: zStart + (zEnd-zStart)*frac,
			A: start.A + (target.A-start.A)*frac,
			B: start.B + (target.B-start.B)*frac,
			F: feed,
		}
		if i == steps {
			p = target
			p.F = feed
		}
		if err := e.move(ctx, p, feed); err != nil {
			return Status{}, err
		}
	}
	return Status{OK: true}, nil
}
