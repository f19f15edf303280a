// Package point implements the coordinate and unit conversions shared by
// the motion-control core: floating-point machine positions in the active
// unit system, and their conversion to and from integer step counts.
package point

import "math"

// Axis identifies one of the five motion axes.
type Axis int

const (
	X Axis = iota
	Y
	Z
	A
	B
	NumAxes
)

func (a Axis) String() string {
	switch a {
	case X:
		return "X"
	case Y:
		return "Y"
	case Z:
		return "Z"
	case A:
		return "A"
	case B:
		return "B"
	default:
		return "?"
	}
}

// FloatPoint is a position in the active unit system (millimeters or
// inches), plus the feedrate that accompanies a move.
type FloatPoint struct {
	X, Y, Z, A, B float64
	F             float64
}

// StepPoint is a position expressed in motor steps. It has no feedrate:
// feedrate only has meaning in the physical unit system a move was
// issued in.
type StepPoint struct {
	X, Y, Z, A, B int64
}

// Get returns the coordinate of the given axis.
func (p FloatPoint) Get(a Axis) float64 {
	switch a {
	case X:
		return p.X
	case Y:
		return p.Y
	case Z:
		return p.Z
	case A:
		return p.A
	case B:
		return p.B
	default:
		return 0
	}
}

// Set returns a copy of p with the given axis set to v.
func (p FloatPoint) Set(a Axis, v float64) FloatPoint {
	switch a {
	case X:
		p.X = v
	case Y:
		p.Y = v
	case Z:
		p.Z = v
	case A:
		p.A = v
	case B:
		p.B = v
	}
	return p
}

func (p StepPoint) Get(a Axis) int64 {
	switch a {
	case X:
		return p.X
	case Y:
		return p.Y
	case Z:
		return p.Z
	case A:
		return p.A
	case B:
		return p.B
	default:
		return 0
	}
}

func (p StepPoint) Set(a Axis, v int64) StepPoint {
	switch a {
	case X:
		p.X = v
	case Y:
		p.Y = v
	case Z:
		p.Z = v
	case A:
		p.A = v
	case B:
		p.B = v
	}
	return p
}

// Add returns the component-wise sum of p and q. F is taken from q.
func (p FloatPoint) Add(q FloatPoint) FloatPoint {
	return FloatPoint{
		X: p.X + q.X,
		Y: p.Y + q.Y,
		Z: p.Z + q.Z,
		A: p.A + q.A,
		B: p.B + q.B,
		F: q.F,
	}
}

// Sub returns the component-wise difference p - q. F is taken from p.
func (p FloatPoint) Sub(q FloatPoint) FloatPoint {
	return FloatPoint{
		X: p.X - q.X,
		Y: p.Y - q.Y,
		Z: p.Z - q.Z,
		A: p.A - q.A,
		B: p.B - q.B,
		F: p.F,
	}
}

// Add returns the component-wise sum of p and q.
func (p StepPoint) Add(q StepPoint) StepPoint {
	return StepPoint{
		X: p.X + q.X,
		Y: p.Y + q.Y,
		Z: p.Z + q.Z,
		A: p.A + q.A,
		B: p.B + q.B,
	}
}

func (p StepPoint) Sub(q StepPoint) StepPoint {
	return StepPoint{
		X: p.X - q.X,
		Y: p.Y - q.Y,
		Z: p.Z - q.Z,
		A: p.A - q.A,
		B: p.B - q.B,
	}
}

// Units holds the steps-per-unit conversion factor for each axis, for
// whichever unit system (mm or inch) is currently selected.
type Units struct {
	X, Y, Z, A, B float64
}

func (u Units) Get(a Axis) float64 {
	switch a {
	case X:
		return u.X
	case Y:
		return u.Y
	case Z:
		return u.Z
	case A:
		return u.A
	case B:
		return u.B
	default:
		return 1
	}
}

// ToSteps converts a unit-system position to motor steps, rounding to
// the nearest step the way the original firmware's to_steps did.
func (p FloatPoint) ToSteps(u Units) StepPoint {
	round := func(v float64) int64 {
		if v < 0 {
			return int64(v - 0.5)
		}
		return int64(v + 0.5)
	}
	return StepPoint{
		X: round(p.X * u.X),
		Y: round(p.Y * u.Y),
		Z: round(p.Z * u.Z),
		A: round(p.A * u.A),
		B: round(p.B * u.B),
	}
}

// FromSteps converts a step-count position back to the unit system
// described by u.
func (p StepPoint) FromSteps(u Units) FloatPoint {
	return FloatPoint{
		X: float64(p.X) / u.X,
		Y: float64(p.Y) / u.Y,
		Z: float64(p.Z) / u.Z,
		A: float64(p.A) / u.A,
		B: float64(p.B) / u.B,
	}
}

// Distance2D returns the Euclidean distance between p and q over the
// X/Y plane only.
func (p FloatPoint) Distance2D(q FloatPoint) float64 {
	dx := q.X - p.X
	dy := q.Y - p.Y
	return math.Hypot(dx, dy)
}
