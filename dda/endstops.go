package dda

import "github.com/pleasantmill/millctl/point"

// EndstopFlag is a bitmap of which limit switches are currently
// tripped, mirroring the X_LOW_HIT..Z_HIGH_HIT bit flags in
// configuration.h.
type EndstopFlag uint8

const (
	XLowHit EndstopFlag = 1 << iota
	XHighHit
	YLowHit
	YHighHit
	ZLowHit
	ZHighHit
)

// Endstops tracks the instantaneous state of the machine's limit
// switches and implements EndstopChecker the way checkEndstops did:
// every linear axis has a switch at both ends of its travel
// (ENDSTOPS_MIN_ENABLED and ENDSTOPS_MAX_ENABLED are both set in the
// original firmware's configuration.h), so both directions of X, Y and
// Z are gated.
type Endstops struct {
	Hit EndstopFlag
}

// CanStep reports whether axis may still move in the given direction.
// A and B have no endstops and are always steppable.
func (e *Endstops) CanStep(axis point.Axis, positive bool) bool {
	switch axis {
	case point.X:
		if positive {
			return e.Hit&XHighHit == 0
		}
		return e.Hit&XLowHit == 0
	case point.Y:
		if positive {
			return e.Hit&YHighHit == 0
		}
		return e.Hit&YLowHit == 0
	case point.Z:
		if positive {
			return e.Hit&ZHighHit == 0
		}
		return e.Hit&ZLowHit == 0
	default:
		return true
	}
}

// Set records that the given endstop has changed state.
func (e *Endstops) Set(f EndstopFlag, hit bool) {
	if hit {
		e.Hit |= f
	} else {
		e.Hit &^= f
	}
}
