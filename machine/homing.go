package machine

import (
	"context"
	"fmt"

	"github.com/pleasantmill/millctl/point"
)

// Mover is the single-axis jog primitive homing is built on: move axis
// by deltaUnits (signed, in the active unit system) at feedrateUnitsPerSec,
// blocking until the move completes or an endstop interrupts it.
// cmd/millctl wires this to the dda engine and the real queue/runner
// goroutine; tests can supply a fake.
type Mover interface {
	Jog(ctx context.Context, axis point.Axis, deltaUnits, feedrateUnitsPerSec float64) (hitEndstop bool, err error)
}

// HomingFeedrates carries the two speeds a homing sequence needs: the
// fast overtravel approach and the slow, precise re-approach. These
// correspond to FAST_XY_FEEDRATE/FAST_Z_FEEDRATE and a fixed slow
// speed in the original zeroX/zeroY/zeroZ.
type HomingFeedrates struct {
	Fast float64
	Slow float64
}

const (
	// homingBackoff is how far (units) the axis backs off the endstop
	// before the slow re-approach, matching the original's 1-unit
	// backoff.
	homingBackoff = 1.0
	// homingReapproach is how far (units) the slow re-approach travels
	// toward the endstop, matching the original's 10-unit re-approach.
	homingReapproach = 10.0
	// overtravelFactor scales the configured envelope length for the
	// initial fast approach, matching the original's 110% overtravel.
	overtravelFactor = 1.10
)

// zeroAxis runs the overtravel/backoff/reapproach homing sequence
// shared by zeroX, zeroY and zeroZ: jog a long distance toward the
// endstop at speed, verify the endstop was actually hit (a hard fault
// otherwise), back off a short distance, then creep back in slowly for
// a repeatable zero.
func (m *Model) zeroAxis(ctx context.Context, mv Mover, axis point.Axis, travel float64, toward float64, rates HomingFeedrates) error {
	overtravel := travel * overtravelFactor
	hit, err := mv.Jog(ctx, axis, toward*overtravel, rates.Fast)
	if err != nil {
		return fmt.Errorf("machine: homing %v: %w", axis, err)
	}
	if !hit {
		m.SetFatal(fmt.Sprintf("homing %v: endstop not reached within overtravel", axis))
		return fmt.Errorf("machine: homing %v: endstop not reached", axis)
	}
	if _, err := mv.Jog(ctx, axis, -toward*homingBackoff, rates.Slow); err != nil {
		return fmt.Errorf("machine: homing %v: backoff: %w", axis, err)
	}
	if err := m.WaitForEmpty(ctx); err != nil {
		return err
	}
	hit, err = mv.Jog(ctx, axis, toward*homingReapproach, rates.Slow)
	if err != nil {
		return fmt.Errorf("machine: homing %v: reapproach: %w", axis, err)
	}
	if !hit {
		m.SetFatal(fmt.Sprintf("homing %v: endstop not reached on reapproach", axis))
		return fmt.Errorf("machine: homing %v: endstop not reached on reapproach", axis)
	}
	return m.WaitForEmpty(ctx)
}

// ZeroX homes the X axis toward its negative (min) endstop, mirroring
// zeroX, which jogs negative and checks X_LOW_HIT.
func (m *Model) ZeroX(ctx context.Context, mv Mover, rates HomingFeedrates) error {
	return m.zeroAxis(ctx, mv, point.X, m.Envelope().MaxX-m.Envelope().MinX, -1, rates)
}

// ZeroY homes the Y axis toward its negative (min) endstop, mirroring
// zeroY, which jogs negative and checks Y_LOW_HIT.
func (m *Model) ZeroY(ctx context.Context, mv Mover, rates HomingFeedrates) error {
	return m.zeroAxis(ctx, mv, point.Y, m.Envelope().MaxY-m.Envelope().MinY, -1, rates)
}

// ZeroZ homes the Z axis toward its positive (max) endstop, mirroring
// zeroZ. Z homes toward its high limit because the tool retracts
// upward away from the work.
func (m *Model) ZeroZ(ctx context.Context, mv Mover, rates HomingFeedrates) error {
	return m.zeroAxis(ctx, mv, point.Z, m.Envelope().MaxZ-m.Envelope().MinZ, 1, rates)
}
