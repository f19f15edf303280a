// Package dda implements the digital-differential-analyzer stepper
// engine: it turns a single linear move (a Segment) into a sequence of
// per-axis step pulses with acceleration ease-in/out, the way the
// original firmware's cartesian_dda module drove five stepper motors
// from one shared step clock.
package dda

import (
	"context"
	"fmt"

	"github.com/pleasantmill/millctl/point"
)

// Stepper is the pin-level collaborator the engine drives. Implementations
// live under driver/axisio; dda only depends on this narrow interface so
// it can be tested without real GPIO.
type Stepper interface {
	SetDirection(axis point.Axis, positive bool)
	Step(axis point.Axis)
	Enable(axis point.Axis, on bool)
}

// EndstopChecker reports whether further motion along axis in the given
// direction is blocked by a limit switch. The DDA engine consults it
// before each pulse so a hit halts that axis immediately, mirroring
// xCanStep/yCanStep/zCanStep in the original firmware.
type EndstopChecker interface {
	CanStep(axis point.Axis, positive bool) bool
}

// Profile carries the machine constants a segment is planned against:
// steps-per-unit, feedrate envelope and ease-in/out policy. It is the Go
// analogue of configuration.h's per-axis and feedrate macros.
type Profile struct {
	Units          point.Units
	SlowFeedrate   float64 // steps/s at the start and end of a ramp
	EaseInOut      bool    // whether to ramp feedrate at all
	EaseInterleaf  uint    // ease steps skipped between each ease step, must be >=1
	DisableOnIdle  [point.NumAxes]bool
	InvertDir      [point.NumAxes]bool
}

// Segment is one planned linear move, in step space, ready to be
// executed by Step. It corresponds to one instance of CartesianDda in
// the original firmware.
type Segment struct {
	profile Profile

	delta       [point.NumAxes]int64 // signed step delta per axis
	dir         [point.NumAxes]bool  // true = positive direction
	totalSteps  int64                // steps of the dominant axis
	counter     [point.NumAxes]int64 // Bresenham-style error accumulators
	taken       [point.NumAxes]int64 // unsigned steps actually emitted per axis

	// ease-in/out state, all expressed in dominant-axis steps.
	slowSteps     int64
	easeOutAt     int64
	targetFeedSps float64 // target feedrate of the dominant axis, steps/s
}

// ErrZeroMove is returned by Plan when start and end coincide: a
// CartesianDda with totalSteps == 0 would loop forever.
var ErrZeroMove = fmt.Errorf("dda: zero-length move")

// Plan computes a Segment that moves from start to end (both in motor
// steps) at the given feedrate (units/s, already converted to the
// dominant axis's steps/s by the caller). It mirrors set_target.
func Plan(profile Profile, start, end point.StepPoint, feedSps float64) (*Segment, error) {
	s := &Segment{profile: profile}
	delta := end.Sub(start)
	axes := [point.NumAxes]int64{delta.X, delta.Y, delta.Z, delta.A, delta.B}
	var total int64
	for i, d := range axes {
		s.delta[i] = d
		if d < 0 {
			s.dir[i] = false
			d = -d
		} else {
			s.dir[i] = true
		}
		if d > total {
			total = d
		}
	}
	if total == 0 {
		return nil, ErrZeroMove
	}
	s.totalSteps = total
	for i := range axes {
		// Seed the error accumulator at -total/2, the classic
		// Bresenham symmetric start used by the original DDA.
		s.counter[i] = -total / 2
	}

	s.targetFeedSps = feedSps
	if profile.EaseInOut && feedSps > profile.SlowFeedrate {
		interleaf := profile.EaseInterleaf
		if interleaf == 0 {
			interleaf = 1
		}
		// Ease for roughly a quarter of the move on each side, bounded
		// by the move's own length, exactly as slowSteps/easeOutTrigger
		// are derived in set_target.
		ease := total / 4
		if ease < 1 {
			ease = 1
		}
		s.slowSteps = ease * int64(interleaf)
		if s.slowSteps > total/2 {
			s.slowSteps = total / 2
		}
		s.easeOutAt = total - s.slowSteps
	} else {
		s.slowSteps = 0
		s.easeOutAt = total
	}
	return s, nil
}

// TotalSteps returns the number of dominant-axis steps this segment
// will emit.
func (s *Segment) TotalSteps() int64 { return s.totalSteps }

// StepsTaken returns, per axis, the signed number of steps actually
// emitted by Step so far, accounting for an endstop hit or a
// cancelled context stopping the segment short of TotalSteps. Callers
// use this to fold a partially-run segment back into absolute
// position instead of assuming the full planned delta landed.
func (s *Segment) StepsTaken() point.StepPoint {
	signed := func(axis int) int64 {
		if !s.dir[axis] {
			return -s.taken[axis]
		}
		return s.taken[axis]
	}
	return point.StepPoint{
		X: signed(0), Y: signed(1), Z: signed(2), A: signed(3), B: signed(4),
	}
}

// currentFeedrate returns the instantaneous dominant-axis feedrate
// (steps/s) at step index i, applying the ease-in/out ramp.
func (s *Segment) currentFeedrate(i int64) float64 {
	if !s.profile.EaseInOut || s.slowSteps == 0 {
		return s.targetFeedSps
	}
	slow := s.profile.SlowFeedrate
	if i < s.slowSteps {
		frac := float64(i) / float64(s.slowSteps)
		return slow + frac*(s.targetFeedSps-slow)
	}
	if i >= s.easeOutAt {
		remaining := s.totalSteps - i
		frac := float64(remaining) / float64(s.slowSteps)
		if frac < 0 {
			frac = 0
		}
		return slow + frac*(s.targetFeedSps-slow)
	}
	return s.targetFeedSps
}

// Start configures direction pins and enables the axes this segment
// moves, mirroring dda_start.
func (s *Segment) Start(stepper Stepper) {
	for i, d := range s.delta {
		axis := point.Axis(i)
		if d == 0 {
			continue
		}
		positive := s.dir[i]
		if s.profile.InvertDir[i] {
			positive = !positive
		}
		stepper.SetDirection(axis, positive)
		stepper.Enable(axis, true)
	}
}

// Shutdown disables axes whose profile marks them for disabling on
// idle and whose delta was nonzero, mirroring disable_steppers.
func (s *Segment) Shutdown(stepper Stepper) {
	for i, d := range s.delta {
		if d == 0 {
			continue
		}
		if s.profile.DisableOnIdle[i] {
			stepper.Enable(point.Axis(i), false)
		}
	}
}

// Step runs the segment to completion, calling stepper.Step for every
// axis pulse and delay between StepDelay(i) to throttle the dominant
// axis at the ramped feedrate. An endstop hit only halts the axis that
// hit it — a tripped switch on one axis does not stop the others from
// reaching their own targets, mirroring live = OR(all can_step flags):
// the whole segment only stops once every axis has either finished its
// delta or been individually blocked. It returns the number of
// dominant-axis ticks actually run (< TotalSteps() only if the context
// was cancelled) and whether any axis was halted by its endstop.
//
// ctx is checked once per dominant-axis step so a cancelled context
// (emergency stop) aborts the segment promptly, the same role
// handleInterrupt's abort flag plays in the original firmware.
func (s *Segment) Step(ctx context.Context, stepper Stepper, endstops EndstopChecker, delay func(feedSps float64)) (stepsDone int64, blocked bool) {
	var axisBlocked [point.NumAxes]bool
	for i := int64(0); i < s.totalSteps; i++ {
		select {
		case <-ctx.Done():
			return i, blocked
		default:
		}
		for axis, d := range s.delta {
			if d == 0 || axisBlocked[axis] {
				continue
			}
			s.counter[axis] += s.absDelta(axis)
			if s.counter[axis] < 0 {
				continue
			}
			s.counter[axis] -= s.totalSteps
			a := point.Axis(axis)
			if endstops != nil && !endstops.CanStep(a, s.dir[axis]) {
				axisBlocked[axis] = true
				blocked = true
				continue
			}
			stepper.Step(a)
			s.taken[axis]++
		}
		if delay != nil {
			delay(s.currentFeedrate(i))
		}
	}
	return s.totalSteps, blocked
}

func (s *Segment) absDelta(axis int) int64 {
	d := s.delta[axis]
	if d < 0 {
		return -d
	}
	return d
}
