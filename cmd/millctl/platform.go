package main

import (
	"context"
	"log"
	"math"

	"github.com/pleasantmill/millctl/dda"
	"github.com/pleasantmill/millctl/driver/endstop"
	"github.com/pleasantmill/millctl/machine"
	"github.com/pleasantmill/millctl/persist"
	"github.com/pleasantmill/millctl/point"
)

// segmentMover implements machine.Mover by planning and running a
// single-axis dda.Segment directly against the stepper driver, the
// path homing drives outside the normal streamed-program queue.
type segmentMover struct {
	model   *machine.Model
	profile persist.Profile
	stepper dda.Stepper
}

func (m *segmentMover) Jog(ctx context.Context, axis point.Axis, deltaUnits, feedrateUnitsPerSec float64) (bool, error) {
	perUnit := m.model.Units().Get(axis)
	deltaSteps := int64(deltaUnits*perUnit + math.Copysign(0.5, deltaUnits*perUnit))
	if deltaSteps == 0 {
		return false, nil
	}
	start := m.model.AbsoluteSteps()
	target := start.Set(axis, start.Get(axis)+deltaSteps)
	feedSps := feedrateUnitsPerSec * perUnit

	seg, err := dda.Plan(m.profile.DDAProfile(), start, target, feedSps)
	if err == dda.ErrZeroMove {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ticker := dda.NewTicker()
	seg.Start(m.stepper)
	_, blocked := seg.Step(ctx, m.stepper, m.model.LiveEndstops(), func(feedSps float64) {
		ticker.Wait(dda.StepDelay(feedSps))
	})
	seg.Shutdown(m.stepper)

	final := start.Add(seg.StepsTaken())
	m.model.CheckEndstops(m.model.Endstops().Hit, final)
	if err := ctx.Err(); err != nil {
		return blocked, err
	}
	return blocked, nil
}

// runQueue pulls queued segments off model and runs them against
// stepper until ctx is done, the goroutine equivalent of the
// firmware's step-timer interrupt continuously draining the knot
// buffer. Endstop hits observed mid-segment are folded back into
// model's absolute position the same way segmentMover.Jog does.
func runQueue(ctx context.Context, model *machine.Model, stepper dda.Stepper) {
	ticker := dda.NewTicker()
	for {
		seg, ok := model.NextSegment(ctx)
		if !ok {
			return
		}
		start := model.AbsoluteSteps()
		seg.Start(stepper)
		_, blocked := seg.Step(ctx, stepper, model.LiveEndstops(), func(feedSps float64) {
			ticker.Wait(dda.StepDelay(feedSps))
		})
		seg.Shutdown(stepper)
		final := start.Add(seg.StepsTaken())
		model.CheckEndstops(model.Endstops().Hit, final)
		if blocked {
			log.Printf("millctl: segment interrupted by endstop")
			model.CancelAndClearQueue()
		}
	}
}

// watchEndstops forwards limit-switch edges from w into model until
// ctx is done.
func watchEndstops(ctx context.Context, model *machine.Model, w *endstop.Watcher) {
	for {
		select {
		case hit := <-w.Updates():
			model.CheckEndstops(hit, model.AbsoluteSteps())
		case <-ctx.Done():
			return
		}
	}
}
