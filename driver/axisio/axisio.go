// Package axisio drives the STEP/DIR/ENABLE GPIO lines for each motion
// axis, implementing dda.Stepper. It is the Go equivalent of
// do_x_step()/digitalWrite(X_DIR_PIN, ...)/enable_steppers() in
// cartesian_dda.cpp, built on periph.io/x/conn/v3/gpio the way
// driver/wshat binds buttons to bcm283x pins in the host build this
// module was adapted from.
package axisio

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"

	"github.com/pleasantmill/millctl/point"
)

// axisPins holds one axis's STEP/DIR/ENABLE lines. Step pulses are
// wait-free: periph.io pin writes are fast enough
// on a Raspberry Pi that no explicit delay is needed between the rising
// and falling edge of a step pulse at the feedrates this firmware
// drives; callers throttle between steps via dda.Ticker instead.
type axisPins struct {
	step, dir, enable gpio.PinOut
}

// Driver binds one set of STEP/DIR/ENABLE pins per axis.
type Driver struct {
	axes [point.NumAxes]axisPins
	// enableActiveLow matches ENABLE_PIN_STATE_INVERTING: most stepper
	// driver boards enable on a low signal.
	enableActiveLow bool
}

// New constructs a Driver with no pins bound. Bind must be called for
// each axis the machine actually drives before SetDirection/Step/Enable
// are used on it.
func New(enableActiveLow bool) *Driver {
	return &Driver{enableActiveLow: enableActiveLow}
}

// Bind assigns the STEP, DIR and ENABLE pins for axis.
func (d *Driver) Bind(axis point.Axis, step, dir, enable gpio.PinOut) {
	d.axes[axis] = axisPins{step: step, dir: dir, enable: enable}
}

// SetDirection sets axis's DIR pin, implementing dda.Stepper.
func (d *Driver) SetDirection(axis point.Axis, positive bool) {
	p := d.axes[axis]
	if p.dir == nil {
		return
	}
	level := gpio.Low
	if positive {
		level = gpio.High
	}
	p.dir.Out(level)
}

// Step pulses axis's STEP pin once, implementing dda.Stepper.
func (d *Driver) Step(axis point.Axis) {
	p := d.axes[axis]
	if p.step == nil {
		return
	}
	p.step.Out(gpio.High)
	p.step.Out(gpio.Low)
}

// Enable drives axis's ENABLE pin, implementing dda.Stepper. A nil
// ENABLE pin (an axis with no driver wired) is a silent no-op, the same
// as the original firmware's per-axis DISABLE_* macro compiling away
// the call entirely for unused axes.
func (d *Driver) Enable(axis point.Axis, on bool) {
	p := d.axes[axis]
	if p.enable == nil {
		return
	}
	level := on
	if d.enableActiveLow {
		level = !on
	}
	out := gpio.Low
	if level {
		out = gpio.High
	}
	p.enable.Out(out)
}

// Bound reports whether axis has all three pins assigned.
func (d *Driver) Bound(axis point.Axis) bool {
	p := d.axes[axis]
	return p.step != nil && p.dir != nil && p.enable != nil
}

// RequireBound is a startup sanity check a caller can use before
// accepting motion commands for an unconfigured axis.
func (d *Driver) RequireBound(axis point.Axis) error {
	if !d.Bound(axis) {
		return fmt.Errorf("axisio: axis %v has no pins bound", axis)
	}
	return nil
}
