// Package endstop reads the machine's limit switches and reports edge
// transitions as dda.EndstopFlag bit changes. It is adapted from the
// per-pin debounced edge-detection loop used to read the joystick/button
// HAT in the host build this module was built from: here each
// goroutine watches one limit switch instead of one button, and feeds
// a bitmap update instead of a UI button event.
package endstop

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"

	"github.com/pleasantmill/millctl/dda"
)

// debounceTimeout is how long a switch's new state must be stable
// before it's reported, matching the original button driver's 10ms
// debounce window.
const debounceTimeout = 10 * time.Millisecond

// Switch binds one limit switch's GPIO pin to the dda.EndstopFlag bit
// it sets when tripped.
type Switch struct {
	Flag      dda.EndstopFlag
	Pin       gpio.PinIn
	ActiveLow bool
}

// Watcher polls a set of limit switches and reports their combined
// state through Updates as it changes.
type Watcher struct {
	switches []Switch
	updates  chan dda.EndstopFlag
}

// Open initializes periph.io's host drivers and starts one debounced
// watcher goroutine per switch, mirroring wshat.Open's per-button
// goroutine fan-out.
func Open(switches []Switch) (*Watcher, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("endstop: host init: %w", err)
	}
	w := &Watcher{
		switches: switches,
		updates:  make(chan dda.EndstopFlag, 1),
	}
	for _, sw := range switches {
		if err := sw.Pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return nil, fmt.Errorf("endstop: configure %v: %w", sw.Flag, err)
		}
	}
	state := make(map[dda.EndstopFlag]bool, len(switches))
	var mu chan struct{} = make(chan struct{}, 1)
	mu <- struct{}{}
	for _, sw := range switches {
		sw := sw
		go func() {
			hit := false
			newHit := false
			for {
				timeout := debounceTimeout
				if newHit == hit {
					timeout = -1
				}
				if sw.Pin.WaitForEdge(timeout) {
					level := sw.Pin.Read() == gpio.Low
					if sw.ActiveLow {
						newHit = level
					} else {
						newHit = !level
					}
				} else if newHit != hit {
					hit = newHit
					<-mu
					state[sw.Flag] = hit
					var combined dda.EndstopFlag
					for flag, on := range state {
						if on {
							combined |= flag
						}
					}
					mu <- struct{}{}
					select {
					case w.updates <- combined:
					default:
						// Drop if the reader hasn't caught up; the next
						// debounced edge will resend the latest state.
						select {
						case <-w.updates:
							w.updates <- combined
						default:
						}
					}
				}
			}
		}()
	}
	return w, nil
}

// Updates reports the combined endstop bitmap whenever any switch
// changes state.
func (w *Watcher) Updates() <-chan dda.EndstopFlag {
	return w.updates
}

// DefaultPinout builds the six-switch table the machine wires: both
// ends of X, Y and Z each have a physical limit switch, matching
// pins.h's X_MIN_PIN/X_MAX_PIN/Y_MIN_PIN/Y_MAX_PIN/Z_MIN_PIN/Z_MAX_PIN
// and ENDSTOPS_MIN_ENABLED/ENDSTOPS_MAX_ENABLED both being set. A and B
// have no endstops at all.
func DefaultPinout(xLow, xHigh, yLow, yHigh, zLow, zHigh gpio.PinIn) []Switch {
	return []Switch{
		{Flag: dda.XLowHit, Pin: xLow, ActiveLow: true},
		{Flag: dda.XHighHit, Pin: xHigh, ActiveLow: true},
		{Flag: dda.YLowHit, Pin: yLow, ActiveLow: true},
		{Flag: dda.YHighHit, Pin: yHigh, ActiveLow: true},
		{Flag: dda.ZLowHit, Pin: zLow, ActiveLow: true},
		{Flag: dda.ZHighHit, Pin: zHigh, ActiveLow: true},
	}
}
