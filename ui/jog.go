package ui

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"
)

// JogButton identifies one physical jog control, adapted from the
// button enumeration the teacher's joystick driver reported to its
// own UI, repurposed here for axis jogging and the emergency-stop
// edge the core observes from outside.
type JogButton int

const (
	JogXPos JogButton = iota
	JogXNeg
	JogYPos
	JogYNeg
	JogZPos
	JogZNeg
	EmergencyStop
)

// JogEvent is a single button transition.
type JogEvent struct {
	Button  JogButton
	Pressed bool
}

// OpenJogPanel starts one debounced watcher goroutine per button,
// sending JogEvents on ch, exactly the per-button goroutine/debounce
// pattern the teacher's joystick driver uses, generalized from a fixed
// bcm283x pin table to a caller-supplied one so it can be bound to
// whatever header the mill's control panel is wired to.
func OpenJogPanel(ch chan<- JogEvent, pins map[JogButton]gpio.PinIn) error {
	if _, err := host.Init(); err != nil {
		return err
	}
	for btn, pin := range pins {
		if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return fmt.Errorf("ui: configure jog button %v: %w", btn, err)
		}
		btn, pin := btn, pin
		go func() {
			pressed := false
			newPressed := false
			const debounceTimeout = 10 * time.Millisecond
			for {
				timeout := debounceTimeout
				if newPressed == pressed {
					timeout = -1
				}
				if pin.WaitForEdge(timeout) {
					newPressed = pin.Read() == gpio.Low
				} else if newPressed != pressed {
					pressed = newPressed
					ch <- JogEvent{Button: btn, Pressed: pressed}
				}
			}
		}()
	}
	return nil
}
