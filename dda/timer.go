package dda

import "time"

// Ticker stands in for the hardware step-rate timer the original
// firmware reprograms on every step (setTimer/setupTimerInterrupt in
// interruptHandling.cpp). There is no interrupt controller to program
// in Go, so Ticker reloads a single time.Timer the same way
// Platform.Events does in the host build it was adapted from: Stop,
// drain, then Reset to the next interval rather than allocating a new
// timer per step.
type Ticker struct {
	timer *time.Timer
}

// NewTicker returns a Ticker with no pending deadline.
func NewTicker() *Ticker {
	t := time.NewTimer(0)
	if !t.Stop() {
		<-t.C
	}
	return &Ticker{timer: t}
}

// Wait blocks until d has elapsed, reloading the underlying timer in
// place. It is the Go equivalent of the original firmware busy-waiting
// on its hardware timer's compare-match interrupt.
func (t *Ticker) Wait(d time.Duration) {
	if !t.timer.Stop() {
		select {
		case <-t.timer.C:
		default:
		}
	}
	if d <= 0 {
		return
	}
	t.timer.Reset(d)
	<-t.timer.C
}

// StepDelay converts a dominant-axis feedrate in steps/second into the
// inter-step delay, the Go-level equivalent of
// calculate_feedrate_delay's timestep computation.
func StepDelay(feedSps float64) time.Duration {
	if feedSps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / feedSps)
}
