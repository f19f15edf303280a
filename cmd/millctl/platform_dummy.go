//go:build !linux || !arm

package main

import (
	"errors"
	"io"
	"log"
	"os"

	"github.com/pleasantmill/millctl/dda"
	"github.com/pleasantmill/millctl/driver/endstop"
	"github.com/pleasantmill/millctl/point"
)

// Platform is the bench/simulator build: no GPIO, no UART stepper
// drivers, a logging stepper standing in for real motors and the host
// link carried over stdin/stdout, in the shape of the teacher's
// platform_dummy.go stub.
type Platform struct{}

func Init() (*Platform, error) {
	return new(Platform), nil
}

// loggingStepper logs each direction change instead of toggling a
// GPIO line and silently drops step pulses and enable changes, enough
// to drive the executor end to end without real hardware attached.
type loggingStepper struct{}

func (loggingStepper) SetDirection(axis point.Axis, positive bool) {
	log.Printf("millctl: sim %v dir=%v", axis, positive)
}
func (loggingStepper) Step(axis point.Axis)        {}
func (loggingStepper) Enable(axis point.Axis, on bool) {}

func (p *Platform) Stepper() dda.Stepper {
	return loggingStepper{}
}

func (p *Platform) Endstops() (*endstop.Watcher, error) {
	return nil, errors.New("platform: no endstop hardware on this build")
}

// Serial carries the host link over stdin/stdout so millctl can be
// exercised from a terminal without a real USB serial adapter.
func (p *Platform) Serial() (io.ReadWriteCloser, error) {
	return stdioPort{}, nil
}

type stdioPort struct{}

func (stdioPort) Read(b []byte) (int, error)  { return os.Stdin.Read(b) }
func (stdioPort) Write(b []byte) (int, error) { return os.Stdout.Write(b) }
func (stdioPort) Close() error                { return nil }
