//go:build linux && arm

package main

import (
	"fmt"
	"io"
	"os"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/pleasantmill/millctl/dda"
	"github.com/pleasantmill/millctl/driver/axisio"
	"github.com/pleasantmill/millctl/driver/endstop"
	"github.com/pleasantmill/millctl/driver/serialhost"
	"github.com/pleasantmill/millctl/driver/tmc2209"
	"github.com/pleasantmill/millctl/point"
)

// pinout assigns each axis's STEP/DIR/ENABLE lines and the six
// limit-switch inputs to BCM GPIO names, the Go-native equivalent of
// pins.h's X_STEP_PIN/X_DIR_PIN/... macros.
var pinout = struct {
	step, dir, enable                   [point.NumAxes]string
	xLow, xHigh, yLow, yHigh, zLow, zHigh string
}{
	step:   [point.NumAxes]string{"GPIO2", "GPIO3", "GPIO4", "GPIO17", "GPIO27"},
	dir:    [point.NumAxes]string{"GPIO14", "GPIO15", "GPIO18", "GPIO22", "GPIO23"},
	enable: [point.NumAxes]string{"GPIO24", "GPIO25", "GPIO8", "GPIO7", "GPIO1"},
	xLow:   "GPIO16",
	xHigh:  "GPIO5",
	yLow:   "GPIO19",
	yHigh:  "GPIO6",
	zLow:   "GPIO12",
	zHigh:  "GPIO13",
}

// tmcBusDevice is the serial device the per-axis TMC2209 drivers share
// a single-wire UART bus over, distinct from the host G-code link.
const tmcBusDevice = "/dev/ttyAMA0"

// tmcRunCurrentMA and tmcSenseMilliohm are the driving current and
// sense-resistor value millctl's reference carrier board ships with.
const (
	tmcRunCurrentMA = 800
	tmcSenseMilliohm = 110
)

// Platform is the Raspberry Pi build: real GPIO for stepper pulses and
// limit switches via periph.io, TMC2209 current/microstep setup over
// a shared UART, and the host G-code link over a USB serial adapter.
type Platform struct {
	axis   *axisio.Driver
	ends   *endstop.Watcher
	serial string
}

func Init() (*Platform, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("platform: periph.io init: %w", err)
	}

	drv := axisio.New(true)
	for i := point.Axis(0); i < point.NumAxes; i++ {
		step := gpioreg.ByName(pinout.step[i])
		dir := gpioreg.ByName(pinout.dir[i])
		enable := gpioreg.ByName(pinout.enable[i])
		if step == nil || dir == nil || enable == nil {
			continue // axis not wired on this board revision
		}
		drv.Bind(i, step.(gpio.PinOut), dir.(gpio.PinOut), enable.(gpio.PinOut))
	}

	if err := configureTMC2209(); err != nil {
		return nil, fmt.Errorf("platform: configuring stepper drivers: %w", err)
	}

	xLow, xHigh := gpioreg.ByName(pinout.xLow), gpioreg.ByName(pinout.xHigh)
	yLow, yHigh := gpioreg.ByName(pinout.yLow), gpioreg.ByName(pinout.yHigh)
	zLow, zHigh := gpioreg.ByName(pinout.zLow), gpioreg.ByName(pinout.zHigh)
	var ends *endstop.Watcher
	if xLow != nil && xHigh != nil && yLow != nil && yHigh != nil && zLow != nil && zHigh != nil {
		w, err := endstop.Open(endstop.DefaultPinout(
			xLow.(gpio.PinIn), xHigh.(gpio.PinIn),
			yLow.(gpio.PinIn), yHigh.(gpio.PinIn),
			zLow.(gpio.PinIn), zHigh.(gpio.PinIn),
		))
		if err != nil {
			return nil, fmt.Errorf("platform: endstops: %w", err)
		}
		ends = w
	}

	return &Platform{axis: drv, ends: ends, serial: os.Getenv("MILLCTL_SERIAL")}, nil
}

func (p *Platform) Stepper() dda.Stepper {
	return p.axis
}

func (p *Platform) Endstops() (*endstop.Watcher, error) {
	if p.ends == nil {
		return nil, fmt.Errorf("platform: limit switch pins not found")
	}
	return p.ends, nil
}

func (p *Platform) Serial() (io.ReadWriteCloser, error) {
	return serialhost.Open(p.serial)
}

// configureTMC2209 sets the run current, microstepping and SENDDELAY
// for every axis's driver over the shared UART bus, once at boot.
func configureTMC2209() error {
	bus, err := serialhost.Open(tmcBusDevice)
	if err != nil {
		return err
	}
	for addr := uint8(0); addr < uint8(point.NumAxes); addr++ {
		dev := &tmc2209.Device{Bus: bus, Addr: addr, Sense: tmcSenseMilliohm}
		if err := dev.SetupSharedUART(); err != nil {
			return fmt.Errorf("axis %d: %w", addr, err)
		}
		if err := dev.Configure(); err != nil {
			return fmt.Errorf("axis %d: %w", addr, err)
		}
		if err := dev.Enable(tmcRunCurrentMA); err != nil {
			return fmt.Errorf("axis %d: %w", addr, err)
		}
	}
	return nil
}
