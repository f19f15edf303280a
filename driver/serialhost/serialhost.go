// Package serialhost opens the serial link to the host computer that
// streams G-code and receives status frames. It is adapted from the
// device-path probing the engraver's host link used to locate its USB
// serial adapter, generalized to the mill's own default device list.
package serialhost

import (
	"fmt"
	"io"
	"runtime"

	"github.com/tarm/serial"
)

// Baud is the line rate the host link runs at.
const Baud = 250000

// defaultDevices lists the device paths tried, in order, when Open is
// called with an empty name — the same probing idea as the engraver
// host link, adjusted for a USB-to-serial adapter on a mill controller
// rather than an onboard UART.
func defaultDevices() []string {
	if runtime.GOOS == "windows" {
		return []string{"COM3", "COM4"}
	}
	return []string{"/dev/ttyUSB0", "/dev/ttyACM0", "/dev/ttyUSB1"}
}

// Open opens the host serial link. If name is empty, it tries each of
// the platform's default device paths in turn and returns the first
// one that opens successfully.
func Open(name string) (io.ReadWriteCloser, error) {
	if name != "" {
		return openPort(name)
	}
	var lastErr error
	for _, dev := range defaultDevices() {
		port, err := openPort(dev)
		if err == nil {
			return port, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("serialhost: no host serial device found: %w", lastErr)
}

func openPort(name string) (io.ReadWriteCloser, error) {
	cfg := &serial.Config{Name: name, Baud: Baud}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("serialhost: open %s: %w", name, err)
	}
	return port, nil
}
