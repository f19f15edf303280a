// Package persist implements the two forms of durable storage the
// motion-control core needs: a byte-exact work-coordinate-system and
// tool table matching the original firmware's EEPROM layout
// (Persistent.cpp), and a CBOR-encoded machine profile for the
// Go-native geometry/feedrate settings SPEC_FULL.md adds.
package persist

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pleasantmill/millctl/machine"
	"github.com/pleasantmill/millctl/point"
)

// magic identifies an initialized EEPROM image, the Go equivalent of
// the two magic bytes checkEEPROM tests for.
var magic = [2]byte{0x5A, 0x67} // 'Z', 'g' - a nod to the original firmware author's initials.

// floatPointRecordSize is 5 float32 fields (x,y,z,a,b); f (feedrate)
// is never persisted, matching EEPROM_WriteFloatPoint.
const floatPointRecordSize = 5 * 4

// toolNameSize is the fixed, NUL-terminated tool name field width.
const toolNameSize = 21

// WCSTable is the on-disk representation of the six work coordinate
// system offsets (G54-G59).
type WCSTable [machine.NumWCS]point.FloatPoint

// ToolTable is the on-disk representation of the six tool name slots.
type ToolTable [machine.NumWCS]string

// Load reads the magic bytes, WCS table and tool table from r in that
// order. If the magic bytes don't match, Load returns ErrUninitialized
// so the caller can write factory defaults, mirroring checkEEPROM's
// first-boot behavior.
func Load(r io.Reader) (WCSTable, ToolTable, error) {
	var wcs WCSTable
	var tools ToolTable
	var got [2]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return wcs, tools, fmt.Errorf("persist: reading magic: %w", err)
	}
	if got != magic {
		return wcs, tools, ErrUninitialized
	}
	for i := range wcs {
		fp, err := readFloatPoint(r)
		if err != nil {
			return wcs, tools, fmt.Errorf("persist: WCS %d: %w", i, err)
		}
		wcs[i] = fp
	}
	for i := range tools {
		name, err := readToolName(r)
		if err != nil {
			return wcs, tools, fmt.Errorf("persist: tool %d: %w", i, err)
		}
		tools[i] = name
	}
	return wcs, tools, nil
}

// ErrUninitialized is returned by Load when the magic bytes are absent
// or don't match, meaning the backing store has never been written.
var ErrUninitialized = fmt.Errorf("persist: EEPROM image not initialized")

// Save writes the magic bytes followed by the WCS and tool tables to w,
// in the same byte-exact layout Load expects.
func Save(w io.Writer, wcs WCSTable, tools ToolTable) error {
	if _, err := w.Write(magic[:]); err != nil {
		return fmt.Errorf("persist: writing magic: %w", err)
	}
	for i, fp := range wcs {
		if err := writeFloatPoint(w, fp); err != nil {
			return fmt.Errorf("persist: WCS %d: %w", i, err)
		}
	}
	for i, name := range tools {
		if err := writeToolName(w, name); err != nil {
			return fmt.Errorf("persist: tool %d: %w", i, err)
		}
	}
	return nil
}

func readFloatPoint(r io.Reader) (point.FloatPoint, error) {
	var raw [5]float32
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return point.FloatPoint{}, err
	}
	return point.FloatPoint{
		X: float64(raw[0]), Y: float64(raw[1]), Z: float64(raw[2]),
		A: float64(raw[3]), B: float64(raw[4]),
	}, nil
}

func writeFloatPoint(w io.Writer, fp point.FloatPoint) error {
	raw := [5]float32{float32(fp.X), float32(fp.Y), float32(fp.Z), float32(fp.A), float32(fp.B)}
	return binary.Write(w, binary.LittleEndian, &raw)
}

func readToolName(r io.Reader) (string, error) {
	var buf [toolNameSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", err
	}
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n]), nil
}

func writeToolName(w io.Writer, name string) error {
	var buf [toolNameSize]byte
	n := copy(buf[:toolNameSize-1], name) // always leave room for the NUL terminator
	_ = n
	_, err := w.Write(buf[:])
	return err
}
