package persist

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/pleasantmill/millctl/dda"
	"github.com/pleasantmill/millctl/machine"
	"github.com/pleasantmill/millctl/point"
)

// Profile is the Go-native machine configuration SPEC_FULL.md adds on
// top of the original firmware's compile-time configuration.h macros:
// steps-per-mm, envelope, feedrate caps and per-axis inversion/disable
// policy, loadable at startup instead of baked into the binary.
type Profile struct {
	StepsPerMM    point.Units
	Envelope      machine.Envelope
	SlowFeedrate  float64
	FastXYFeedrate float64
	FastZFeedrate float64
	EaseInOut     bool
	EaseInterleaf uint
	InvertDir     [point.NumAxes]bool
	DisableOnIdle [point.NumAxes]bool
}

// DefaultProfile mirrors configuration.h's defaults: MICROSTEPPING=8
// over 100 full steps/mm gives STEPS_PER_MM=800, FAST_XY/Z_FEEDRATE are
// both 1100 units/min (here expressed as units/s), SLOW_FEEDRATE is
// 500 units/min with ease-in/out enabled and an interleaf of 2.
var DefaultProfile = Profile{
	StepsPerMM: point.Units{X: 800, Y: 800, Z: 800, A: 800, B: 800},
	Envelope:   machine.DefaultEnvelope,
	SlowFeedrate:   500.0 / 60,
	FastXYFeedrate: 1100.0 / 60,
	FastZFeedrate:  1100.0 / 60,
	EaseInOut:      true,
	EaseInterleaf:  2,
}

// DDAProfile converts the persisted Profile into the dda.Profile the
// motion engine plans segments against.
func (p Profile) DDAProfile() dda.Profile {
	return dda.Profile{
		Units:         p.StepsPerMM,
		SlowFeedrate:  p.SlowFeedrate,
		EaseInOut:     p.EaseInOut,
		EaseInterleaf: p.EaseInterleaf,
		DisableOnIdle: p.DisableOnIdle,
		InvertDir:     p.InvertDir,
	}
}

// encMode is a deterministic CBOR encoder (sorted map keys, canonical
// float width), the same core-deterministic mode the teacher's CBOR
// usage configures for its own tagged records.
var encMode = func() cbor.EncMode {
	m, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err) // CoreDetEncOptions is a fixed, valid option set.
	}
	return m
}()

// LoadProfile decodes a Profile previously written by Save.
func LoadProfile(r io.Reader) (Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Profile{}, fmt.Errorf("persist: reading profile: %w", err)
	}
	var p Profile
	if err := cbor.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("persist: decoding profile: %w", err)
	}
	return p, nil
}

// Save CBOR-encodes p to w using the deterministic core encoding.
func (p Profile) Save(w io.Writer) error {
	data, err := encMode.Marshal(p)
	if err != nil {
		return fmt.Errorf("persist: encoding profile: %w", err)
	}
	_, err = w.Write(data)
	return err
}
