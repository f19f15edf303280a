// command millctl is the motion-control core for a five-axis CNC mill:
// it accepts a streamed G-code program over a host serial link, plans
// and executes stepper motion, and reports status frames back.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pleasantmill/millctl/gcode"
	"github.com/pleasantmill/millctl/hostlink"
	"github.com/pleasantmill/millctl/machine"
	"github.com/pleasantmill/millctl/persist"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "run: %v", err)
		os.Exit(2)
	}
}

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	log.Println("millctl: loading...")

	p, err := Init()
	if err != nil {
		return err
	}

	profile := loadProfile()
	model := machine.NewModel(profile.StepsPerMM, profile.Envelope)
	model.LoadWCSTable(loadWCSTable())

	ctx := context.Background()
	stepper := p.Stepper()

	if ends, err := p.Endstops(); err != nil {
		log.Printf("millctl: endstops unavailable: %v", err)
	} else {
		go watchEndstops(ctx, model, ends)
	}

	go runQueue(ctx, model, stepper)

	mover := &segmentMover{model: model, profile: profile, stepper: stepper}
	cfg := gcode.Config{
		Profile:        profile.DDAProfile(),
		FastXYFeedrate: profile.FastXYFeedrate,
		FastZFeedrate:  profile.FastZFeedrate,
		SlowFeedrate:   profile.SlowFeedrate,
	}
	exec := gcode.NewExecutor(model, mover, cfg)
	parser := gcode.NewParser()

	serial, err := p.Serial()
	if err != nil {
		return fmt.Errorf("millctl: opening host link: %w", err)
	}
	defer serial.Close()

	link := hostlink.New(serial)
	return link.Serve(func(raw string) (gcode.Status, error) {
		line, err := parser.Process(raw)
		if err != nil {
			return gcode.Status{}, err
		}
		return exec.Execute(ctx, line)
	})
}

func loadProfile() persist.Profile {
	f, err := os.Open(profilePath())
	if err != nil {
		return persist.DefaultProfile
	}
	defer f.Close()
	p, err := persist.LoadProfile(f)
	if err != nil {
		log.Printf("millctl: invalid profile, using defaults: %v", err)
		return persist.DefaultProfile
	}
	return p
}

// loadWCSTable loads the persisted work-coordinate-system offsets,
// falling back to all-zero offsets on first boot, mirroring
// checkEEPROM's factory-default behavior.
func loadWCSTable() persist.WCSTable {
	f, err := os.Open(wcsPath())
	if err != nil {
		return persist.WCSTable{}
	}
	defer f.Close()
	wcs, _, err := persist.Load(f)
	if err != nil {
		if err != persist.ErrUninitialized {
			log.Printf("millctl: invalid WCS table, using zero offsets: %v", err)
		}
		return persist.WCSTable{}
	}
	return wcs
}

func profilePath() string {
	if p := os.Getenv("MILLCTL_PROFILE"); p != "" {
		return p
	}
	return "/etc/millctl/profile.cbor"
}

func wcsPath() string {
	if p := os.Getenv("MILLCTL_WCS"); p != "" {
		return p
	}
	return "/etc/millctl/wcs.bin"
}
