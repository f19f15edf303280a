package persist

import (
	"bytes"
	"testing"

	"github.com/pleasantmill/millctl/point"
)

func TestEEPROMRoundTrip(t *testing.T) {
	var wcs WCSTable
	wcs[0] = point.FloatPoint{X: 1, Y: 2, Z: 3, F: 999}
	wcs[3] = point.FloatPoint{X: -10.5}
	var tools ToolTable
	tools[0] = "1/8in endmill"
	tools[5] = "center drill"

	buf := &bytes.Buffer{}
	if err := Save(buf, wcs, tools); err != nil {
		t.Fatal(err)
	}
	gotWCS, gotTools, err := Load(buf)
	if err != nil {
		t.Fatal(err)
	}
	if gotWCS[0].X != 1 || gotWCS[0].Y != 2 || gotWCS[0].Z != 3 {
		t.Fatalf("WCS[0] = %+v", gotWCS[0])
	}
	if gotWCS[0].F != 0 {
		t.Fatalf("feedrate should never be persisted, got %v", gotWCS[0].F)
	}
	if gotWCS[3].X != -10.5 {
		t.Fatalf("WCS[3].X = %v, want -10.5", gotWCS[3].X)
	}
	if gotTools[0] != "1/8in endmill" || gotTools[5] != "center drill" {
		t.Fatalf("tools = %+v", gotTools)
	}
}

func TestLoadUninitialized(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0})
	if _, _, err := Load(buf); err != ErrUninitialized {
		t.Fatalf("got %v, want ErrUninitialized", err)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := DefaultProfile.Save(buf); err != nil {
		t.Fatal(err)
	}
	got, err := LoadProfile(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.StepsPerMM != DefaultProfile.StepsPerMM {
		t.Fatalf("StepsPerMM = %+v, want %+v", got.StepsPerMM, DefaultProfile.StepsPerMM)
	}
	if got.FastXYFeedrate != DefaultProfile.FastXYFeedrate {
		t.Fatalf("FastXYFeedrate = %v, want %v", got.FastXYFeedrate, DefaultProfile.FastXYFeedrate)
	}
}
