package hostlink

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pleasantmill/millctl/gcode"
)

type loopback struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func (l *loopback) Read(p []byte) (int, error)  { return l.in.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.out.Write(p) }

func TestServeReportsOK(t *testing.T) {
	rw := &loopback{in: bytes.NewBufferString("G4\n"), out: &bytes.Buffer{}}
	link := New(rw)
	err := link.Serve(func(line string) (gcode.Status, error) {
		if line != "G4" {
			t.Fatalf("got line %q", line)
		}
		return gcode.Status{OK: true}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rw.out.String(), "ok") {
		t.Fatalf("output %q missing ok", rw.out.String())
	}
}

func TestServeReportsResend(t *testing.T) {
	rw := &loopback{in: bytes.NewBufferString("N5 G1 X1\n"), out: &bytes.Buffer{}}
	link := New(rw)
	err := link.Serve(func(line string) (gcode.Status, error) {
		return gcode.Status{}, &gcode.ResendRequest{LineNo: 1}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rw.out.String(), "rs 1") {
		t.Fatalf("output %q missing resend", rw.out.String())
	}
}

func TestServeStopsOnHalt(t *testing.T) {
	rw := &loopback{in: bytes.NewBufferString("M2\nG1 X1\n"), out: &bytes.Buffer{}}
	link := New(rw)
	calls := 0
	err := link.Serve(func(line string) (gcode.Status, error) {
		calls++
		return gcode.Status{OK: true, Halt: true}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("handle called %d times, want 1 (halt should stop serving)", calls)
	}
}
