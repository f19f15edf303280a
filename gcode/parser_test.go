package gcode

import "testing"

func TestParserEnforcesLineSequence(t *testing.T) {
	p := NewParser()
	if _, err := p.Process("N1 G1 X1*96"); err != nil {
		t.Fatalf("unexpected error on first line: %v", err)
	}
	if _, err := p.Process("N3 G1 X2*97"); err == nil {
		t.Fatal("expected resend request for out-of-sequence line")
	} else if rr, ok := err.(*ResendRequest); !ok || rr.LineNo != 2 {
		t.Fatalf("got %v, want resend for line 2", err)
	}
	if _, err := p.Process("N2 G1 X1.5*120"); err != nil {
		t.Fatalf("unexpected error resending line 2: %v", err)
	}
}

func TestParserM110ResetsSequence(t *testing.T) {
	p := NewParser()
	if _, err := p.Process("N50 M110*22"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Process("N51 G1 X1*85"); err != nil {
		t.Fatalf("unexpected error after M110 reset: %v", err)
	}
}

func TestParserRepeatsLastGCode(t *testing.T) {
	p := NewParser()
	if _, err := p.Process("N1 G1 X1*96"); err != nil {
		t.Fatal(err)
	}
	line, err := p.Process("N2 X2 Y3*124")
	if err != nil {
		t.Fatal(err)
	}
	if len(line.Gs) != 1 || line.Gs[0] != 1 {
		t.Fatalf("Gs = %v, want repeated [1]", line.Gs)
	}
}

// TestParserFirstExpectedLineIsOne verifies that before any line has
// been accepted, the parser expects N1, not N0 — an out-of-sequence
// first line should request a resend of line 1.
func TestParserFirstExpectedLineIsOne(t *testing.T) {
	p := NewParser()
	_, err := p.Process("N2 G1 X2*96")
	rr, ok := err.(*ResendRequest)
	if !ok {
		t.Fatalf("got %v, want *ResendRequest", err)
	}
	if rr.LineNo != 1 {
		t.Fatalf("resend requested line %d, want 1", rr.LineNo)
	}
}
