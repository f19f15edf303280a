package gcode

import (
	"context"
	"testing"

	"github.com/pleasantmill/millctl/dda"
	"github.com/pleasantmill/millctl/machine"
	"github.com/pleasantmill/millctl/point"
)

func testUnits() point.Units {
	return point.Units{X: 800, Y: 800, Z: 800, A: 800, B: 800}
}

func testConfig() Config {
	return Config{
		Profile:        dda.Profile{Units: testUnits(), SlowFeedrate: 50, EaseInOut: true, EaseInterleaf: 1},
		FastXYFeedrate: 2000,
		FastZFeedrate:  1500,
		SlowFeedrate:   500,
	}
}

type fakeMover struct{ hit bool }

func (f *fakeMover) Jog(ctx context.Context, axis point.Axis, delta, feed float64) (bool, error) {
	return f.hit, nil
}

func drainQueue(t *testing.T, m *machine.Model) {
	t.Helper()
	for !m.Queue.Empty() {
		if _, ok := m.DQMove(); !ok {
			t.Fatal("expected a segment to dequeue")
		}
	}
}

// consumeQueue pops segments off m from a background goroutine,
// standing in for the segment runner, so a command that enqueues more
// segments than the queue holds can finish. The returned func stops the
// goroutine and waits for it to exit.
func consumeQueue(m *machine.Model) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, ok := m.NextSegment(ctx); !ok {
				return
			}
		}
	}()
	return func() { cancel(); <-done }
}

func TestLinearMoveEnqueuesSegmentAndAdvancesPosition(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	line, err := Tokenize("G1 X10 Y5 F600")
	if err != nil {
		t.Fatal(err)
	}
	st, err := ex.Execute(context.Background(), line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.OK {
		t.Fatal("expected ok status")
	}
	if ex.position.X != 10 || ex.position.Y != 5 {
		t.Fatalf("position = %+v, want X=10 Y=5", ex.position)
	}
	drainQueue(t, m)
}

func TestIncrementalBParameterTypoPreserved(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	g90, _ := Tokenize("G91")
	if _, err := ex.Execute(context.Background(), g90); err != nil {
		t.Fatal(err)
	}
	line, err := Tokenize("G1 B3")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ex.Execute(context.Background(), line); err != nil {
		t.Fatal(err)
	}
	if ex.position.A != 3 {
		t.Fatalf("A = %v, want 3 (preserved incremental B->A quirk)", ex.position.A)
	}
	if ex.position.B != 0 {
		t.Fatalf("B = %v, want 0", ex.position.B)
	}
	drainQueue(t, m)
}

func TestG20G21SwitchesUnits(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	line, _ := Tokenize("G20")
	if _, err := ex.Execute(context.Background(), line); err != nil {
		t.Fatal(err)
	}
	u := m.Units()
	if u.X != testUnits().X*25.4 {
		t.Fatalf("inch units X = %v, want %v", u.X, testUnits().X*25.4)
	}
	line, _ = Tokenize("G21")
	if _, err := ex.Execute(context.Background(), line); err != nil {
		t.Fatal(err)
	}
	if u := m.Units(); u.X != testUnits().X {
		t.Fatalf("mm units X = %v, want %v", u.X, testUnits().X)
	}
}

func TestM112EmergencyStopHalts(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	line, _ := Tokenize("M112")
	st, err := ex.Execute(context.Background(), line)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Halt {
		t.Fatal("expected halt status after M112")
	}
	fatal, _ := m.Fatal()
	if !fatal {
		t.Fatal("expected machine to be marked fatal after M112")
	}
}

func TestDrillCycleRequiresQForPeckCycles(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	line, _ := Tokenize("G83 X1 Y1 Z-5 R1 F200")
	if _, err := ex.Execute(context.Background(), line); err == nil {
		t.Fatal("expected error: G83 without Q")
	}
}

func TestDrillCycleG81(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	line, _ := Tokenize("G81 X2 Y2 Z-3 R1 F200")
	stop := consumeQueue(m)
	st, err := ex.Execute(context.Background(), line)
	stop()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.OK {
		t.Fatal("expected ok")
	}
	drainQueue(t, m)
}

func TestDrillCycleRejectsAxisWordsAB(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	line, _ := Tokenize("G81 X2 Y2 Z-3 R1 A1 F200")
	if _, err := ex.Execute(context.Background(), line); err == nil {
		t.Fatal("expected error: G81 must reject A/B words")
	}
}

func TestDrillCycleRequiresXOrY(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	line, _ := Tokenize("G81 Z-3 R1 F200")
	if _, err := ex.Execute(context.Background(), line); err == nil {
		t.Fatal("expected error: G81 requires X or Y")
	}
}

func TestDrillCycleRejectsWhileCutterCompActive(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	g41, _ := Tokenize("G41")
	if _, err := ex.Execute(context.Background(), g41); err != nil {
		t.Fatal(err)
	}
	line, _ := Tokenize("G81 X2 Y2 Z-3 R1 F200")
	if _, err := ex.Execute(context.Background(), line); err == nil {
		t.Fatal("expected error: G81 requires cutter radius compensation off")
	}
}

// TestDrillCycleLRepeatsAdvanceIncrementally exercises the L repeat
// count in incremental mode: each of the L holes should land one X
// increment further than the last, since the line's own X value is
// reapplied relative to wherever the previous hole left the commanded
// position.
func TestDrillCycleLRepeatsAdvanceIncrementally(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	g91, _ := Tokenize("G91")
	if _, err := ex.Execute(context.Background(), g91); err != nil {
		t.Fatal(err)
	}
	line, _ := Tokenize("G81 X2 Y0 Z-3 R1 L3 F200")
	stop := consumeQueue(m)
	_, err := ex.Execute(context.Background(), line)
	stop()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ex.position.X != 6 {
		t.Fatalf("X = %v, want 6 after three 2-unit increments", ex.position.X)
	}
	drainQueue(t, m)
}

func TestDrillCycleRejectsNonPositiveL(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	line, _ := Tokenize("G81 X2 Y2 Z-3 R1 L0 F200")
	if _, err := ex.Execute(context.Background(), line); err == nil {
		t.Fatal("expected error: L must be positive")
	}
}

// TestSetLocalZeroAdditive verifies G92 composes additively with a
// prior commanded position rather than overwriting the offset: homing
// anchors localZeroOffset.X at 0, a move to X=10 advances the
// commanded position, and G92 X0 should absorb exactly that 10 units
// into the offset while the commanded X becomes 0.
func TestSetLocalZeroAdditive(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	g28, _ := Tokenize("G28")
	if _, err := ex.Execute(context.Background(), g28); err != nil {
		t.Fatal(err)
	}
	drainQueue(t, m)

	move, _ := Tokenize("G1 X10 F200")
	if _, err := ex.Execute(context.Background(), move); err != nil {
		t.Fatal(err)
	}
	drainQueue(t, m)

	g92, _ := Tokenize("G92 X0")
	if _, err := ex.Execute(context.Background(), g92); err != nil {
		t.Fatal(err)
	}
	if ex.position.X != 0 {
		t.Fatalf("commanded X = %v, want 0", ex.position.X)
	}
	offset := m.LocalZero()
	if offset.X != 10 {
		t.Fatalf("localZeroOffset.X = %v, want 10", offset.X)
	}
}

// TestSwitchToWCSAdjustsCommandedPosition verifies G54 replaces the
// active local zero offset with the stored slot while keeping the
// commanded position's underlying physical target invariant: X and Y
// shift by the change in offset, while a matching Z component in the
// new slot cancels out and leaves Z untouched.
func TestSwitchToWCSAdjustsCommandedPosition(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	g28, _ := Tokenize("G28")
	if _, err := ex.Execute(context.Background(), g28); err != nil {
		t.Fatal(err)
	}
	drainQueue(t, m)

	move, _ := Tokenize("G1 X10 Y5 F200")
	if _, err := ex.Execute(context.Background(), move); err != nil {
		t.Fatal(err)
	}
	drainQueue(t, m)

	if err := m.SetWCS(0, point.FloatPoint{X: 5, Y: 5, Z: 80}); err != nil {
		t.Fatal(err)
	}
	g54, _ := Tokenize("G54")
	if _, err := ex.Execute(context.Background(), g54); err != nil {
		t.Fatal(err)
	}
	drainQueue(t, m)

	if ex.position.X != 5 {
		t.Fatalf("X = %v, want 5", ex.position.X)
	}
	if ex.position.Y != 0 {
		t.Fatalf("Y = %v, want 0", ex.position.Y)
	}
	if ex.position.Z != 80 {
		t.Fatalf("Z = %v, want 80 (unchanged: the WCS slot's Z matches the homed anchor)", ex.position.Z)
	}
}

// TestSwitchToWCSRequiresHoming verifies SwitchToWCS (and therefore
// G54) is rejected before a full homing cycle has established
// absolutePositionValid.
func TestSwitchToWCSRequiresHoming(t *testing.T) {
	m := machine.NewModel(testUnits(), machine.DefaultEnvelope)
	ex := NewExecutor(m, &fakeMover{hit: true}, testConfig())
	g54, _ := Tokenize("G54")
	if _, err := ex.Execute(context.Background(), g54); err == nil {
		t.Fatal("expected error selecting a WCS before homing")
	}
}
