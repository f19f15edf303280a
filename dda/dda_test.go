package dda

import (
	"context"
	"testing"

	"github.com/pleasantmill/millctl/point"
)

type fakeStepper struct {
	steps map[point.Axis]int64
	dirs  map[point.Axis]bool
}

func newFakeStepper() *fakeStepper {
	return &fakeStepper{steps: map[point.Axis]int64{}, dirs: map[point.Axis]bool{}}
}

func (f *fakeStepper) SetDirection(axis point.Axis, positive bool) { f.dirs[axis] = positive }
func (f *fakeStepper) Step(axis point.Axis)                        { f.steps[axis]++ }
func (f *fakeStepper) Enable(axis point.Axis, on bool)             {}

func testProfile() Profile {
	u := point.Units{X: 800, Y: 800, Z: 800, A: 800, B: 800}
	return Profile{Units: u, SlowFeedrate: 100, EaseInOut: true, EaseInterleaf: 1}
}

func TestPlanRejectsZeroMove(t *testing.T) {
	p := testProfile()
	_, err := Plan(p, point.StepPoint{}, point.StepPoint{}, 1000)
	if err != ErrZeroMove {
		t.Fatalf("got %v, want ErrZeroMove", err)
	}
}

func TestStepCountsMatchDominantAxis(t *testing.T) {
	p := testProfile()
	start := point.StepPoint{}
	end := point.StepPoint{X: 800, Y: 400}
	seg, err := Plan(p, start, end, 1000)
	if err != nil {
		t.Fatal(err)
	}
	stepper := newFakeStepper()
	ends := &Endstops{}
	n, blocked := seg.Step(context.Background(), stepper, ends, nil)
	if blocked {
		t.Fatal("unexpected endstop block")
	}
	if n != 800 {
		t.Fatalf("stepsDone = %d, want 800", n)
	}
	if stepper.steps[point.X] != 800 {
		t.Errorf("X steps = %d, want 800", stepper.steps[point.X])
	}
	if stepper.steps[point.Y] != 400 {
		t.Errorf("Y steps = %d, want 400 (half the dominant axis)", stepper.steps[point.Y])
	}
}

func TestEndstopInterruptsSegment(t *testing.T) {
	p := testProfile()
	seg, err := Plan(p, point.StepPoint{}, point.StepPoint{X: 800}, 1000)
	if err != nil {
		t.Fatal(err)
	}
	stepper := newFakeStepper()
	ends := &Endstops{Hit: XHighHit}
	n, blocked := seg.Step(context.Background(), stepper, ends, nil)
	if !blocked {
		t.Fatal("expected endstop to block the move")
	}
	if n != 800 {
		t.Errorf("stepsDone = %d, want 800 (the segment still runs to completion)", n)
	}
	if stepper.steps[point.X] != 0 {
		t.Errorf("X steps = %d, want 0: the endstop was already tripped at the start", stepper.steps[point.X])
	}
}

// TestEndstopBlocksOnlyAffectedAxis exercises a multi-axis segment
// where X's endstop is tripped from the start: X must never step, but
// the unrelated Y axis should still complete its own delta in full,
// per live = OR(all can_step flags) rather than the whole segment
// aborting on the first blocked axis.
func TestEndstopBlocksOnlyAffectedAxis(t *testing.T) {
	p := testProfile()
	seg, err := Plan(p, point.StepPoint{}, point.StepPoint{X: 800, Y: 400}, 1000)
	if err != nil {
		t.Fatal(err)
	}
	stepper := newFakeStepper()
	ends := &Endstops{Hit: XHighHit}
	n, blocked := seg.Step(context.Background(), stepper, ends, nil)
	if !blocked {
		t.Fatal("expected X's endstop to report a block")
	}
	if n != 800 {
		t.Errorf("stepsDone = %d, want 800", n)
	}
	if stepper.steps[point.X] != 0 {
		t.Errorf("X steps = %d, want 0", stepper.steps[point.X])
	}
	if stepper.steps[point.Y] != 400 {
		t.Errorf("Y steps = %d, want 400: Y is unrelated to X's endstop and should finish", stepper.steps[point.Y])
	}
}

func TestCancelledContextAbortsSegment(t *testing.T) {
	p := testProfile()
	seg, err := Plan(p, point.StepPoint{}, point.StepPoint{X: 800}, 1000)
	if err != nil {
		t.Fatal(err)
	}
	stepper := newFakeStepper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, blocked := seg.Step(ctx, stepper, &Endstops{}, nil)
	if blocked {
		t.Fatal("cancellation should not report as an endstop block")
	}
	if n != 0 {
		t.Errorf("stepsDone = %d, want 0 on immediate cancellation", n)
	}
}

func TestStepsTakenReflectsPartialMove(t *testing.T) {
	p := testProfile()
	seg, err := Plan(p, point.StepPoint{}, point.StepPoint{X: -800, Y: 400}, 1000)
	if err != nil {
		t.Fatal(err)
	}
	stepper := newFakeStepper()
	ends := &Endstops{}
	n, blocked := seg.Step(context.Background(), stepper, ends, nil)
	if blocked || n != 800 {
		t.Fatalf("stepsDone=%d blocked=%v, want 800/false", n, blocked)
	}
	taken := seg.StepsTaken()
	if taken.X != -800 {
		t.Errorf("X taken = %d, want -800", taken.X)
	}
	if taken.Y != 400 {
		t.Errorf("Y taken = %d, want 400", taken.Y)
	}
}

func TestEaseInOutRampsFeedrate(t *testing.T) {
	p := testProfile()
	seg, err := Plan(p, point.StepPoint{}, point.StepPoint{X: 8000}, 1000)
	if err != nil {
		t.Fatal(err)
	}
	first := seg.currentFeedrate(0)
	mid := seg.currentFeedrate(seg.totalSteps / 2)
	last := seg.currentFeedrate(seg.totalSteps - 1)
	if first >= mid {
		t.Errorf("expected ease-in: first=%v should be < mid=%v", first, mid)
	}
	if last >= mid {
		t.Errorf("expected ease-out: last=%v should be < mid=%v", last, mid)
	}
}
