package clock

import (
	"math"
	"testing"
)

// newScenarioRoot builds the root.tickRate=1,000,000 host the
// concrete scenarios below share.
func newScenarioRoot(t *testing.T) (*mockHost, *RootClock) {
	t.Helper()
	host := newMockHost()
	root, err := NewRootClock(host, RootClockOptions{TickRate: 1_000_000})
	if err != nil {
		t.Fatalf("NewRootClock: %v", err)
	}
	return host, root
}

// TestCorrelatedClockScenario1 checks a correlated clock's reading
// tracks its parent linearly at unity speed as the host advances.
func TestCorrelatedClockScenario1(t *testing.T) {
	host, root := newScenarioRoot(t)
	child, err := NewCorrelatedClock(root, CorrelatedClockOptions{
		TickRate:    1000,
		HasSpeed:    true,
		Speed:       1,
		Correlation: NewCorrelation(0, 300, 0, 0),
	})
	if err != nil {
		t.Fatalf("NewCorrelatedClock: %v", err)
	}

	host.advance(5020.8)
	if got, want := child.Now(), 5320.8; math.Abs(got-want) > 1e-9 {
		t.Fatalf("child.Now() = %v, want %v", got, want)
	}

	host.advance(5043.5 - 5020.8)
	if got, want := child.Now(), 5343.5; math.Abs(got-want) > 1e-9 {
		t.Fatalf("child.Now() after advance = %v, want %v", got, want)
	}
}

// TestCorrelatedClockScenario2 checks that replacing the correlation
// re-pivots the clock's reading around the new (parentTime, childTime)
// pair.
func TestCorrelatedClockScenario2(t *testing.T) {
	host, root := newScenarioRoot(t)
	child, err := NewCorrelatedClock(root, CorrelatedClockOptions{
		TickRate:    1000,
		HasSpeed:    true,
		Speed:       1,
		Correlation: NewCorrelation(0, 300, 0, 0),
	})
	if err != nil {
		t.Fatalf("NewCorrelatedClock: %v", err)
	}
	host.advance(5020.8)

	if err := child.SetCorrelation(NewCorrelation(50_000, 320, 0, 0)); err != nil {
		t.Fatalf("SetCorrelation: %v", err)
	}
	if got, want := child.Now(), 5290.8; math.Abs(got-want) > 1e-9 {
		t.Fatalf("child.Now() = %v, want %v", got, want)
	}
}

// TestCorrelatedClockRebase checks that rebasing a correlation around
// a new pivot child time changes only the correlation's internal
// parametrization, leaving Now() unaffected.
func TestCorrelatedClockRebase(t *testing.T) {
	parent, err := NewRootClock(newMockHost(), RootClockOptions{TickRate: 1000})
	if err != nil {
		t.Fatalf("NewRootClock: %v", err)
	}
	child, err := NewCorrelatedClock(parent, CorrelatedClockOptions{
		TickRate:    1000,
		HasSpeed:    true,
		Speed:       1,
		Correlation: NewCorrelation(50, 300, 0, 0),
	})
	if err != nil {
		t.Fatalf("NewCorrelatedClock: %v", err)
	}

	before := child.Now()
	if err := child.RebaseCorrelationAt(400); err != nil {
		t.Fatalf("RebaseCorrelationAt: %v", err)
	}

	want := NewCorrelation(150, 400, 0, 0)
	if !child.Correlation().Equal(want) {
		t.Fatalf("correlation after rebase = %+v, want %+v", child.Correlation(), want)
	}
	if got := child.Now(); math.Abs(got-before) > 1e-9 {
		t.Fatalf("rebase changed now(): before=%v after=%v", before, got)
	}
}

// TestCorrelatedClockQuantifyChange checks QuantifyChange's two
// regimes: an infinite jump on a speed change, and a finite seconds
// delta when only the correlation moves at a fixed (zero) speed.
func TestCorrelatedClockQuantifyChange(t *testing.T) {
	parent, err := NewRootClock(newMockHost(), RootClockOptions{TickRate: 1000})
	if err != nil {
		t.Fatalf("NewRootClock: %v", err)
	}
	child, err := NewCorrelatedClock(parent, CorrelatedClockOptions{
		TickRate:    1000,
		HasSpeed:    true,
		Speed:       1,
		Correlation: NewCorrelation(0, 0, 0, 0),
	})
	if err != nil {
		t.Fatalf("NewCorrelatedClock: %v", err)
	}

	if got := child.QuantifyChange(NewCorrelation(0, 0, 0, 0), 1.01); !math.IsInf(got, 1) {
		t.Fatalf("QuantifyChange with a speed increase = %v, want +Inf", got)
	}

	if err := child.SetSpeed(0); err != nil {
		t.Fatalf("SetSpeed(0): %v", err)
	}
	if got, want := child.QuantifyChange(NewCorrelation(0, 5, 0, 0), 0), 0.005; math.Abs(got-want) > 1e-9 {
		t.Fatalf("QuantifyChange (paused) = %v, want %v", got, want)
	}
}

func TestCorrelatedClockToParentFromParentRoundtrip(t *testing.T) {
	_, root := newScenarioRoot(t)
	child, err := NewCorrelatedClock(root, CorrelatedClockOptions{
		TickRate:    48000,
		HasSpeed:    true,
		Speed:       1,
		Correlation: NewCorrelation(10_000, 77, 0, 0),
	})
	if err != nil {
		t.Fatalf("NewCorrelatedClock: %v", err)
	}

	for _, tt := range []float64{0, 1000, -500, 123456.789} {
		pt, err := child.ToParentTime(tt)
		if err != nil {
			t.Fatalf("ToParentTime(%v): %v", tt, err)
		}
		back, err := child.FromParentTime(pt)
		if err != nil {
			t.Fatalf("FromParentTime(%v): %v", pt, err)
		}
		if math.Abs(back-tt) > 1e-6 {
			t.Fatalf("roundtrip t=%v -> pt=%v -> back=%v", tt, pt, back)
		}
	}
}

func TestCorrelatedClockPausedToParentTimeIsNaNExceptPivot(t *testing.T) {
	_, root := newScenarioRoot(t)
	child, err := NewCorrelatedClock(root, CorrelatedClockOptions{
		TickRate:    1000,
		HasSpeed:    true,
		Speed:       0,
		Correlation: NewCorrelation(10, 20, 0, 0),
	})
	if err != nil {
		t.Fatalf("NewCorrelatedClock: %v", err)
	}

	if pt, err := child.ToParentTime(20); err != nil || pt != 10 {
		t.Fatalf("ToParentTime at pivot = (%v, %v), want (10, nil)", pt, err)
	}
	pt, err := child.ToParentTime(21)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(pt) {
		t.Fatalf("ToParentTime off pivot while paused = %v, want NaN", pt)
	}
}

func TestCorrelatedClockChangePropagatesToDescendant(t *testing.T) {
	_, root := newScenarioRoot(t)
	mid, err := NewCorrelatedClock(root, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})
	if err != nil {
		t.Fatalf("NewCorrelatedClock mid: %v", err)
	}
	leaf, err := NewCorrelatedClock(mid, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})
	if err != nil {
		t.Fatalf("NewCorrelatedClock leaf: %v", err)
	}

	var midChanges, leafChanges int
	mid.On(EventChange, func(Clock) { midChanges++ })
	leaf.On(EventChange, func(Clock) { leafChanges++ })

	if err := mid.SetCorrelation(NewCorrelation(1, 2, 0, 0)); err != nil {
		t.Fatalf("SetCorrelation: %v", err)
	}

	if midChanges != 1 {
		t.Fatalf("midChanges = %d, want 1", midChanges)
	}
	if leafChanges != 1 {
		t.Fatalf("leafChanges = %d, want 1 (change must propagate to descendants)", leafChanges)
	}
}

func TestCorrelatedClockSetCorrelationAndSpeedFiresOnce(t *testing.T) {
	_, root := newScenarioRoot(t)
	child, err := NewCorrelatedClock(root, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})
	if err != nil {
		t.Fatalf("NewCorrelatedClock: %v", err)
	}

	var changes int
	child.On(EventChange, func(Clock) { changes++ })

	if err := child.SetCorrelationAndSpeed(NewCorrelation(1, 2, 0, 0), 2); err != nil {
		t.Fatalf("SetCorrelationAndSpeed: %v", err)
	}
	if changes != 1 {
		t.Fatalf("changes = %d, want exactly 1", changes)
	}
	if child.Speed() != 2 {
		t.Fatalf("Speed() = %v, want 2", child.Speed())
	}
}

func TestCorrelatedClockAvailabilityRequiresOwnFlag(t *testing.T) {
	_, root := newScenarioRoot(t)
	child, err := NewCorrelatedClock(root, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})
	if err != nil {
		t.Fatalf("NewCorrelatedClock: %v", err)
	}

	if err := child.SetAvailabilityFlag(false); err != nil {
		t.Fatalf("SetAvailabilityFlag(false): %v", err)
	}

	var fired bool
	child.On(EventAvailable, func(Clock) { fired = true })
	if err := child.SetAvailabilityFlag(false); err != nil {
		t.Fatalf("SetAvailabilityFlag(false) again: %v", err)
	}
	if fired {
		t.Fatalf("setting the same flag value must not re-fire an event")
	}
	if err := child.SetAvailabilityFlag(true); err != nil {
		t.Fatalf("SetAvailabilityFlag(true): %v", err)
	}
	if !fired {
		t.Fatalf("flipping the flag back to true should fire available")
	}
}

func TestCorrelatedClockReparentDetachesOldListeners(t *testing.T) {
	_, root := newScenarioRoot(t)
	oldParent, err := NewCorrelatedClock(root, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})
	if err != nil {
		t.Fatalf("NewCorrelatedClock oldParent: %v", err)
	}
	newParent, err := NewCorrelatedClock(root, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})
	if err != nil {
		t.Fatalf("NewCorrelatedClock newParent: %v", err)
	}
	child, err := NewCorrelatedClock(oldParent, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})
	if err != nil {
		t.Fatalf("NewCorrelatedClock child: %v", err)
	}

	if err := child.SetParent(newParent); err != nil {
		t.Fatalf("SetParent: %v", err)
	}

	var changes int
	child.On(EventChange, func(Clock) { changes++ })

	if err := oldParent.SetCorrelation(NewCorrelation(5, 5, 0, 0)); err != nil {
		t.Fatalf("SetCorrelation on old parent: %v", err)
	}
	if changes != 0 {
		t.Fatalf("changes from detached old parent = %d, want 0", changes)
	}

	if err := newParent.SetCorrelation(NewCorrelation(5, 5, 0, 0)); err != nil {
		t.Fatalf("SetCorrelation on new parent: %v", err)
	}
	if changes != 1 {
		t.Fatalf("changes from new parent = %d, want 1", changes)
	}
}
