package clock

import (
	"errors"
	"math"
	"testing"
)

func mustRoot(t *testing.T, tickRate float64) (*mockHost, *RootClock) {
	t.Helper()
	host := newMockHost()
	root, err := NewRootClock(host, RootClockOptions{TickRate: tickRate})
	if err != nil {
		t.Fatalf("NewRootClock: %v", err)
	}
	return host, root
}

func mustCorrelated(t *testing.T, parent Clock, opts CorrelatedClockOptions) *CorrelatedClock {
	t.Helper()
	c, err := NewCorrelatedClock(parent, opts)
	if err != nil {
		t.Fatalf("NewCorrelatedClock: %v", err)
	}
	return c
}

func TestEffectiveSpeedIsProductAlongAncestry(t *testing.T) {
	_, root := mustRoot(t, 1000)
	a := mustCorrelated(t, root, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 2})
	b := mustCorrelated(t, a, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 3})

	if got, want := b.EffectiveSpeed(), 6.0; got != want {
		t.Fatalf("EffectiveSpeed() = %v, want %v", got, want)
	}
}

func TestAncestryOrderingAndRoot(t *testing.T) {
	_, root := mustRoot(t, 1000)
	a := mustCorrelated(t, root, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})
	b := mustCorrelated(t, a, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})

	anc := b.Ancestry()
	if len(anc) != 3 || anc[0] != Clock(b) || anc[1] != Clock(a) || anc[2] != Clock(root) {
		t.Fatalf("Ancestry() = %v, want [b, a, root]", anc)
	}
	if b.Root() != Clock(root) {
		t.Fatalf("Root() = %v, want root", b.Root())
	}
}

func TestToRootTimeMatchesLeftFoldOfToParentTime(t *testing.T) {
	_, root := mustRoot(t, 1000)
	a := mustCorrelated(t, root, CorrelatedClockOptions{
		TickRate: 500, HasSpeed: true, Speed: 1, Correlation: NewCorrelation(10, 0, 0, 0),
	})
	b := mustCorrelated(t, a, CorrelatedClockOptions{
		TickRate: 250, HasSpeed: true, Speed: 1, Correlation: NewCorrelation(5, 0, 0, 0),
	})

	const t0 = 42.0
	want, err := a.ToParentTime(t0)
	if err != nil {
		t.Fatalf("a.ToParentTime: %v", err)
	}
	want2, err := b.ToParentTime(t0)
	if err != nil {
		t.Fatalf("b.ToParentTime: %v", err)
	}
	want3, err := a.ToParentTime(want2)
	if err != nil {
		t.Fatalf("a.ToParentTime(b->parent): %v", err)
	}
	_ = want

	if got := b.ToRootTime(t0); math.Abs(got-want3) > 1e-9 {
		t.Fatalf("b.ToRootTime(%v) = %v, want %v", t0, got, want3)
	}
}

func TestFromRootTimeInvertsToRootTime(t *testing.T) {
	_, root := mustRoot(t, 1000)
	a := mustCorrelated(t, root, CorrelatedClockOptions{TickRate: 500, HasSpeed: true, Speed: 1})
	b := mustCorrelated(t, a, CorrelatedClockOptions{TickRate: 250, HasSpeed: true, Speed: 1})

	for _, tt := range []float64{0, 100, -50, 999.25} {
		rt := b.ToRootTime(tt)
		back := b.FromRootTime(rt)
		if math.Abs(back-tt) > 1e-6 {
			t.Fatalf("FromRootTime(ToRootTime(%v)) = %v", tt, back)
		}
	}
}

func TestToOtherClockTimeSharedAncestor(t *testing.T) {
	_, root := mustRoot(t, 1000)
	a := mustCorrelated(t, root, CorrelatedClockOptions{
		TickRate: 1000, HasSpeed: true, Speed: 1, Correlation: NewCorrelation(0, 100, 0, 0),
	})
	b := mustCorrelated(t, root, CorrelatedClockOptions{
		TickRate: 1000, HasSpeed: true, Speed: 1, Correlation: NewCorrelation(0, 200, 0, 0),
	})

	// a and b are siblings under root; a reads 100 ticks ahead of root
	// at the pivot, b reads 200 ahead, so a's t should map to b's t+100.
	got, err := a.ToOtherClockTime(b, 150)
	if err != nil {
		t.Fatalf("ToOtherClockTime: %v", err)
	}
	if want := 250.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("a.ToOtherClockTime(b, 150) = %v, want %v", got, want)
	}
}

// TestToOtherClockTimeNoCommonAncestor covers two independent trees
// (two separate root clocks) that never share an ancestor.
func TestToOtherClockTimeNoCommonAncestor(t *testing.T) {
	_, rootA := mustRoot(t, 1000)
	_, rootB := mustRoot(t, 1000)
	a := mustCorrelated(t, rootA, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})
	b := mustCorrelated(t, rootB, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})

	if _, err := a.ToOtherClockTime(b, 0); !errors.Is(err, ErrNoCommonAncestor) {
		t.Fatalf("expected ErrNoCommonAncestor, got %v", err)
	}
}

func TestDispersionAccumulatesUpAncestry(t *testing.T) {
	_, root := mustRoot(t, 1000)
	a := mustCorrelated(t, root, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})

	rootDispersion := root.DispersionAtTime(root.Now())
	childDispersion := a.DispersionAtTime(a.Now())

	if childDispersion < rootDispersion {
		t.Fatalf("child dispersion %v should be >= root's own %v", childDispersion, rootDispersion)
	}
}

func TestClockDiffInfiniteOnMismatchedTickRate(t *testing.T) {
	_, root := mustRoot(t, 1000)
	a := mustCorrelated(t, root, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})
	b := mustCorrelated(t, root, CorrelatedClockOptions{TickRate: 2000, HasSpeed: true, Speed: 1})

	if got := a.ClockDiff(b); !math.IsInf(got, 1) {
		t.Fatalf("ClockDiff with mismatched tick rates = %v, want +Inf", got)
	}
}

func TestClockDiffZeroForIdenticallyConfiguredSiblings(t *testing.T) {
	_, root := mustRoot(t, 1000)
	a := mustCorrelated(t, root, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})
	b := mustCorrelated(t, root, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})

	if got := a.ClockDiff(b); got != 0 {
		t.Fatalf("ClockDiff between identically-configured siblings = %v, want 0", got)
	}
}

func TestRootMaxFreqErrorPpmForwardsFromDescendant(t *testing.T) {
	_, r := mustRootWithFreqError(t, 75)
	a := mustCorrelated(t, r, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})
	b := mustCorrelated(t, a, CorrelatedClockOptions{TickRate: 1000, HasSpeed: true, Speed: 1})

	if got, want := b.RootMaxFreqErrorPpm(), 75.0; got != want {
		t.Fatalf("RootMaxFreqErrorPpm() = %v, want %v", got, want)
	}
}

func mustRootWithFreqError(t *testing.T, ppm float64) (*mockHost, *RootClock) {
	t.Helper()
	host := newMockHost()
	root, err := NewRootClock(host, RootClockOptions{MaxFreqErrorPpm: ppm})
	if err != nil {
		t.Fatalf("NewRootClock: %v", err)
	}
	return host, root
}
