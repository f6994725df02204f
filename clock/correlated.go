package clock

import (
	"fmt"
	"math"
)

const (
	defaultCorrelatedTickRate = 1000.0
	defaultSpeed              = 1.0
)

// CorrelatedClockOptions configures NewCorrelatedClock. Zero values
// take the spec's documented defaults (TickRate 1000, Speed 1,
// Correlation the all-zero value).
type CorrelatedClockOptions struct {
	TickRate    float64
	Speed       float64
	HasSpeed    bool // distinguishes an explicit speed of 0 from "unset"
	Correlation Correlation
}

// CorrelatedClock is a non-root node defined by a linear relationship
// to its parent: correlation, speed and tickRate, all mutable, with
// change notification on every mutation.
type CorrelatedClock struct {
	base

	parent      Clock
	tickRate    float64
	speed       float64
	correlation Correlation

	parentSubs parentSubscriptions
}

// parentSubscriptions tracks the listener tokens a child has
// installed on its current parent, so they can be detached cleanly
// when the child is reparented elsewhere.
type parentSubscriptions struct {
	parent      Clock
	change      Subscription
	available   Subscription
	unavailable Subscription
}

// NewCorrelatedClock builds a clock whose time is a linear function of
// parent's. parent must be non-nil.
func NewCorrelatedClock(parent Clock, opts CorrelatedClockOptions) (*CorrelatedClock, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: correlated clock requires a non-nil parent", ErrInvalidArgument)
	}
	tickRate := opts.TickRate
	if tickRate == 0 {
		tickRate = defaultCorrelatedTickRate
	}
	if tickRate <= 0 {
		return nil, fmt.Errorf("%w: tickRate must be > 0, got %v", ErrInvalidArgument, tickRate)
	}
	speed := defaultSpeed
	if opts.HasSpeed {
		speed = opts.Speed
	}

	c := &CorrelatedClock{
		base:        newBase(newClockID("correlated")),
		parent:      parent,
		tickRate:    tickRate,
		speed:       speed,
		correlation: opts.Correlation,
	}
	c.self = c
	c.subscribeToParent(parent)
	return c, nil
}

func (c *CorrelatedClock) Parent() Clock { return c.parent }

func (c *CorrelatedClock) TickRate() float64 { return c.tickRate }

func (c *CorrelatedClock) SetTickRate(v float64) error {
	if v <= 0 {
		return fmt.Errorf("%w: tickRate must be > 0, got %v", ErrInvalidArgument, v)
	}
	c.tickRate = v
	c.fireChange()
	return nil
}

func (c *CorrelatedClock) Speed() float64 { return c.speed }

func (c *CorrelatedClock) SetSpeed(v float64) error {
	c.speed = v
	c.fireChange()
	return nil
}

// Correlation returns the clock's current correlation.
func (c *CorrelatedClock) Correlation() Correlation { return c.correlation }

// SetCorrelation replaces the correlation and emits exactly one
// change.
func (c *CorrelatedClock) SetCorrelation(next Correlation) error {
	c.correlation = next
	c.fireChange()
	return nil
}

// SetCorrelationAndSpeed updates both atomically, emitting exactly
// one change.
func (c *CorrelatedClock) SetCorrelationAndSpeed(next Correlation, speed float64) error {
	c.correlation = next
	c.speed = speed
	c.fireChange()
	return nil
}

func (c *CorrelatedClock) SetParent(p Clock) error {
	if p == nil {
		return fmt.Errorf("%w: correlated clock requires a non-nil parent", ErrInvalidArgument)
	}
	c.unsubscribeFromParent()
	c.parent = p
	c.subscribeToParent(p)
	c.fireChange()
	return nil
}

func (c *CorrelatedClock) subscribeToParent(p Clock) {
	subs := parentSubscriptions{parent: p}
	subs.change = p.On(EventChange, func(Clock) { c.fireChange() })
	subs.available = p.On(EventAvailable, func(Clock) {
		if c.availFlag {
			c.fireAvailability(EventAvailable)
		}
	})
	subs.unavailable = p.On(EventUnavailable, func(Clock) {
		if c.availFlag {
			c.fireAvailability(EventUnavailable)
		}
	})
	c.parentSubs = subs
}

func (c *CorrelatedClock) unsubscribeFromParent() {
	subs := c.parentSubs
	if subs.parent == nil {
		return
	}
	subs.parent.Off(EventChange, subs.change)
	subs.parent.Off(EventAvailable, subs.available)
	subs.parent.Off(EventUnavailable, subs.unavailable)
	c.parentSubs = parentSubscriptions{}
}

func (c *CorrelatedClock) SetAvailabilityFlag(v bool) error {
	was := c.IsAvailable()
	c.availFlag = v
	now := c.IsAvailable()
	if was == now {
		return nil
	}
	if now {
		c.fireAvailability(EventAvailable)
	} else {
		c.fireAvailability(EventUnavailable)
	}
	return nil
}

// Now returns c.correlation.ChildTime + (parent.Now() -
// c.correlation.ParentTime) * tickRate * speed / parent.TickRate().
func (c *CorrelatedClock) Now() float64 {
	v, err := c.FromParentTime(c.parent.Now())
	if err != nil {
		return math.NaN()
	}
	return v
}

func (c *CorrelatedClock) FromParentTime(pt float64) (float64, error) {
	pr := c.parent.TickRate()
	return c.correlation.ChildTime + (pt-c.correlation.ParentTime)*c.tickRate*c.speed/pr, nil
}

// ToParentTime is the piecewise inverse of FromParentTime: undefined
// (NaN) for every t other than the pivot when speed is 0, since a
// paused child maps the whole parent half-line onto a single child
// value.
func (c *CorrelatedClock) ToParentTime(t float64) (float64, error) {
	if c.speed == 0 {
		if t == c.correlation.ChildTime {
			return c.correlation.ParentTime, nil
		}
		return math.NaN(), nil
	}
	pr := c.parent.TickRate()
	return c.correlation.ParentTime + (t-c.correlation.ChildTime)*pr/(c.tickRate*c.speed), nil
}

func (c *CorrelatedClock) CalcWhen(t float64) float64 {
	pt, err := c.ToParentTime(t)
	if err != nil || math.IsNaN(pt) {
		return math.NaN()
	}
	return c.parent.CalcWhen(pt)
}

// errorAtTime applies the correlation's error model:
// initialError + |toParentTime(t) - parentTime| / parentTickRate * errorGrowthRate.
func (c *CorrelatedClock) errorAtTime(t float64) float64 {
	pt, err := c.ToParentTime(t)
	if err != nil || math.IsNaN(pt) {
		return math.NaN()
	}
	pr := c.parent.TickRate()
	return c.correlation.InitialError + math.Abs(pt-c.correlation.ParentTime)/pr*c.correlation.ErrorGrowthRate
}

func (c *CorrelatedClock) OwnDispersionAtTime(t float64) float64 {
	return c.errorAtTime(t)
}

// RebaseCorrelationAt re-expresses the current mapping pivoting at
// child time t, carrying forward the currently-estimated error as the
// new initial error. now() and every other reading are unchanged by
// this operation; only the correlation's internal parametrization
// changes.
func (c *CorrelatedClock) RebaseCorrelationAt(t float64) error {
	pt, err := c.ToParentTime(t)
	if err != nil {
		return err
	}
	next := NewCorrelation(pt, t, c.errorAtTime(t), c.correlation.ErrorGrowthRate)
	return c.SetCorrelation(next)
}

// QuantifySignedChange returns the signed seconds difference that
// replacing (correlation, speed) with (newCorr, newSpeed) would
// introduce at the instant of the change.
func (c *CorrelatedClock) QuantifySignedChange(newCorr Correlation, newSpeed float64) float64 {
	if newSpeed != c.speed {
		if newSpeed > c.speed {
			return math.Inf(1)
		}
		return math.Inf(-1)
	}
	pr := c.parent.TickRate()
	if newSpeed != 0 {
		curParentTime, err := c.ToParentTime(newCorr.ChildTime)
		if err != nil {
			curParentTime = math.NaN()
		}
		return (newCorr.ParentTime - curParentTime) / pr
	}
	curChildTime, err := c.FromParentTime(newCorr.ParentTime)
	if err != nil {
		curChildTime = math.NaN()
	}
	return (newCorr.ChildTime - curChildTime) / c.tickRate
}

// QuantifyChange is the absolute value of QuantifySignedChange.
func (c *CorrelatedClock) QuantifyChange(newCorr Correlation, newSpeed float64) float64 {
	return math.Abs(c.QuantifySignedChange(newCorr, newSpeed))
}

// IsChangeSignificant reports whether the change (newCorr, newSpeed)
// would introduce exceeds threshold seconds.
func (c *CorrelatedClock) IsChangeSignificant(newCorr Correlation, newSpeed, threshold float64) bool {
	return c.QuantifyChange(newCorr, newSpeed) > threshold
}

func (c *CorrelatedClock) hostClock() HostClock { return c.parent.hostClock() }
