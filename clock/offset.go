package clock

import "fmt"

// OffsetClock is a non-root node whose output is its parent's time
// shifted by a fixed real-world duration: useful to compensate for a
// fixed pipeline latency downstream of the parent.
// Speed is pinned at 1 and tickRate always mirrors the parent's —
// both setters reject with ErrImmutable.
type OffsetClock struct {
	base

	parent     Clock
	offsetMs   float64
	parentSubs parentSubscriptions
}

// OffsetClockOptions configures NewOffsetClock. Zero value is offset 0.
type OffsetClockOptions struct {
	OffsetMs float64
}

// NewOffsetClock builds a clock that reads parent's time shifted
// forward by opts.OffsetMs real-time milliseconds.
func NewOffsetClock(parent Clock, opts OffsetClockOptions) (*OffsetClock, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: offset clock requires a non-nil parent", ErrInvalidArgument)
	}
	c := &OffsetClock{
		base:     newBase(newClockID("offset")),
		parent:   parent,
		offsetMs: opts.OffsetMs,
	}
	c.self = c
	c.subscribeToParent(parent)
	return c, nil
}

func (c *OffsetClock) Parent() Clock { return c.parent }

// SetParent reparents the clock. Unlike speed/tickRate, parent is not
// pinned immutable for an offset clock: tickRate is derived live from
// c.parent.TickRate(), so reparenting keeps the tickRate==parent's
// invariant automatically.
func (c *OffsetClock) SetParent(p Clock) error {
	if p == nil {
		return fmt.Errorf("%w: offset clock requires a non-nil parent", ErrInvalidArgument)
	}
	c.unsubscribeFromParent()
	c.parent = p
	c.subscribeToParent(p)
	c.fireChange()
	return nil
}

func (c *OffsetClock) subscribeToParent(p Clock) {
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

func (c *OffsetClock) unsubscribeFromParent() {
	subs := c.parentSubs
	if subs.parent == nil {
		return
	}
	subs.parent.Off(EventChange, subs.change)
	subs.parent.Off(EventAvailable, subs.available)
	subs.parent.Off(EventUnavailable, subs.unavailable)
	c.parentSubs = parentSubscriptions{}
}

func (c *OffsetClock) TickRate() float64 { return c.parent.TickRate() }

func (c *OffsetClock) SetTickRate(float64) error {
	return fmt.Errorf("%w: offset clock tick rate always mirrors its parent", ErrImmutable)
}

func (c *OffsetClock) Speed() float64 { return 1 }

func (c *OffsetClock) SetSpeed(float64) error {
	return fmt.Errorf("%w: offset clock speed is always 1", ErrImmutable)
}

// Offset returns the configured offset in milliseconds.
func (c *OffsetClock) Offset() float64 { return c.offsetMs }

// SetOffset changes the offset, emitting change only if the value
// actually changed.
func (c *OffsetClock) SetOffset(ms float64) error {
	if ms == c.offsetMs {
		return nil
	}
	c.offsetMs = ms
	c.fireChange()
	return nil
}

// shift is the offset rendered in parent ticks: offset * effective
// speed * parent tick rate / 1000.
func (c *OffsetClock) shift() float64 {
	return c.offsetMs * c.EffectiveSpeed() * c.parent.TickRate() / 1000
}

func (c *OffsetClock) Now() float64 {
	return c.parent.Now() + c.shift()
}

func (c *OffsetClock) FromParentTime(t float64) (float64, error) {
	return t + c.shift(), nil
}

func (c *OffsetClock) ToParentTime(t float64) (float64, error) {
	return t - c.shift(), nil
}

// CalcWhen finds the host instant at which this clock reads t: that's
// the same instant the parent reads ToParentTime(t) = t - shift.
func (c *OffsetClock) CalcWhen(t float64) float64 {
	pt, _ := c.ToParentTime(t)
	return c.parent.CalcWhen(pt)
}

func (c *OffsetClock) SetAvailabilityFlag(v bool) error {
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

// OwnDispersionAtTime is 0: an offset clock introduces no error of
// its own beyond whatever its parent already carries.
func (c *OffsetClock) OwnDispersionAtTime(float64) float64 { return 0 }

func (c *OffsetClock) hostClock() HostClock { return c.parent.hostClock() }
