// Package clock models hierarchies of software clocks whose value at
// any instant is a piecewise-linear function of a parent clock, the
// way DVB CSS / HbbTV 2 companion-screen synchronization does. See
// SPEC_FULL.md at the module root for the full design.
package clock

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Clock is the contract every node in a clock tree satisfies. The
// only concrete implementations in this package are *RootClock,
// *CorrelatedClock and *OffsetClock; Clock carries an unexported
// method so it cannot be implemented outside this package — there is
// no supported way to plug in a fourth kind of node.
type Clock interface {
	// ID is the clock's unique, creation-order-assigned identifier.
	ID() string

	// Now returns the current tick count in this clock's own ticks.
	Now() float64

	// TickRate returns ticks per second. Always positive.
	TickRate() float64

	// SetTickRate changes the tick rate. Root and offset clocks
	// reject this with ErrImmutable; a non-positive value is
	// ErrInvalidArgument.
	SetTickRate(v float64) error

	// Speed returns the rate multiplier versus the parent's effective
	// tick frame. A root clock always returns 1.
	Speed() float64

	// SetSpeed changes the speed multiplier. Root and offset clocks
	// reject this with ErrImmutable.
	SetSpeed(v float64) error

	// EffectiveSpeed is the product of Speed() from this clock up to
	// and including its root.
	EffectiveSpeed() float64

	// Parent returns the parent node, or nil for a root.
	Parent() Clock

	// SetParent reparents this clock. Root clocks reject this with
	// ErrImmutable; correlated and offset clocks reject a nil parent
	// with ErrInvalidArgument.
	SetParent(p Clock) error

	// Root walks Parent() to the topmost node; returns self if none.
	Root() Clock

	// Ancestry returns self and every ancestor, self first, root last.
	Ancestry() []Clock

	// ToParentTime converts t (in this clock's ticks) to the
	// parent's ticks. Fails with ErrNoParent on a root.
	ToParentTime(t float64) (float64, error)

	// FromParentTime converts t (in the parent's ticks) to this
	// clock's ticks. Fails with ErrNoParent on a root.
	FromParentTime(t float64) (float64, error)

	// ToRootTime recursively composes ToParentTime up to the root.
	ToRootTime(t float64) float64

	// FromRootTime recursively composes FromParentTime down from the
	// root to this clock.
	FromRootTime(t float64) float64

	// ToOtherClockTime converts t from this clock to other's ticks by
	// walking up to the nearest common ancestor and back down. Fails
	// with ErrNoCommonAncestor when the two clocks' ancestries never
	// meet.
	ToOtherClockTime(other Clock, t float64) (float64, error)

	// CalcWhen returns the host wall-time instant (in the same frame
	// as the host's NowMillis) at which this clock will read t.
	CalcWhen(t float64) float64

	// AvailabilityFlag returns this clock's own availability flag,
	// ignoring its ancestry.
	AvailabilityFlag() bool

	// SetAvailabilityFlag sets this clock's own flag. Root clocks
	// reject false with ErrImmutable.
	SetAvailabilityFlag(v bool) error

	// IsAvailable returns AvailabilityFlag() && parent effective
	// availability (true if root).
	IsAvailable() bool

	// OwnDispersionAtTime returns this clock's own error contribution
	// at t, excluding any ancestor's dispersion.
	OwnDispersionAtTime(t float64) float64

	// DispersionAtTime is OwnDispersionAtTime(t) plus the parent's
	// dispersion at ToParentTime(t).
	DispersionAtTime(t float64) float64

	// RootMaxFreqErrorPpm forwards to the root's configured value.
	RootMaxFreqErrorPpm() float64

	// ClockDiff quantifies the seconds of divergence between this
	// clock and other; +Inf if their effective speed or tick rate
	// differ.
	ClockDiff(other Clock) float64

	// SetAtTime schedules fn to run the first moment this clock
	// reads >= when (in its own ticks), preserving args.
	SetAtTime(fn TimerFunc, when float64, args ...interface{}) TimerHandle

	// SetTimeout is SetAtTime(fn, Now()+deltaTicks, args...).
	SetTimeout(fn TimerFunc, deltaTicks float64, args ...interface{}) TimerHandle

	// ClearTimeout cancels a pending timer. Unknown handles are a
	// no-op.
	ClearTimeout(h TimerHandle)

	// On subscribes fn to future emissions of kind, returning a token
	// Off can later use to detach it.
	On(kind EventKind, fn Listener) Subscription

	// Off detaches a listener previously registered with On.
	Off(kind EventKind, sub Subscription)

	// hostClock reaches the HostClock backing this tree's root. It is
	// unexported because only this package's own node types need to
	// reach through to the root's real-time facility.
	hostClock() HostClock
}

// Subscription is the token returned by Clock.On.
type Subscription = subscription

// nextClockID hands out monotonically increasing clock ids.
var nextClockID uint64

func newClockID(prefix string) string {
	n := atomic.AddUint64(&nextClockID, 1)
	return fmt.Sprintf("%s-%d", prefix, n)
}

// base holds the state and shared machinery every concrete clock
// owns: identity, availability, event fan-out, the timer registry,
// and a reference to the owning clock itself.
//
// That last field is what lets base implement the ancestry-walking
// and composition operations (Ancestry, ToRootTime, ClockDiff, ...)
// once instead of three times: Go embedding gives base no visibility
// into the concrete type wrapping it, so each constructor stores its
// own *CorrelatedClock/*RootClock/*OffsetClock back into base.self
// right after construction, and base's methods call through that
// interface value to reach the concrete Parent()/Speed()/ToParentTime
// overrides. Concrete types still implement the handful of methods
// that are genuinely type-specific (Now, ToParentTime, ...); base
// supplies everything expressible purely in terms of those.
type base struct {
	id        string
	self      Clock
	availFlag bool
	events    *eventBus
	timers    *timerRegistry
}

func newBase(id string) base {
	return base{
		id:        id,
		availFlag: true,
		events:    newEventBus(),
		timers:    newTimerRegistry(),
	}
}

func (b *base) ID() string             { return b.id }
func (b *base) AvailabilityFlag() bool { return b.availFlag }

func (b *base) IsAvailable() bool {
	p := b.self.Parent()
	if p == nil {
		return b.availFlag
	}
	return b.availFlag && p.IsAvailable()
}

func (b *base) EffectiveSpeed() float64          { return effectiveSpeedOf(b.self) }
func (b *base) Root() Clock                      { return rootOf(b.self) }
func (b *base) Ancestry() []Clock                { return ancestryOf(b.self) }
func (b *base) ToRootTime(t float64) float64     { return toRootTimeOf(b.self, t) }
func (b *base) FromRootTime(t float64) float64   { return fromRootTimeOf(b.self, t) }
func (b *base) DispersionAtTime(t float64) float64 { return dispersionAtTimeOf(b.self, t) }
func (b *base) ClockDiff(other Clock) float64    { return clockDiffOf(b.self, other) }

func (b *base) ToOtherClockTime(other Clock, t float64) (float64, error) {
	return toOtherClockTimeOf(b.self, other, t)
}

func (b *base) RootMaxFreqErrorPpm() float64 {
	return b.self.Root().RootMaxFreqErrorPpm()
}

func (b *base) SetAtTime(fn TimerFunc, when float64, args ...interface{}) TimerHandle {
	return setAtTime(b.self, b.timers, fn, when, args...)
}

func (b *base) SetTimeout(fn TimerFunc, deltaTicks float64, args ...interface{}) TimerHandle {
	return b.SetAtTime(fn, b.self.Now()+deltaTicks, args...)
}

func (b *base) ClearTimeout(h TimerHandle) {
	clearTimeout(b.self, b.timers, h)
}

func (b *base) On(kind EventKind, fn Listener) Subscription {
	return b.events.on(kind, fn)
}

func (b *base) Off(kind EventKind, sub Subscription) {
	b.events.off(kind, sub)
}

// fireChange emits EventChange on self and reschedules self's own
// pending timers against the now-current mapping: any timer armed
// against the stale mapping is canceled, its deadline recomputed, and
// rearmed if still finite.
func (b *base) fireChange() {
	b.events.emit(EventChange, b.self)
	b.timers.rescheduleAll(b.self)
}

// fireAvailability emits EventAvailable or EventUnavailable on self.
func (b *base) fireAvailability(kind EventKind) {
	b.events.emit(kind, b.self)
}

// ancestryOf returns self and every ancestor, self first, root last.
func ancestryOf(self Clock) []Clock {
	chain := []Clock{self}
	for c := self.Parent(); c != nil; c = c.Parent() {
		chain = append(chain, c)
	}
	return chain
}

// rootOf walks self's ancestry to the topmost node.
func rootOf(self Clock) Clock {
	c := self
	for c.Parent() != nil {
		c = c.Parent()
	}
	return c
}

// effectiveSpeedOf is the product of Speed() from self up to and
// including the root.
func effectiveSpeedOf(self Clock) float64 {
	s := 1.0
	for c := self; c != nil; c = c.Parent() {
		s *= c.Speed()
	}
	return s
}

// toRootTimeOf recursively composes ToParentTime from self to the
// root. A root returns t unchanged.
func toRootTimeOf(self Clock, t float64) float64 {
	c := self
	for c.Parent() != nil {
		nt, err := c.ToParentTime(t)
		if err != nil {
			return t
		}
		t = nt
		c = c.Parent()
	}
	return t
}

// fromRootTimeOf composes FromParentTime down from the root to self.
func fromRootTimeOf(self Clock, t float64) float64 {
	anc := ancestryOf(self)
	for i := len(anc) - 2; i >= 0; i-- {
		nt, err := anc[i].FromParentTime(t)
		if err != nil {
			return t
		}
		t = nt
	}
	return t
}

// toOtherClockTimeOf converts between two clocks with a common
// ancestor: strip the shared ancestor tail (by identity) from both
// chains, walk up the surviving part of self's chain applying
// ToParentTime, then walk down the reversed surviving part of other's
// chain applying
// FromParentTime.
func toOtherClockTimeOf(self, other Clock, t float64) (float64, error) {
	selfAnc := ancestryOf(self)
	otherAnc := ancestryOf(other)

	otherIndex := make(map[Clock]int, len(otherAnc))
	for i, c := range otherAnc {
		otherIndex[c] = i
	}

	commonSelf, commonOther := -1, -1
	for i, c := range selfAnc {
		if j, ok := otherIndex[c]; ok {
			commonSelf, commonOther = i, j
			break
		}
	}
	if commonSelf == -1 {
		return math.NaN(), ErrNoCommonAncestor
	}

	v := t
	for i := 0; i < commonSelf; i++ {
		nt, err := selfAnc[i].ToParentTime(v)
		if err != nil {
			return math.NaN(), err
		}
		v = nt
	}
	for i := commonOther - 1; i >= 0; i-- {
		nt, err := otherAnc[i].FromParentTime(v)
		if err != nil {
			return math.NaN(), err
		}
		v = nt
	}
	return v, nil
}

// dispersionAtTimeOf is self's own error at t plus its parent's
// dispersion at self.ToParentTime(t).
func dispersionAtTimeOf(self Clock, t float64) float64 {
	own := self.OwnDispersionAtTime(t)
	p := self.Parent()
	if p == nil {
		return own
	}
	pt, err := self.ToParentTime(t)
	if err != nil || math.IsNaN(pt) {
		return math.NaN()
	}
	return own + dispersionAtTimeOf(p, pt)
}

// clockDiffOf returns +Inf if self and other's effective speed or
// tick rate differ, else the absolute seconds between their readings
// of self's root's current moment.
func clockDiffOf(self, other Clock) float64 {
	if effectiveSpeedOf(self) != effectiveSpeedOf(other) {
		return math.Inf(1)
	}
	if self.TickRate() != other.TickRate() {
		return math.Inf(1)
	}
	root := rootOf(self)
	now := root.Now()
	a := fromRootTimeOf(self, now)
	b := fromRootTimeOf(other, now)
	return math.Abs(a-b) / self.TickRate()
}
