package clock

import (
	"fmt"
	"math"
)

// HostClock is the real-time facility this package consumes but does
// not implement: a monotonic wall-time source and a one-shot
// real-time timer. internal/hostclock provides the
// production implementation over the machine clock; tests use
// github.com/benbjohnson/clock's mock instead.
type HostClock interface {
	// NowMillis returns monotonically non-decreasing real time in ms.
	NowMillis() float64

	// ScheduleAfter arms a one-shot timer that calls fn after at
	// least ms milliseconds, returning a handle Cancel can use.
	ScheduleAfter(ms float64, fn func()) HostTimerHandle

	// Cancel disarms a timer previously returned by ScheduleAfter.
	// Canceling an already-fired or already-canceled handle is a
	// no-op.
	Cancel(h HostTimerHandle)
}

// HostTimerHandle is an opaque handle to an armed host timer.
type HostTimerHandle interface{}

// TimerHandle identifies a pending Clock timer registration.
type TimerHandle string

// TimerFunc is a timer callback. args are the values passed to
// SetAtTime/SetTimeout at registration time, preserved verbatim.
type TimerFunc func(args ...interface{})

type timerEntry struct {
	when      float64 // target tick, in the owning clock's own ticks
	fn        TimerFunc
	args      []interface{}
	realArmed bool
	real      HostTimerHandle
}

// timerRegistry is the per-clock map from local handle to pending
// timer, plus the bookkeeping to (re)arm and cancel the matching host
// timer as the owning clock's mapping to real time changes.
type timerRegistry struct {
	next    uint64
	entries map[TimerHandle]*timerEntry
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{entries: make(map[TimerHandle]*timerEntry)}
}

func (r *timerRegistry) newHandle() TimerHandle {
	r.next++
	return TimerHandle(fmt.Sprintf("t-%d", r.next))
}

// msUntil computes the real-millisecond delay from the host's current
// instant until self reads `when`.
func msUntil(self Clock, when float64) float64 {
	root := rootOf(self)

	deltaRootTicks := toRootTimeOf(self, when) - root.Now()
	if deltaRootTicks == 0 {
		return 0
	}
	rootSpeed := root.Speed()
	if rootSpeed == 0 {
		return math.NaN()
	}
	return (deltaRootTicks / rootSpeed) * (1000 / root.TickRate())
}

// setAtTime schedules fn to run the first moment self reads >= when,
// in self's own ticks.
func setAtTime(self Clock, reg *timerRegistry, fn TimerFunc, when float64, args ...interface{}) TimerHandle {
	h := reg.newHandle()
	entry := &timerEntry{when: when, fn: fn, args: args}
	reg.entries[h] = entry
	arm(self, reg, h, entry)
	return h
}

// arm (re)computes the host delay for entry and arms a host timer if
// the delay is finite, canceling any timer already armed for it.
func arm(self Clock, reg *timerRegistry, h TimerHandle, entry *timerEntry) {
	disarm(self, entry)

	ms := msUntil(self, entry.when)
	if math.IsNaN(ms) {
		return
	}
	if ms < 0 {
		ms = 0
	}
	host := self.hostClock()
	entry.real = host.ScheduleAfter(ms, func() { fire(self, reg, h) })
	entry.realArmed = true
}

func disarm(self Clock, entry *timerEntry) {
	if !entry.realArmed {
		return
	}
	self.hostClock().Cancel(entry.real)
	entry.real = nil
	entry.realArmed = false
}

// fire runs the timer's callback and removes its registry entry
// before invoking it, so a callback that re-registers a timer on the
// same handle starts clean.
func fire(self Clock, reg *timerRegistry, h TimerHandle) {
	entry, ok := reg.entries[h]
	if !ok {
		return
	}
	delete(reg.entries, h)
	entry.fn(entry.args...)
}

// clearTimeout cancels and removes a pending timer. Unknown handles
// are silently ignored.
func clearTimeout(self Clock, reg *timerRegistry, h TimerHandle) {
	entry, ok := reg.entries[h]
	if !ok {
		return
	}
	disarm(self, entry)
	delete(reg.entries, h)
}

// rescheduleAll re-arms every pending timer against self's current
// mapping. Called whenever EventChange fires on self.
func (r *timerRegistry) rescheduleAll(self Clock) {
	for h, entry := range r.entries {
		arm(self, r, h, entry)
	}
}
