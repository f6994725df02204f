// Package hostclock provides the real-time facility the clock package
// consumes through its HostClock interface: a monotonic millisecond
// reading and a one-shot real-time timer, backed by the operating
// system's monotonic clock.
package hostclock

import (
	"sync"
	"time"

	"github.com/dvbcss/clocktree/clock"
)

// Clock implements clock.HostClock over time.Now/time.AfterFunc,
// rebased so NowMillis reads monotonic milliseconds since the first
// call rather than since the Unix epoch.
type Clock struct {
	startOnce sync.Once
	start     time.Time
}

// New returns a host clock ready for use. The monotonic reading it
// returns from NowMillis is rebased to 0 at the moment of the first
// call, not at construction, so a Clock that is built but not yet
// queried carries no wall-clock skew into the reading.
func New() *Clock {
	return &Clock{}
}

func (c *Clock) now() time.Time {
	c.startOnce.Do(func() { c.start = monotonicNow() })
	return monotonicNow()
}

// NowMillis returns monotonically non-decreasing milliseconds since
// the first call to NowMillis.
func (c *Clock) NowMillis() float64 {
	return float64(c.now().Sub(c.start)) / float64(time.Millisecond)
}

// timerHandle wraps the stdlib timer this package arms, matching the
// opaque clock.HostTimerHandle contract.
type timerHandle struct {
	t *time.Timer
}

// ScheduleAfter arms a one-shot timer that invokes fn on its own
// goroutine after at least ms milliseconds.
func (c *Clock) ScheduleAfter(ms float64, fn func()) clock.HostTimerHandle {
	if ms < 0 {
		ms = 0
	}
	return &timerHandle{t: time.AfterFunc(time.Duration(ms*float64(time.Millisecond)), fn)}
}

// Cancel disarms a timer previously returned by ScheduleAfter.
func (c *Clock) Cancel(h clock.HostTimerHandle) {
	th, ok := h.(*timerHandle)
	if !ok || th == nil {
		return
	}
	th.t.Stop()
}

var _ clock.HostClock = (*Clock)(nil)
