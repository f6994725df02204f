package clock

import (
	"time"

	bclock "github.com/benbjohnson/clock"
)

// mockHost adapts github.com/benbjohnson/clock's Mock onto this
// package's HostClock interface, standing in for the real-time
// facility internal/hostclock provides in production.
type mockHost struct {
	mock *bclock.Mock
}

func newMockHost() *mockHost {
	return &mockHost{mock: bclock.NewMock()}
}

func (h *mockHost) NowMillis() float64 {
	return float64(h.mock.Now().UnixNano()) / 1e6
}

func (h *mockHost) ScheduleAfter(ms float64, fn func()) HostTimerHandle {
	return h.mock.AfterFunc(time.Duration(ms*float64(time.Millisecond)), fn)
}

func (h *mockHost) Cancel(handle HostTimerHandle) {
	if t, ok := handle.(*bclock.Timer); ok {
		t.Stop()
	}
}

// advance moves the mock clock forward and lets any timers due in
// that window fire.
func (h *mockHost) advance(ms float64) {
	h.mock.Add(time.Duration(ms * float64(time.Millisecond)))
}
