package clock

import "testing"

func TestEventBusOnEmitOff(t *testing.T) {
	b := newEventBus()
	var calls int
	sub := b.on(EventChange, func(Clock) { calls++ })

	b.emit(EventChange, nil)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	b.off(EventChange, sub)
	b.emit(EventChange, nil)
	if calls != 1 {
		t.Fatalf("calls after off = %d, want 1 (listener should be detached)", calls)
	}
}

func TestEventBusListenerIsolation(t *testing.T) {
	b := newEventBus()
	var secondCalled bool
	b.on(EventChange, func(Clock) { panic("boom") })
	b.on(EventChange, func(Clock) { secondCalled = true })

	b.emit(EventChange, nil)

	if !secondCalled {
		t.Fatalf("a panicking listener must not prevent later listeners from running")
	}
}

func TestEventBusKindsAreIndependent(t *testing.T) {
	b := newEventBus()
	var changeCalls, availCalls int
	b.on(EventChange, func(Clock) { changeCalls++ })
	b.on(EventAvailable, func(Clock) { availCalls++ })

	b.emit(EventAvailable, nil)

	if changeCalls != 0 {
		t.Fatalf("change listener fired on an available emission")
	}
	if availCalls != 1 {
		t.Fatalf("availCalls = %d, want 1", availCalls)
	}
}

func TestEventBusOffUnknownIsNoop(t *testing.T) {
	b := newEventBus()
	b.on(EventChange, func(Clock) {})
	b.off(EventChange, subscription(9999))
}
