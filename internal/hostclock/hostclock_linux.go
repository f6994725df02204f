//go:build linux
// +build linux

package hostclock

import (
	"time"

	"golang.org/x/sys/unix"
)

// monotonicNow reads CLOCK_MONOTONIC directly via the raw syscall
// rather than through time.Now(), the way internal/clock/clock_linux.go
// reaches for unix.* when it needs a primitive the runtime's own
// clock API doesn't expose.
func monotonicNow() time.Time {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return time.Now()
	}
	return time.Unix(int64(ts.Sec), int64(ts.Nsec))
}
