//go:build linux

package chrono

import "golang.org/x/sys/unix"

// monotonicNs читает CLOCK_MONOTONIC_RAW: не подвержен slew/step от NTP, аналог счётчика циклов DWT.
func monotonicNs() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		return fallbackNs()
	}
	return ts.Nano()
}
