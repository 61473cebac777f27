package timex

import "time"

// ToMs converts d to whole milliseconds, clamped to uint32.
// Negative durations yield 0.
func ToMs(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	ms := d / time.Millisecond
	if ms > time.Duration(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(ms)
}

// TicksToNs converts a tick count at hz into nanoseconds.
// hz == 0 yields 0.
func TicksToNs(ticks uint64, hz uint32) int64 {
	if hz == 0 {
		return 0
	}
	// Split to keep ticks*1e9 from overflowing for long waits.
	sec := ticks / uint64(hz)
	rem := ticks % uint64(hz)
	return int64(sec)*int64(time.Second) + int64(rem*uint64(time.Second)/uint64(hz))
}

// BitTimeNs returns the wire time of n bits at baud.
func BitTimeNs(bits uint64, baud uint32) int64 { return TicksToNs(bits, baud) }
