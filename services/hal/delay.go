package hal

import (
	"sync/atomic"

	"bringup-go/errcode"
	"bringup-go/services/hal/internal/core"
)

// SysTick is the core's 24-bit down-counter. It is consumed by Delay.
type SysTick struct {
	hw   core.Counter
	used atomic.Bool
}

// Delay returns a busy-wait delay source clocked from HCLK.
func (s *SysTick) Delay(clocks Clocks) (*Delay, error) {
	if !clocks.frozen() {
		return nil, errcode.New(errcode.InvalidParams, "systick.delay", "clocks not frozen")
	}
	if !s.used.CompareAndSwap(false, true) {
		return nil, errcode.New(errcode.AlreadyTaken, "systick.delay", "systick already in use")
	}
	return &Delay{hw: s.hw, hclk: uint64(clocks.HCLK())}, nil
}

// Delay spins for exact tick counts.
type Delay struct {
	hw   core.Counter
	hclk uint64
}

// DelayMs waits ms * HCLK/1000 ticks.
func (d *Delay) DelayMs(ms uint32) { d.wait(uint64(ms) * d.hclk / 1000) }

// DelayUs waits us * HCLK/1e6 ticks.
func (d *Delay) DelayUs(us uint32) { d.wait(uint64(us) * d.hclk / 1_000_000) }

// wait splits ticks into reloads the 24-bit counter can hold.
func (d *Delay) wait(ticks uint64) {
	for ticks > 0 {
		n := ticks
		if n > core.MaxReload {
			n = core.MaxReload
		}
		d.hw.Wait(uint32(n))
		ticks -= n
	}
}
