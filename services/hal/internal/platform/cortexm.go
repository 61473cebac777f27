//go:build tinygo && (stm32f7 || stm32f3 || rp2040)

package platform

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"

	"bringup-go/services/hal/internal/core"
)

// SysTick is free on these targets: the TinyGo runtime keeps time with a
// peripheral timer.
type systickRegs struct {
	csr   volatile.Register32
	rvr   volatile.Register32
	cvr   volatile.Register32
	calib volatile.Register32
}

const (
	systCSREnable    = 1 << 0
	systCSRClkSource = 1 << 2 // processor clock (HCLK)
	systCSRCountFlag = 1 << 16
)

var systick = (*systickRegs)(unsafe.Pointer(uintptr(0xE000E010)))

type sysTick struct{}

// Wait runs one countdown of ticks HCLK cycles.
func (sysTick) Wait(ticks uint32) {
	if ticks < 2 {
		return
	}
	if ticks > core.MaxReload {
		ticks = core.MaxReload
	}
	systick.csr.Set(0)
	systick.rvr.Set(ticks - 1)
	systick.cvr.Set(0) // any write clears the counter
	systick.csr.Set(systCSRClkSource | systCSREnable)
	for !systick.csr.HasBits(systCSRCountFlag) {
	}
	systick.csr.Set(0)
}

// spin parks the core on nop so a debugger can attach and find the fault.
func spin() {
	for {
		arm.Asm("nop")
	}
}
