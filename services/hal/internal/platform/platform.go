// Package platform selects the backend for the build target:
//
//	!tinygo                  host simulator
//	tinygo && stm32f7        Nucleo-F767ZI register backend
//	tinygo && stm32f3        STM32F3-Discovery register backend
//	tinygo && rp2040         Raspberry Pi Pico (machine + uartx)
//
// Each target file provides Open.
package platform

// Register-level helpers shared by the STM32 backends. They are pure so they
// build and test on the host.

// ppre encodes an APB/AHB prescaler for RCC_CFGR: 0xx = 1, 100 = 2,
// 101 = 4, 110 = 8, 111 = 16.
func ppre(div uint32) uint32 {
	switch div {
	case 2:
		return 0b100
	case 4:
		return 0b101
	case 8:
		return 0b110
	case 16:
		return 0b111
	default:
		return 0
	}
}

// I2C v2 TIMINGR fields.
const (
	timingPrescPos  = 28
	timingSCLDELPos = 20
	timingSDADELPos = 16
	timingSCLHPos   = 8
)

// i2cTiming derives a TIMINGR value for the bus rate hz from the I2C kernel
// clock. Standard mode uses a 4 MHz timing tick, fast mode 8 MHz; the low
// period takes a little over half the SCL cycle.
func i2cTiming(kernel, hz uint32) (uint32, bool) {
	if kernel == 0 || hz == 0 || hz > 1_000_000 {
		return 0, false
	}
	tick := uint32(4_000_000)
	scldel, sdadel := uint32(4), uint32(2)
	if hz > 100_000 {
		tick = 8_000_000
		scldel, sdadel = 3, 1
	}
	if kernel < tick {
		tick = kernel
	}
	presc := kernel/tick - 1
	if presc > 15 {
		return 0, false
	}
	tick = kernel / (presc + 1)
	period := tick / hz
	// SCLL and SCLH count (x+1) ticks, plus sync delays of about two ticks.
	if period < 8 {
		return 0, false
	}
	low := period*55/100 - 1
	high := period - low - 4
	if low > 0xFF || high > 0xFF {
		return 0, false
	}
	return presc<<timingPrescPos | scldel<<timingSCLDELPos | sdadel<<timingSDADELPos |
		high<<timingSCLHPos | low, true
}

// pllQ picks the PLL48 divider closest to (not above) 48 MHz.
func pllQ(vco uint32) uint32 {
	q := (vco + 48_000_000 - 1) / 48_000_000
	if q < 2 {
		q = 2
	}
	if q > 15 {
		q = 15
	}
	return q
}
