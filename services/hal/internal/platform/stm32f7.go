//go:build tinygo && stm32f7

package platform

import (
	"runtime/volatile"
	"unsafe"

	"bringup-go/errcode"
	"bringup-go/services/hal/boards"
	"bringup-go/services/hal/internal/clocktree"
	"bringup-go/types"
)

// STM32F76x/77x memory map (RM0410).
const (
	gpioBase   = 0x40020000 // GPIOA; ports are 0x400 apart up to GPIOK
	rccBase    = 0x40023800
	flashBase  = 0x40023C00
	pwrBase    = 0x40007000
	usart3Base = 0x40004800
	uart4Base  = 0x40004C00
	usart6Base = 0x40011400
	i2c1Base   = 0x40005400
)

type rccRegs struct {
	cr       volatile.Register32
	pllcfgr  volatile.Register32
	cfgr     volatile.Register32
	cir      volatile.Register32
	ahb1rstr volatile.Register32
	ahb2rstr volatile.Register32
	ahb3rstr volatile.Register32
	_        volatile.Register32
	apb1rstr volatile.Register32
	apb2rstr volatile.Register32
	_        [2]volatile.Register32
	ahb1enr  volatile.Register32
	ahb2enr  volatile.Register32
	ahb3enr  volatile.Register32
	_        volatile.Register32
	apb1enr  volatile.Register32
	apb2enr  volatile.Register32
}

type pwrRegs struct {
	cr1  volatile.Register32
	csr1 volatile.Register32
}

var (
	rcc   = (*rccRegs)(unsafe.Pointer(uintptr(rccBase)))
	pwr   = (*pwrRegs)(unsafe.Pointer(uintptr(pwrBase)))
	flash = (*volatile.Register32)(unsafe.Pointer(uintptr(flashBase))) // FLASH_ACR
)

const (
	rccCRHSION  = 1 << 0
	rccCRHSIRDY = 1 << 1
	rccCRHSEON  = 1 << 16
	rccCRHSERDY = 1 << 17
	rccCRHSEBYP = 1 << 18
	rccCRPLLON  = 1 << 24
	rccCRPLLRDY = 1 << 25

	rccPLLSRCHSE = 1 << 22

	rccAPB1PWREN = 1 << 28

	pwrCR1ODEN     = 1 << 16
	pwrCR1ODSWEN   = 1 << 17
	pwrCSR1ODRDY   = 1 << 16
	pwrCSR1ODSWRDY = 1 << 17

	flashACRPRFTEN = 1 << 8
	flashACRARTEN  = 1 << 9

	// above this HCLK the regulator needs over-drive
	overdriveAbove = 180 * types.MHz
)

func gpioBlock(id types.PortID) (*gpioRegs, bool) {
	if id < 'A' || id > 'K' {
		return nil, false
	}
	addr := uintptr(gpioBase) + uintptr(id-'A')*0x400
	return (*gpioRegs)(unsafe.Pointer(addr)), true
}

func enableGPIOClock(id types.PortID) {
	rcc.ahb1enr.SetBits(1 << uint32(id-'A'))
	_ = rcc.ahb1enr.Get() // delay after enabling
}

func usartBlock(id string) (*usartRegs, bool) {
	switch id {
	case "usart3":
		return (*usartRegs)(unsafe.Pointer(uintptr(usart3Base))), true
	case "uart4":
		return (*usartRegs)(unsafe.Pointer(uintptr(uart4Base))), true
	case "usart6":
		return (*usartRegs)(unsafe.Pointer(uintptr(usart6Base))), true
	}
	return nil, false
}

func enableUARTClock(id string) {
	switch id {
	case "usart3":
		rcc.apb1enr.SetBits(1 << 18)
	case "uart4":
		rcc.apb1enr.SetBits(1 << 19)
	case "usart6":
		rcc.apb2enr.SetBits(1 << 5)
	}
}

func i2cBlock(id string) (*i2cRegs, bool) {
	if id != "i2c1" {
		return nil, false
	}
	return (*i2cRegs)(unsafe.Pointer(uintptr(i2c1Base))), true
}

func enableI2CClock(id string) { rcc.apb1enr.SetBits(1 << 21) }

// I2C1SEL resets to PCLK1.
func i2cKernelClock(pclk1 uint32) uint32 { return pclk1 }

// applyClocks moves SYSCLK to HSI, rebuilds the PLL if needed, raises flash
// latency before speeding up and lowers it after slowing down.
func applyClocks(t clocktree.Tree) error {
	rcc.cr.SetBits(rccCRHSION)
	if !waitFor(&rcc.cr, rccCRHSIRDY) {
		return errcode.New(errcode.Timeout, "rcc.freeze", "hsi not ready")
	}
	rcc.cfgr.ReplaceBits(0, 0b11, 0)
	for rcc.cfgr.Get()&(0b11<<2) != 0 {
	}
	rcc.cr.ClearBits(rccCRPLLON)
	if !waitClear(&rcc.cr, rccCRPLLRDY) {
		return errcode.New(errcode.Timeout, "rcc.freeze", "pll will not stop")
	}

	pllFromHSE := boards.Selected.Clock.PLLSource == types.SourceHSE
	useHSE := t.Source == types.SourceHSE || (t.Source == types.SourcePLL && pllFromHSE)
	if useHSE {
		// ST-LINK MCO drives HSE on Nucleo-144 boards.
		rcc.cr.SetBits(rccCRHSEBYP | rccCRHSEON)
		if !waitFor(&rcc.cr, rccCRHSERDY) {
			return errcode.New(errcode.Timeout, "rcc.freeze", "hse not ready")
		}
	}

	cur := flash.Get() & 0xF
	lat := uint32(t.FlashLatency)
	if lat > cur {
		flash.Set(flashACRPRFTEN | flashACRARTEN | lat)
	}

	rcc.cfgr.ReplaceBits(0, 0xF, 4) // HPRE = /1
	rcc.cfgr.ReplaceBits(ppre(t.APB1Div), 0b111, 10)
	rcc.cfgr.ReplaceBits(ppre(t.APB2Div), 0b111, 13)

	sw := uint32(0)
	switch t.Source {
	case types.SourceHSE:
		sw = 1
	case types.SourcePLL:
		sw = 2
		vco := uint32(t.SYSCLK) * t.PLL.P
		cfg := t.PLL.M | t.PLL.N<<6 | (t.PLL.P/2-1)<<16 | pllQ(vco)<<24
		if pllFromHSE {
			cfg |= rccPLLSRCHSE
		}
		rcc.pllcfgr.Set(cfg)
		rcc.cr.SetBits(rccCRPLLON)
		if !waitFor(&rcc.cr, rccCRPLLRDY) {
			return errcode.New(errcode.Timeout, "rcc.freeze", "pll not locked")
		}
		if t.HCLK > overdriveAbove {
			rcc.apb1enr.SetBits(rccAPB1PWREN)
			pwr.cr1.SetBits(pwrCR1ODEN)
			if !waitFor(&pwr.csr1, pwrCSR1ODRDY) {
				return errcode.New(errcode.Timeout, "rcc.freeze", "over-drive not ready")
			}
			pwr.cr1.SetBits(pwrCR1ODSWEN)
			if !waitFor(&pwr.csr1, pwrCSR1ODSWRDY) {
				return errcode.New(errcode.Timeout, "rcc.freeze", "over-drive switch")
			}
		}
	}
	rcc.cfgr.ReplaceBits(sw, 0b11, 0)
	for (rcc.cfgr.Get()>>2)&0b11 != sw {
	}

	if lat < cur {
		flash.Set(flashACRPRFTEN | flashACRARTEN | lat)
	}
	return nil
}
