//go:build tinygo && stm32f3

package platform

import (
	"runtime/volatile"
	"unsafe"

	"bringup-go/errcode"
	"bringup-go/services/hal/internal/clocktree"
	"bringup-go/types"
)

// STM32F303xC memory map (RM0316).
const (
	gpioBase   = 0x48000000 // GPIOA; ports are 0x400 apart up to GPIOF
	rccBase    = 0x40021000
	flashBase  = 0x40022000
	usart1Base = 0x40013800
	uart4Base  = 0x40004C00
	i2c1Base   = 0x40005400
)

type rccRegs struct {
	cr       volatile.Register32
	cfgr     volatile.Register32
	cir      volatile.Register32
	apb2rstr volatile.Register32
	apb1rstr volatile.Register32
	ahbenr   volatile.Register32
	apb2enr  volatile.Register32
	apb1enr  volatile.Register32
	bdcr     volatile.Register32
	csr      volatile.Register32
	ahbrstr  volatile.Register32
	cfgr2    volatile.Register32
	cfgr3    volatile.Register32
}

var (
	rcc   = (*rccRegs)(unsafe.Pointer(uintptr(rccBase)))
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

	// CFGR: PLLSRC = 0 selects HSI/2; PLLMUL in [21:18] holds N-2.
	rccCFGRPLLSRC = 1 << 16
	rccCFGRMULPos = 18

	flashACRPRFTBE = 1 << 4
)

func gpioBlock(id types.PortID) (*gpioRegs, bool) {
	if id < 'A' || id > 'F' {
		return nil, false
	}
	addr := uintptr(gpioBase) + uintptr(id-'A')*0x400
	return (*gpioRegs)(unsafe.Pointer(addr)), true
}

// IOPAEN is bit 17; the rest follow in port order.
func enableGPIOClock(id types.PortID) {
	rcc.ahbenr.SetBits(1 << (17 + uint32(id-'A')))
	_ = rcc.ahbenr.Get()
}

func usartBlock(id string) (*usartRegs, bool) {
	switch id {
	case "usart1":
		return (*usartRegs)(unsafe.Pointer(uintptr(usart1Base))), true
	case "uart4":
		return (*usartRegs)(unsafe.Pointer(uintptr(uart4Base))), true
	}
	return nil, false
}

func enableUARTClock(id string) {
	switch id {
	case "usart1":
		rcc.apb2enr.SetBits(1 << 14)
	case "uart4":
		rcc.apb1enr.SetBits(1 << 19)
	}
}

func i2cBlock(id string) (*i2cRegs, bool) {
	if id != "i2c1" {
		return nil, false
	}
	return (*i2cRegs)(unsafe.Pointer(uintptr(i2c1Base))), true
}

func enableI2CClock(id string) { rcc.apb1enr.SetBits(1 << 21) }

// I2C1SW resets to HSI.
func i2cKernelClock(uint32) uint32 { return 8_000_000 }

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

	if t.Source == types.SourceHSE {
		// ST-LINK MCO drives HSE on the Discovery board.
		rcc.cr.SetBits(rccCRHSEBYP | rccCRHSEON)
		if !waitFor(&rcc.cr, rccCRHSERDY) {
			return errcode.New(errcode.Timeout, "rcc.freeze", "hse not ready")
		}
	}

	cur := flash.Get() & 0b111
	lat := uint32(t.FlashLatency)
	if lat > cur {
		flash.Set(flashACRPRFTBE | lat)
	}

	rcc.cfgr.ReplaceBits(0, 0xF, 4)
	rcc.cfgr.ReplaceBits(ppre(t.APB1Div), 0b111, 8)
	rcc.cfgr.ReplaceBits(ppre(t.APB2Div), 0b111, 11)

	sw := uint32(0)
	switch t.Source {
	case types.SourceHSE:
		sw = 1
	case types.SourcePLL:
		sw = 2
		rcc.cfgr.ClearBits(rccCFGRPLLSRC)
		rcc.cfgr.ReplaceBits(t.PLL.N-2, 0xF, rccCFGRMULPos)
		rcc.cr.SetBits(rccCRPLLON)
		if !waitFor(&rcc.cr, rccCRPLLRDY) {
			return errcode.New(errcode.Timeout, "rcc.freeze", "pll not locked")
		}
	}
	rcc.cfgr.ReplaceBits(sw, 0b11, 0)
	for (rcc.cfgr.Get()>>2)&0b11 != sw {
	}

	if lat < cur {
		flash.Set(flashACRPRFTBE | lat)
	}
	return nil
}
