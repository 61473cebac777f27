//go:build tinygo && (stm32f7 || stm32f3)

package platform

import (
	"runtime/volatile"
	"unsafe"

	"bringup-go/errcode"
	"bringup-go/services/hal/boards"
	"bringup-go/services/hal/internal/clocktree"
	"bringup-go/services/hal/internal/core"
	"bringup-go/types"
)

// Register blocks shared by the F3 and F7 parts.

type gpioRegs struct {
	moder   volatile.Register32
	otyper  volatile.Register32
	ospeedr volatile.Register32
	pupdr   volatile.Register32
	idr     volatile.Register32
	odr     volatile.Register32
	bsrr    volatile.Register32
	lckr    volatile.Register32
	afrl    volatile.Register32
	afrh    volatile.Register32
}

type usartRegs struct {
	cr1  volatile.Register32
	cr2  volatile.Register32
	cr3  volatile.Register32
	brr  volatile.Register32
	gtpr volatile.Register32
	rtor volatile.Register32
	rqr  volatile.Register32
	isr  volatile.Register32
	icr  volatile.Register32
	rdr  volatile.Register32
	tdr  volatile.Register32
}

const (
	usartCR1UE  = 1 << 0
	usartCR1RE  = 1 << 2
	usartCR1TE  = 1 << 3
	usartISRTC  = 1 << 6
	usartISRTXE = 1 << 7
)

type i2cRegs struct {
	cr1      volatile.Register32
	cr2      volatile.Register32
	oar1     volatile.Register32
	oar2     volatile.Register32
	timingr  volatile.Register32
	timeoutr volatile.Register32
	isr      volatile.Register32
	icr      volatile.Register32
	pecr     volatile.Register32
	rxdr     volatile.Register32
	txdr     volatile.Register32
}

const (
	i2cCR1PE      = 1 << 0
	i2cCR2RDWRN   = 1 << 10
	i2cCR2START   = 1 << 13
	i2cCR2STOP    = 1 << 14
	i2cCR2NBYTES  = 16
	i2cCR2AUTOEND = 1 << 25
	i2cISRTXIS    = 1 << 1
	i2cISRRXNE    = 1 << 2
	i2cISRNACKF   = 1 << 4
	i2cISRSTOPF   = 1 << 5
	i2cISRTC      = 1 << 6
	i2cISRBUSY    = 1 << 15
	i2cICRNACKCF  = 1 << 4
	i2cICRSTOPCF  = 1 << 5
)

// spinLimit bounds every wait on a status flag.
const spinLimit = 1_000_000

func waitFor(r *volatile.Register32, mask uint32) bool {
	for i := 0; i < spinLimit; i++ {
		if r.HasBits(mask) {
			return true
		}
	}
	return false
}

func waitClear(r *volatile.Register32, mask uint32) bool {
	for i := 0; i < spinLimit; i++ {
		if !r.HasBits(mask) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Backend
// -----------------------------------------------------------------------------

type stm32Backend struct {
	ports map[types.PortID]*stm32Port
	uarts map[string]*stm32UART
	i2cs  map[string]*stm32I2C
}

var backend *stm32Backend

func Open() core.Backend {
	if backend == nil {
		backend = &stm32Backend{
			ports: make(map[types.PortID]*stm32Port),
			uarts: make(map[string]*stm32UART),
			i2cs:  make(map[string]*stm32I2C),
		}
	}
	return backend
}

func (b *stm32Backend) Board() *boards.Board { return boards.Selected }

func (b *stm32Backend) ApplyClocks(t clocktree.Tree) error { return applyClocks(t) }

func (b *stm32Backend) GPIO(id types.PortID) (core.GPIOPort, bool) {
	if p, ok := b.ports[id]; ok {
		return p, true
	}
	regs, ok := gpioBlock(id)
	if !ok {
		return nil, false
	}
	p := &stm32Port{id: id, r: regs}
	b.ports[id] = p
	return p, true
}

func (b *stm32Backend) UART(id string) (core.UARTPeripheral, bool) {
	if u, ok := b.uarts[id]; ok {
		return u, true
	}
	regs, ok := usartBlock(id)
	if !ok {
		return nil, false
	}
	u := &stm32UART{id: id, r: regs}
	b.uarts[id] = u
	return u, true
}

func (b *stm32Backend) I2C(id string) (core.I2CPeripheral, bool) {
	if x, ok := b.i2cs[id]; ok {
		return x, true
	}
	regs, ok := i2cBlock(id)
	if !ok {
		return nil, false
	}
	x := &stm32I2C{id: id, r: regs}
	b.i2cs[id] = x
	return x, true
}

func (b *stm32Backend) SysTick() core.Counter { return sysTick{} }

func (b *stm32Backend) Halt(err error) { spin() }

// -----------------------------------------------------------------------------
// GPIO
// -----------------------------------------------------------------------------

type stm32Port struct {
	id   types.PortID
	r    *gpioRegs
	used uint16
}

func (p *stm32Port) EnableClock() error {
	enableGPIOClock(p.id)
	return nil
}

func (p *stm32Port) Configure(n uint8, mode types.PinMode, af uint8) error {
	if n > 15 {
		return errcode.New(errcode.UnknownPin, "gpio.configure", types.PinID{Port: p.id, N: n}.String())
	}
	if p.used&(1<<n) != 0 {
		return errcode.New(errcode.PinInUse, "gpio.configure", types.PinID{Port: p.id, N: n}.String())
	}
	var moder, otype uint32
	switch mode {
	case types.ModeInput:
		moder = 0b00
	case types.ModePushPull:
		moder = 0b01
	case types.ModeOpenDrain:
		moder, otype = 0b01, 1
	case types.ModeAlternate:
		moder = 0b10
	case types.ModeAlternateOpenDrain:
		moder, otype = 0b10, 1
	default:
		return errcode.New(errcode.InvalidMode, "gpio.configure", mode.String())
	}
	pos := uint8(2 * n)
	if moder == 0b10 {
		afr := &p.r.afrl
		shift := 4 * n
		if n >= 8 {
			afr = &p.r.afrh
			shift = 4 * (n - 8)
		}
		afr.ReplaceBits(uint32(af), 0xF, shift)
		p.r.ospeedr.ReplaceBits(0b11, 0b11, pos)
	}
	p.r.otyper.ReplaceBits(otype, 1, n)
	p.r.moder.ReplaceBits(moder, 0b11, pos)
	p.used |= 1 << n
	return nil
}

// Set writes BSRR so no read-modify-write races other pins.
func (p *stm32Port) Set(n uint8, level bool) {
	if level {
		p.r.bsrr.Set(1 << n)
	} else {
		p.r.bsrr.Set(1 << (n + 16))
	}
}

func (p *stm32Port) Get(n uint8) bool { return p.r.odr.HasBits(1 << n) }

// -----------------------------------------------------------------------------
// USART
// -----------------------------------------------------------------------------

type stm32UART struct {
	id string
	r  *usartRegs
}

func (u *stm32UART) Configure(cfg core.UARTConfig) error {
	enableUARTClock(u.id)
	u.r.cr1.Set(0)
	u.r.brr.Set(cfg.BRR)
	u.r.cr1.Set(usartCR1UE | usartCR1TE | usartCR1RE)
	return nil
}

// Write blocks on TXE for each byte and on TC for the frame. A stalled
// shift register reports how much left the FIFO.
func (u *stm32UART) Write(p []byte) (int, error) {
	if !u.r.cr1.HasBits(usartCR1UE | usartCR1TE) {
		return 0, errcode.New(errcode.NotReady, u.id+".write", "not enabled")
	}
	for i, c := range p {
		if !waitFor(&u.r.isr, usartISRTXE) {
			return i, errcode.New(errcode.Overrun, u.id+".write", "txe stuck")
		}
		u.r.tdr.Set(uint32(c))
	}
	if !waitFor(&u.r.isr, usartISRTC) {
		return len(p), errcode.New(errcode.Timeout, u.id+".write", "tc stuck")
	}
	return len(p), nil
}

// -----------------------------------------------------------------------------
// I²C
// -----------------------------------------------------------------------------

type stm32I2C struct {
	id string
	r  *i2cRegs
}

func (x *stm32I2C) Configure(cfg core.I2CConfig) error {
	enableI2CClock(x.id)
	timing, ok := i2cTiming(i2cKernelClock(uint32(cfg.PCLK)), cfg.Hz)
	if !ok {
		return errcode.New(errcode.InvalidFrequency, x.id+".configure", "no timing for bus rate")
	}
	x.r.cr1.ClearBits(i2cCR1PE)
	x.r.timingr.Set(timing)
	x.r.cr1.SetBits(i2cCR1PE)
	return nil
}

func (x *stm32I2C) Tx(addr uint16, w, r []byte) error {
	if len(w) > 255 || len(r) > 255 {
		return errcode.New(errcode.InvalidParams, x.id+".tx", "transfer longer than 255 bytes")
	}
	if !waitClear(&x.r.isr, i2cISRBUSY) {
		return errcode.New(errcode.Timeout, x.id+".tx", "bus busy")
	}
	sadd := uint32(addr&0x7F) << 1
	if len(w) > 0 || len(r) == 0 {
		cr2 := sadd | uint32(len(w))<<i2cCR2NBYTES | i2cCR2START
		if len(r) == 0 {
			cr2 |= i2cCR2AUTOEND
		}
		x.r.cr2.Set(cr2)
		for _, c := range w {
			if err := x.await(i2cISRTXIS); err != nil {
				return err
			}
			x.r.txdr.Set(uint32(c))
		}
		if len(r) > 0 {
			if err := x.await(i2cISRTC); err != nil {
				return err
			}
		}
	}
	if len(r) > 0 {
		x.r.cr2.Set(sadd | i2cCR2RDWRN | uint32(len(r))<<i2cCR2NBYTES | i2cCR2AUTOEND | i2cCR2START)
		for i := range r {
			if err := x.await(i2cISRRXNE); err != nil {
				return err
			}
			r[i] = byte(x.r.rxdr.Get())
		}
	}
	if err := x.await(i2cISRSTOPF); err != nil {
		return err
	}
	x.r.icr.Set(i2cICRSTOPCF)
	return nil
}

// await spins for flag, failing fast on NACK.
func (x *stm32I2C) await(flag uint32) error {
	for i := 0; i < spinLimit; i++ {
		isr := x.r.isr.Get()
		if isr&i2cISRNACKF != 0 {
			waitFor(&x.r.isr, i2cISRSTOPF)
			x.r.icr.Set(i2cICRNACKCF | i2cICRSTOPCF)
			return errcode.New(errcode.NACK, x.id+".tx", "no ack")
		}
		if isr&flag != 0 {
			return nil
		}
	}
	x.r.cr2.SetBits(i2cCR2STOP)
	return errcode.New(errcode.Timeout, x.id+".tx", "flag stuck")
}
