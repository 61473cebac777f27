//go:build tinygo && rp2040

package platform

import (
	"machine"

	"bringup-go/errcode"
	"bringup-go/services/hal/boards"
	"bringup-go/services/hal/internal/clocktree"
	"bringup-go/services/hal/internal/core"
	"bringup-go/types"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// The RP2040 runtime owns its clocks (125 MHz), so Freeze only checks the
// request matches.

type rp2Backend struct {
	port  *rp2Port
	uarts map[string]*rp2UART
	i2cs  map[string]*rp2I2C
}

var backend *rp2Backend

func Open() core.Backend {
	if backend == nil {
		backend = &rp2Backend{
			port:  &rp2Port{},
			uarts: make(map[string]*rp2UART),
			i2cs:  make(map[string]*rp2I2C),
		}
	}
	return backend
}

func (b *rp2Backend) Board() *boards.Board { return boards.Selected }

func (b *rp2Backend) ApplyClocks(t clocktree.Tree) error {
	if t.SYSCLK != boards.Selected.Clock.Fixed {
		return errcode.New(errcode.InvalidFrequency, "rcc.freeze", "runtime clock is fixed")
	}
	return nil
}

func (b *rp2Backend) GPIO(id types.PortID) (core.GPIOPort, bool) {
	if id != types.PortGP {
		return nil, false
	}
	return b.port, true
}

func (b *rp2Backend) UART(id string) (core.UARTPeripheral, bool) {
	if u, ok := b.uarts[id]; ok {
		return u, true
	}
	var hw *uartx.UART
	switch id {
	case "uart0":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return nil, false
	}
	u := &rp2UART{id: id, hw: hw}
	b.uarts[id] = u
	return u, true
}

func (b *rp2Backend) I2C(id string) (core.I2CPeripheral, bool) {
	if x, ok := b.i2cs[id]; ok {
		return x, true
	}
	var hw *machine.I2C
	switch id {
	case "i2c0":
		hw = machine.I2C0
	case "i2c1":
		hw = machine.I2C1
	default:
		return nil, false
	}
	x := &rp2I2C{id: id, hw: hw}
	b.i2cs[id] = x
	return x, true
}

func (b *rp2Backend) SysTick() core.Counter { return sysTick{} }

func (b *rp2Backend) Halt(err error) {
	if err != nil {
		println("halt:", err.Error())
	}
	spin()
}

// ---- GPIO: one flat bank, GP0..GP29 ----

type rp2Port struct{ used uint32 }

func (p *rp2Port) EnableClock() error { return nil }

func (p *rp2Port) Configure(n uint8, mode types.PinMode, _ uint8) error {
	if n > 29 {
		return errcode.New(errcode.UnknownPin, "gpio.configure", types.PinID{Port: types.PortGP, N: n}.String())
	}
	if p.used&(1<<n) != 0 {
		return errcode.New(errcode.PinInUse, "gpio.configure", types.PinID{Port: types.PortGP, N: n}.String())
	}
	var m machine.PinMode
	switch mode {
	case types.ModeInput:
		m = machine.PinInput
	case types.ModePushPull, types.ModeOpenDrain:
		m = machine.PinOutput
	case types.ModeAlternate:
		m = machine.PinUART
	case types.ModeAlternateOpenDrain:
		m = machine.PinI2C
	default:
		return errcode.New(errcode.InvalidMode, "gpio.configure", mode.String())
	}
	machine.Pin(n).Configure(machine.PinConfig{Mode: m})
	p.used |= 1 << n
	return nil
}

func (p *rp2Port) Set(n uint8, level bool) { machine.Pin(n).Set(level) }
func (p *rp2Port) Get(n uint8) bool        { return machine.Pin(n).Get() }

// ---- UART via uartx ----

type rp2UART struct {
	id string
	hw *uartx.UART
	ok bool
}

func (u *rp2UART) Configure(cfg core.UARTConfig) error {
	err := u.hw.Configure(uartx.UARTConfig{
		BaudRate: cfg.Baud,
		TX:       machine.Pin(cfg.TX.N),
		RX:       machine.Pin(cfg.RX.N),
	})
	if err != nil {
		return errcode.Wrap(errcode.InvalidParams, u.id+".configure", err)
	}
	u.ok = true
	return nil
}

func (u *rp2UART) Write(p []byte) (int, error) {
	if !u.ok {
		return 0, errcode.New(errcode.NotReady, u.id+".write", "not configured")
	}
	n, err := u.hw.Write(p)
	if err != nil {
		return n, errcode.Wrap(errcode.Overrun, u.id+".write", err)
	}
	return n, nil
}

// ---- I²C via machine ----

type rp2I2C struct {
	id string
	hw *machine.I2C
}

func (x *rp2I2C) Configure(cfg core.I2CConfig) error {
	err := x.hw.Configure(machine.I2CConfig{
		SCL:       machine.Pin(cfg.SCL.N),
		SDA:       machine.Pin(cfg.SDA.N),
		Frequency: cfg.Hz,
	})
	if err != nil {
		return errcode.Wrap(errcode.InvalidFrequency, x.id+".configure", err)
	}
	return nil
}

func (x *rp2I2C) Tx(addr uint16, w, r []byte) error {
	if err := x.hw.Tx(addr, w, r); err != nil {
		return errcode.Wrap(errcode.NACK, x.id+".tx", err)
	}
	return nil
}
