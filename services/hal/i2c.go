package hal

import (
	"sync/atomic"

	"bringup-go/errcode"
	"bringup-go/services/hal/boards"
	"bringup-go/services/hal/internal/core"

	"tinygo.org/x/drivers"
)

// Standard, fast and fast-mode-plus.
const (
	minI2CHz = 10_000
	maxI2CHz = 1_000_000
)

// I2C is an I²C controller. It is consumed by the first Configure.
type I2C struct {
	ctrl boards.Controller
	hw   core.I2CPeripheral
	used atomic.Bool
}

func (c *I2C) ID() string { return c.ctrl.ID }

// Configure routes scl and sda (open-drain) to the controller and sets the
// bus rate.
func (c *I2C) Configure(scl, sda *Pin, hz uint32, clocks Clocks) (*I2CBus, error) {
	const op = "i2c.configure"
	if !clocks.frozen() {
		return nil, errcode.New(errcode.InvalidParams, op, "clocks not frozen")
	}
	if hz < minI2CHz || hz > maxI2CHz {
		return nil, errcode.New(errcode.InvalidFrequency, op, "bus rate out of range")
	}
	if scl.ID() != c.ctrl.PinA || sda.ID() != c.ctrl.PinB {
		return nil, errcode.New(errcode.InvalidParams, op,
			c.ctrl.ID+" is wired to "+c.ctrl.PinA.String()+"/"+c.ctrl.PinB.String())
	}
	if !c.used.CompareAndSwap(false, true) {
		return nil, errcode.New(errcode.BusInUse, op, c.ctrl.ID+" already configured")
	}
	if _, err := scl.IntoAlternateOpenDrain(c.ctrl.AF); err != nil {
		return nil, err
	}
	if _, err := sda.IntoAlternateOpenDrain(c.ctrl.AF); err != nil {
		return nil, err
	}
	cfg := core.I2CConfig{
		SCL: scl.ID(), SDA: sda.ID(), AF: c.ctrl.AF,
		Hz: hz, PCLK: clocks.PCLK(c.ctrl.APB),
	}
	if err := c.hw.Configure(cfg); err != nil {
		return nil, err
	}
	return &I2CBus{id: c.ctrl.ID, hw: c.hw}, nil
}

// I2CBus is a configured controller. It satisfies drivers.I2C so TinyGo
// driver packages can sit on top of it.
type I2CBus struct {
	id string
	hw core.I2CPeripheral
}

var _ drivers.I2C = (*I2CBus)(nil)

func (b *I2CBus) ID() string { return b.id }

// Tx writes w then reads len(r) bytes from the 7-bit target addr.
func (b *I2CBus) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return errcode.New(errcode.InvalidParams, "i2c.tx", "10-bit addressing not supported")
	}
	return b.hw.Tx(addr, w, r)
}

// WriteRegister writes data starting at register reg.
func (b *I2CBus) WriteRegister(addr uint8, reg uint8, data []byte) error {
	buf := make([]byte, 0, 1+len(data))
	buf = append(buf, reg)
	buf = append(buf, data...)
	return b.Tx(uint16(addr), buf, nil)
}

// ReadRegister fills data from register reg onwards.
func (b *I2CBus) ReadRegister(addr uint8, reg uint8, data []byte) error {
	return b.Tx(uint16(addr), []byte{reg}, data)
}
