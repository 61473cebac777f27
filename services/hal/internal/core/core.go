// Package core defines the capability interfaces a platform backend
// provides. Higher layers own the sequencing and ownership rules; backends
// only touch hardware (or simulate it).
package core

import (
	"bringup-go/services/hal/boards"
	"bringup-go/services/hal/internal/clocktree"
	"bringup-go/types"

	"tinygo.org/x/drivers"
)

// Backend is one board's worth of hardware.
type Backend interface {
	Board() *boards.Board

	// ApplyClocks programs the clock tree. Called at most once.
	ApplyClocks(t clocktree.Tree) error

	GPIO(port types.PortID) (GPIOPort, bool)
	UART(id string) (UARTPeripheral, bool)
	I2C(id string) (I2CPeripheral, bool)
	SysTick() Counter

	// Halt parks the calling program forever. It must not return.
	Halt(err error)
}

// ---- GPIO ----

type GPIOPort interface {
	// EnableClock gates the port's bus clock on.
	EnableClock() error
	// Configure locks pin n into mode. af selects the alternate function and
	// is ignored for plain GPIO modes.
	Configure(n uint8, mode types.PinMode, af uint8) error
	Set(n uint8, level bool)
	Get(n uint8) bool
}

// ---- UART ----

type UARTConfig struct {
	TX, RX types.PinID
	AF     uint8
	Baud   uint32
	PCLK   types.Hertz
	BRR    uint32 // round(PCLK/Baud), 16x oversampling
}

type UARTPeripheral interface {
	Configure(cfg UARTConfig) error
	// Write queues all of p for transmission or fails without sending any
	// of it.
	Write(p []byte) (int, error)
}

// ---- I²C ----

type I2CConfig struct {
	SCL, SDA types.PinID
	AF       uint8
	Hz       uint32
	PCLK     types.Hertz
}

type I2CPeripheral interface {
	drivers.I2C
	Configure(cfg I2CConfig) error
}

// ---- Timer ----

// MaxReload is the largest SysTick reload value (24 bits).
const MaxReload = 1<<24 - 1

// Counter is the SysTick down-counter, clocked from HCLK.
type Counter interface {
	// Wait loads ticks (1..MaxReload) and spins until the counter wraps.
	Wait(ticks uint32)
}
