// Package boards holds immutable descriptors of the supported evaluation
// boards: which controllers exist, what is soldered where, and the fixed
// clock constraints of the SoC. Wiring choices belong to programs.
package boards

import (
	"bringup-go/types"
)

type Family uint8

const (
	FamilySTM32F7 Family = iota + 1
	FamilySTM32F3
	FamilyRP2040
)

func (f Family) String() string {
	switch f {
	case FamilySTM32F7:
		return "stm32f7"
	case FamilySTM32F3:
		return "stm32f3"
	case FamilyRP2040:
		return "rp2040"
	default:
		return "unknown"
	}
}

// Range is an inclusive integer range.
type Range struct{ Min, Max uint32 }

func (r Range) Contains(v uint32) bool { return v >= r.Min && v <= r.Max }

// HzRange is an inclusive frequency window.
type HzRange struct{ Min, Max types.Hertz }

func (r HzRange) Contains(f types.Hertz) bool {
	return f >= r.Min && (r.Max == 0 || f <= r.Max)
}

// ClockLimits are the SoC's clock-tree constants.
//
// PLL output = (src / PreDiv / M) * N / P, where src is the PLL source
// oscillator and PreDiv a fixed divider in front of the PLL (HSI/2 on F3).
type ClockLimits struct {
	HSI types.Hertz
	HSE types.Hertz // 0 when no external clock is fitted

	PLLSource types.ClockSource // SourceHSI or SourceHSE
	PreDiv    uint32            // fixed, >= 1
	M         Range
	N         Range
	P         []uint32 // allowed post-dividers, ascending
	VCOIn     HzRange  // after M
	VCOOut    HzRange  // after N, before P

	SysclkMax types.Hertz
	APB1Max   types.Hertz
	APB2Max   types.Hertz

	// Flash needs one extra wait state per WaitStateStep of HCLK.
	// Zero means the part has no configurable latency.
	WaitStateStep types.Hertz
	MaxLatency    uint8

	// Fixed, when non-zero, is the only SYSCLK the runtime supports.
	Fixed types.Hertz
}

// PLLInput is the frequency entering the M divider.
func (c ClockLimits) PLLInput() types.Hertz {
	src := c.HSI
	if c.PLLSource == types.SourceHSE {
		src = c.HSE
	}
	if c.PreDiv > 1 {
		src /= types.Hertz(c.PreDiv)
	}
	return src
}

// LED is an on-board user LED.
type LED struct {
	Label     string
	Pin       types.PinID
	ActiveLow bool
}

// Controller is a UART or I²C block with its documented pins.
type Controller struct {
	ID  string
	APB types.APB
	AF  uint8 // alternate function selector
	// Default pins: TX/RX for UARTs, SCL/SDA for I²C.
	PinA, PinB types.PinID
}

type Board struct {
	Name        string
	Family      Family
	Ports       []types.PortID
	PinsPerPort uint8

	LEDs []LED
	UART []Controller
	I2C  []Controller

	Clock ClockLimits
}

func (b *Board) HasPort(p types.PortID) bool {
	for _, x := range b.Ports {
		if x == p {
			return true
		}
	}
	return false
}

// ValidPin reports whether id exists on this board.
func (b *Board) ValidPin(id types.PinID) bool {
	return b.HasPort(id.Port) && id.N < b.PinsPerPort
}

func (b *Board) LED(label string) (LED, bool) {
	for _, l := range b.LEDs {
		if l.Label == label {
			return l, true
		}
	}
	return LED{}, false
}

// Label returns the LED label attached to pin, or "".
func (b *Board) Label(pin types.PinID) string {
	for _, l := range b.LEDs {
		if l.Pin == pin {
			return l.Label
		}
	}
	return ""
}

func (b *Board) UARTByID(id string) (Controller, bool) { return find(b.UART, id) }
func (b *Board) I2CByID(id string) (Controller, bool)  { return find(b.I2C, id) }

func find(cs []Controller, id string) (Controller, bool) {
	for _, c := range cs {
		if c.ID == id {
			return c, true
		}
	}
	return Controller{}, false
}

// All returns every known descriptor, for tools.
func All() []*Board { return []*Board{NucleoF767ZI, STM32F3Discovery, Pico} }

// ByName looks a descriptor up by its Name.
func ByName(name string) (*Board, bool) {
	for _, b := range All() {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}
