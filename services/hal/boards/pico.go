package boards

import "bringup-go/types"

func gp(n uint8) types.PinID { return types.PinID{Port: types.PortGP, N: n} }

// Pico is the Raspberry Pi Pico (RP2040). The TinyGo runtime owns the clock
// tree and runs SYSCLK at a fixed 125 MHz; clk_peri follows SYSCLK.
var Pico = &Board{
	Name:        "pico",
	Family:      FamilyRP2040,
	Ports:       []types.PortID{types.PortGP},
	PinsPerPort: 30,
	LEDs: []LED{
		{Label: "LED", Pin: gp(25)},
	},
	UART: []Controller{
		{ID: "uart0", APB: types.APB1, PinA: gp(0), PinB: gp(1)},
		{ID: "uart1", APB: types.APB1, PinA: gp(4), PinB: gp(5)},
	},
	I2C: []Controller{
		{ID: "i2c0", APB: types.APB1, PinA: gp(5), PinB: gp(4)},
		{ID: "i2c1", APB: types.APB1, PinA: gp(3), PinB: gp(2)},
	},
	Clock: ClockLimits{
		HSI:       6 * types.MHz, // ROSC, nominal
		HSE:       12 * types.MHz,
		PLLSource: types.SourceHSE,
		PreDiv:    1,
		SysclkMax: 133 * types.MHz,
		APB1Max:   133 * types.MHz,
		APB2Max:   133 * types.MHz,
		Fixed:     125 * types.MHz,
	},
}
