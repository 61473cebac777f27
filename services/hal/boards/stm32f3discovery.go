package boards

import "bringup-go/types"

// STM32F3Discovery carries an STM32F303VC. The PLL is fed from HSI/2; the
// eight compass LEDs sit on PE8..PE15.
var STM32F3Discovery = &Board{
	Name:        "stm32f3discovery",
	Family:      FamilySTM32F3,
	Ports:       []types.PortID{'A', 'B', 'C', 'D', 'E', 'F'},
	PinsPerPort: 16,
	LEDs: []LED{
		{Label: "LD3", Pin: pin('E', 9)},   // red, north
		{Label: "LD4", Pin: pin('E', 8)},   // blue, north-west
		{Label: "LD5", Pin: pin('E', 10)},  // orange, north-east
		{Label: "LD6", Pin: pin('E', 15)},  // green, west
		{Label: "LD7", Pin: pin('E', 11)},  // green, east
		{Label: "LD8", Pin: pin('E', 14)},  // orange, south-west
		{Label: "LD9", Pin: pin('E', 12)},  // blue, south-east
		{Label: "LD10", Pin: pin('E', 13)}, // red, south
	},
	UART: []Controller{
		{ID: "usart1", APB: types.APB2, AF: 7, PinA: pin('C', 4), PinB: pin('C', 5)},
		{ID: "uart4", APB: types.APB1, AF: 5, PinA: pin('C', 10), PinB: pin('C', 11)},
	},
	I2C: []Controller{
		// LSM303DLHC e-compass.
		{ID: "i2c1", APB: types.APB1, AF: 4, PinA: pin('B', 6), PinB: pin('B', 7)},
	},
	Clock: ClockLimits{
		HSI:           8 * types.MHz,
		HSE:           8 * types.MHz,
		PLLSource:     types.SourceHSI,
		PreDiv:        2,
		M:             Range{Min: 1, Max: 1},
		N:             Range{Min: 2, Max: 16},
		P:             []uint32{1},
		VCOIn:         HzRange{Min: 1 * types.MHz, Max: 24 * types.MHz},
		VCOOut:        HzRange{Min: 16 * types.MHz, Max: 72 * types.MHz},
		SysclkMax:     72 * types.MHz,
		APB1Max:       36 * types.MHz,
		APB2Max:       72 * types.MHz,
		WaitStateStep: 24 * types.MHz,
		MaxLatency:    2,
	},
}
