package boards

import "bringup-go/types"

func pin(port types.PortID, n uint8) types.PinID { return types.PinID{Port: port, N: n} }

// NucleoF767ZI is the NUCLEO-144 board with an STM32F767ZI. HSE is the 8 MHz
// MCO output of the on-board ST-LINK.
var NucleoF767ZI = &Board{
	Name:        "nucleo-f767zi",
	Family:      FamilySTM32F7,
	Ports:       []types.PortID{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K'},
	PinsPerPort: 16,
	LEDs: []LED{
		{Label: "LD1", Pin: pin('B', 0)},  // green
		{Label: "LD2", Pin: pin('B', 7)},  // blue
		{Label: "LD3", Pin: pin('B', 14)}, // red
	},
	UART: []Controller{
		{ID: "usart3", APB: types.APB1, AF: 7, PinA: pin('D', 8), PinB: pin('D', 9)}, // ST-LINK VCP
		{ID: "usart6", APB: types.APB2, AF: 8, PinA: pin('G', 14), PinB: pin('G', 9)},
	},
	I2C: []Controller{
		{ID: "i2c1", APB: types.APB1, AF: 4, PinA: pin('B', 8), PinB: pin('B', 9)},
	},
	Clock: ClockLimits{
		HSI:           16 * types.MHz,
		HSE:           8 * types.MHz,
		PLLSource:     types.SourceHSE,
		PreDiv:        1,
		M:             Range{Min: 2, Max: 63},
		N:             Range{Min: 50, Max: 432},
		P:             []uint32{2, 4, 6, 8},
		VCOIn:         HzRange{Min: 1 * types.MHz, Max: 2 * types.MHz},
		VCOOut:        HzRange{Min: 100 * types.MHz, Max: 432 * types.MHz},
		SysclkMax:     216 * types.MHz,
		APB1Max:       54 * types.MHz,
		APB2Max:       108 * types.MHz,
		WaitStateStep: 30 * types.MHz,
		MaxLatency:    15,
	},
}
