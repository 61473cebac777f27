//go:build stm32f3disco

// f3disco-blinky toggles the eight compass LEDs of an STM32F3-Discovery
// every 500 ms on the reset clock (8 MHz HSI).
package main

import (
	"bringup-go/services/hal"
	"bringup-go/services/schedule"
	"bringup-go/types"
)

const toggleMs = 500

func main() {
	steps, delay, err := setup()
	if err != nil {
		hal.Halt(err)
	}
	schedule.RunForever(steps, delay, hal.Halt)
}

func setup() ([]schedule.Step, *hal.Delay, error) {
	p, err := hal.Take()
	if err != nil {
		return nil, nil, err
	}
	clocks, err := p.RCC.FreezeDefault()
	if err != nil {
		return nil, nil, err
	}
	delay, err := p.SysTick.Delay(clocks)
	if err != nil {
		return nil, nil, err
	}

	gpioe, err := p.Port('E')
	if err != nil {
		return nil, nil, err
	}
	parts, err := gpioe.Split()
	if err != nil {
		return nil, nil, err
	}
	var outs []*hal.Output
	for n := uint8(8); n <= 15; n++ {
		pin, err := parts.Pin(n)
		if err != nil {
			return nil, nil, err
		}
		out, err := pin.IntoPushPullOutput(types.Low)
		if err != nil {
			return nil, nil, err
		}
		outs = append(outs, out)
	}
	leds := hal.NewLEDGroup(outs...)

	targets := make([]schedule.Pin, 0, leds.Len())
	for _, o := range leds.Outputs() {
		targets = append(targets, o)
	}
	return []schedule.Step{
		{Action: schedule.Toggle(targets...), DelayMs: toggleMs},
	}, delay, nil
}
