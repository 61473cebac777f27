//go:build !stm32f3disco && !pico

// nucleo-blinky flashes the three user LEDs of a NUCLEO-F767ZI: on for
// 100 ms, off for 400 ms, with SYSCLK at 48 MHz.
package main

import (
	"bringup-go/services/hal"
	"bringup-go/services/schedule"
	"bringup-go/types"
)

const (
	onMs  = 100
	offMs = 400
)

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
	clocks, err := p.RCC.Freeze(48 * types.MHz)
	if err != nil {
		return nil, nil, err
	}
	delay, err := p.SysTick.Delay(clocks)
	if err != nil {
		return nil, nil, err
	}

	gpiob, err := p.Port('B')
	if err != nil {
		return nil, nil, err
	}
	parts, err := gpiob.Split()
	if err != nil {
		return nil, nil, err
	}
	// LD1 green, LD2 blue, LD3 red
	var leds []schedule.Pin
	for _, n := range []uint8{0, 7, 14} {
		pin, err := parts.Pin(n)
		if err != nil {
			return nil, nil, err
		}
		out, err := pin.IntoPushPullOutput(types.Low)
		if err != nil {
			return nil, nil, err
		}
		leds = append(leds, out)
	}

	return []schedule.Step{
		{Action: schedule.High(leds...), DelayMs: onMs},
		{Action: schedule.Low(leds...), DelayMs: offMs},
	}, delay, nil
}
