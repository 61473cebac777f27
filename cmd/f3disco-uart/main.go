//go:build stm32f3disco

// f3disco-uart prints "Hello, World!" on UART4 (PC10 TX, PC11 RX) at
// 115200 baud every two seconds, with SYSCLK at 48 MHz.
package main

import (
	"bringup-go/services/hal"
	"bringup-go/services/schedule"
	"bringup-go/types"
)

const (
	baud    = 115_200
	writeMs = 2_000
)

var greeting = []byte("Hello, World!\r\n")

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

	gpioc, err := p.Port('C')
	if err != nil {
		return nil, nil, err
	}
	parts, err := gpioc.Split()
	if err != nil {
		return nil, nil, err
	}
	tx, err := parts.Pin(10)
	if err != nil {
		return nil, nil, err
	}
	rx, err := parts.Pin(11)
	if err != nil {
		return nil, nil, err
	}
	uart4, err := p.UART("uart4")
	if err != nil {
		return nil, nil, err
	}
	serial, err := uart4.Configure(tx, rx, baud, clocks)
	if err != nil {
		return nil, nil, err
	}

	return []schedule.Step{
		{Action: schedule.Write(serial, greeting), DelayMs: writeMs},
	}, delay, nil
}
