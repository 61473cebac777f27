//go:build pico

// pico-uart prints "Hello, World!" on UART0 (GP0 TX, GP1 RX) at 115200 baud
// every two seconds and blinks the on-board LED with each line.
package main

import (
	"bringup-go/services/hal"
	"bringup-go/services/schedule"
	"bringup-go/types"
)

const (
	baud    = 115_200
	blinkMs = 50
	writeMs = 2_000 - blinkMs
)

var greeting = []byte("Hello, World!\r\n")

func main() {
	println("[pico-uart] boot")
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
	// The runtime owns the RP2040 clock tree; this only records it.
	clocks, err := p.RCC.FreezeDefault()
	if err != nil {
		return nil, nil, err
	}
	delay, err := p.SysTick.Delay(clocks)
	if err != nil {
		return nil, nil, err
	}

	gp, err := p.Port(types.PortGP)
	if err != nil {
		return nil, nil, err
	}
	parts, err := gp.Split()
	if err != nil {
		return nil, nil, err
	}
	ledPin, err := parts.Pin(25)
	if err != nil {
		return nil, nil, err
	}
	led, err := ledPin.IntoPushPullOutput(types.Low)
	if err != nil {
		return nil, nil, err
	}
	tx, err := parts.Pin(0)
	if err != nil {
		return nil, nil, err
	}
	rx, err := parts.Pin(1)
	if err != nil {
		return nil, nil, err
	}
	uart0, err := p.UART("uart0")
	if err != nil {
		return nil, nil, err
	}
	serial, err := uart0.Configure(tx, rx, baud, clocks)
	if err != nil {
		return nil, nil, err
	}
	println("[pico-uart] uart0 at", serial.Baud(), "baud, divisor", serial.Divisor())

	return []schedule.Step{
		{Action: schedule.High(led), DelayMs: 0},
		{Action: schedule.Write(serial, greeting), DelayMs: blinkMs},
		{Action: schedule.Low(led), DelayMs: writeMs},
	}, delay, nil
}
