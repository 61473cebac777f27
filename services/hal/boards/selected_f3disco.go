//go:build stm32f3disco

package boards

var Selected = STM32F3Discovery
