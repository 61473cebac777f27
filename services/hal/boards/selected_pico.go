//go:build pico && !stm32f3disco

package boards

var Selected = Pico
