//go:build !stm32f3disco && !pico

package boards

// Selected is the board this binary was built for.
var Selected = NucleoF767ZI
