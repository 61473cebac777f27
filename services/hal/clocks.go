package hal

import (
	"sync/atomic"

	"bringup-go/errcode"
	"bringup-go/services/hal/internal/clocktree"
	"bringup-go/services/hal/internal/core"
	"bringup-go/types"
)

// RCC is the reset and clock controller. It is consumed by the first Freeze.
type RCC struct {
	be   core.Backend
	used atomic.Bool
}

// Freeze solves for a clock tree whose SYSCLK is exactly sysclk, programs
// it, and returns the resulting frequencies. Requests that cannot be met
// exactly fail with errcode.InvalidFrequency. The RCC is spent either way.
func (r *RCC) Freeze(sysclk types.Hertz) (Clocks, error) {
	if !r.used.CompareAndSwap(false, true) {
		return Clocks{}, errcode.New(errcode.AlreadyTaken, "rcc.freeze", "clocks already frozen")
	}
	tree, err := clocktree.Solve(r.be.Board().Clock, sysclk)
	if err != nil {
		return Clocks{}, err
	}
	if err := r.be.ApplyClocks(tree); err != nil {
		return Clocks{}, err
	}
	return Clocks{t: tree}, nil
}

// FreezeDefault keeps the reset clock (HSI, or the runtime's fixed clock).
func (r *RCC) FreezeDefault() (Clocks, error) {
	lim := r.be.Board().Clock
	sysclk := lim.HSI
	if lim.Fixed != 0 {
		sysclk = lim.Fixed
	}
	return r.Freeze(sysclk)
}

// Clocks is a frozen clock configuration. The zero value is not frozen.
type Clocks struct {
	t clocktree.Tree
}

func (c Clocks) SYSCLK() types.Hertz { return c.t.SYSCLK }
func (c Clocks) HCLK() types.Hertz   { return c.t.HCLK }
func (c Clocks) PCLK1() types.Hertz  { return c.t.PCLK1 }
func (c Clocks) PCLK2() types.Hertz  { return c.t.PCLK2 }

// PCLK returns the clock of the given peripheral bus.
func (c Clocks) PCLK(bus types.APB) types.Hertz { return c.t.PCLK(bus) }

func (c Clocks) Source() types.ClockSource { return c.t.Source }

// PLL returns the divider triple, all zero when the PLL is bypassed.
func (c Clocks) PLL() (m, n, p uint32) { return c.t.PLL.M, c.t.PLL.N, c.t.PLL.P }

func (c Clocks) FlashLatency() uint8 { return c.t.FlashLatency }

func (c Clocks) frozen() bool { return c.t.HCLK != 0 }

func (c Clocks) State() types.ClockState { return c.t.State() }
