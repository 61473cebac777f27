// Package clocktree derives a complete clock configuration from a requested
// SYSCLK and a board's fixed clock constants. It is pure: the same inputs
// always produce the same tree.
package clocktree

import (
	"bringup-go/errcode"
	"bringup-go/services/hal/boards"
	"bringup-go/types"
	"bringup-go/x/mathx"
)

const op = "rcc.freeze"

// PLL holds the divider/multiplier triple. Zero when the PLL is bypassed.
type PLL struct{ M, N, P uint32 }

// Tree is a solved clock configuration.
type Tree struct {
	Source types.ClockSource
	SYSCLK types.Hertz
	HCLK   types.Hertz
	PCLK1  types.Hertz
	PCLK2  types.Hertz

	PLL     PLL
	APB1Div uint32
	APB2Div uint32

	FlashLatency uint8
}

// State converts the tree into the form backends and observers consume.
func (t Tree) State() types.ClockState {
	return types.ClockState{
		Source:       t.Source,
		SYSCLK:       t.SYSCLK,
		HCLK:         t.HCLK,
		PCLK1:        t.PCLK1,
		PCLK2:        t.PCLK2,
		FlashLatency: t.FlashLatency,
	}
}

// PCLK returns the peripheral clock of the given APB.
func (t Tree) PCLK(bus types.APB) types.Hertz {
	if bus == types.APB2 {
		return t.PCLK2
	}
	return t.PCLK1
}

// Default is the reset configuration: SYSCLK from HSI, or the fixed
// runtime clock on parts that have one.
func Default(lim boards.ClockLimits) Tree {
	if lim.Fixed != 0 {
		t, _ := Solve(lim, lim.Fixed)
		return t
	}
	t, _ := Solve(lim, lim.HSI)
	return t
}

// Solve finds a configuration whose SYSCLK equals target exactly.
// Requests that cannot be met fail with errcode.InvalidFrequency; the
// solver never rounds or clamps.
func Solve(lim boards.ClockLimits, target types.Hertz) (Tree, error) {
	if target == 0 {
		return Tree{}, errcode.New(errcode.InvalidFrequency, op, "zero sysclk")
	}
	if target > lim.SysclkMax {
		return Tree{}, errcode.New(errcode.InvalidFrequency, op, target.String()+" above max "+lim.SysclkMax.String())
	}

	t := Tree{SYSCLK: target}
	switch {
	case lim.Fixed != 0:
		if target != lim.Fixed {
			return Tree{}, errcode.New(errcode.InvalidFrequency, op, "runtime clock fixed at "+lim.Fixed.String())
		}
		t.Source = types.SourcePLL
	case target == lim.HSI:
		t.Source = types.SourceHSI
	case lim.HSE != 0 && target == lim.HSE:
		t.Source = types.SourceHSE
	default:
		pll, ok := solvePLL(lim, target)
		if !ok {
			return Tree{}, errcode.New(errcode.InvalidFrequency, op, target.String()+" not reachable")
		}
		t.Source = types.SourcePLL
		t.PLL = pll
	}

	// AHB runs undivided; APB buses take the smallest divider within limits.
	t.HCLK = t.SYSCLK
	t.APB1Div = apbDiv(t.HCLK, lim.APB1Max)
	t.APB2Div = apbDiv(t.HCLK, lim.APB2Max)
	t.PCLK1 = t.HCLK / types.Hertz(t.APB1Div)
	t.PCLK2 = t.HCLK / types.Hertz(t.APB2Div)

	if lim.WaitStateStep != 0 {
		ws := mathx.CeilDiv(uint32(t.HCLK), uint32(lim.WaitStateStep)) - 1
		if ws > uint32(lim.MaxLatency) {
			return Tree{}, errcode.New(errcode.InvalidFrequency, op, "flash latency out of range")
		}
		t.FlashLatency = uint8(ws)
	}
	return t, nil
}

// solvePLL searches M ascending, then P ascending, for an exact N.
func solvePLL(lim boards.ClockLimits, target types.Hertz) (PLL, bool) {
	in := uint32(lim.PLLInput())
	if in == 0 {
		return PLL{}, false
	}
	for m := lim.M.Min; m <= lim.M.Max && m != 0; m++ {
		vin, exact := mathx.ExactDiv(in, m)
		if !exact || !lim.VCOIn.Contains(types.Hertz(vin)) {
			continue
		}
		for _, p := range lim.P {
			vco := uint64(target) * uint64(p)
			if vco > uint64(^uint32(0)) || !lim.VCOOut.Contains(types.Hertz(vco)) {
				continue
			}
			n, exact := mathx.ExactDiv(uint32(vco), vin)
			if exact && lim.N.Contains(n) {
				return PLL{M: m, N: n, P: p}, true
			}
		}
	}
	return PLL{}, false
}

// apbDiv returns the smallest power-of-two prescaler (1..16) keeping
// hclk/div within max. A zero max means unrestricted.
func apbDiv(hclk, max types.Hertz) uint32 {
	if max == 0 {
		return 1
	}
	div := uint32(1)
	for div < 16 && hclk/types.Hertz(div) > max {
		div <<= 1
	}
	return div
}
