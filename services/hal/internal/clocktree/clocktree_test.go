package clocktree

import (
	"testing"

	"bringup-go/errcode"
	"bringup-go/services/hal/boards"
	"bringup-go/types"
)

func TestSolve(t *testing.T) {
	cases := []struct {
		name   string
		lim    boards.ClockLimits
		target types.Hertz
		want   Tree
	}{
		{
			name: "f767 48MHz", lim: boards.NucleoF767ZI.Clock, target: 48 * types.MHz,
			want: Tree{
				Source: types.SourcePLL, SYSCLK: 48 * types.MHz, HCLK: 48 * types.MHz,
				PCLK1: 48 * types.MHz, PCLK2: 48 * types.MHz,
				PLL: PLL{M: 4, N: 96, P: 4}, APB1Div: 1, APB2Div: 1, FlashLatency: 1,
			},
		},
		{
			name: "f767 216MHz", lim: boards.NucleoF767ZI.Clock, target: 216 * types.MHz,
			want: Tree{
				Source: types.SourcePLL, SYSCLK: 216 * types.MHz, HCLK: 216 * types.MHz,
				PCLK1: 54 * types.MHz, PCLK2: 108 * types.MHz,
				PLL: PLL{M: 4, N: 216, P: 2}, APB1Div: 4, APB2Div: 2, FlashLatency: 7,
			},
		},
		{
			name: "f767 hsi", lim: boards.NucleoF767ZI.Clock, target: 16 * types.MHz,
			want: Tree{
				Source: types.SourceHSI, SYSCLK: 16 * types.MHz, HCLK: 16 * types.MHz,
				PCLK1: 16 * types.MHz, PCLK2: 16 * types.MHz, APB1Div: 1, APB2Div: 1,
			},
		},
		{
			name: "f767 hse", lim: boards.NucleoF767ZI.Clock, target: 8 * types.MHz,
			want: Tree{
				Source: types.SourceHSE, SYSCLK: 8 * types.MHz, HCLK: 8 * types.MHz,
				PCLK1: 8 * types.MHz, PCLK2: 8 * types.MHz, APB1Div: 1, APB2Div: 1,
			},
		},
		{
			name: "f3 48MHz", lim: boards.STM32F3Discovery.Clock, target: 48 * types.MHz,
			want: Tree{
				Source: types.SourcePLL, SYSCLK: 48 * types.MHz, HCLK: 48 * types.MHz,
				PCLK1: 24 * types.MHz, PCLK2: 48 * types.MHz,
				PLL: PLL{M: 1, N: 12, P: 1}, APB1Div: 2, APB2Div: 1, FlashLatency: 1,
			},
		},
		{
			name: "pico fixed", lim: boards.Pico.Clock, target: 125 * types.MHz,
			want: Tree{
				Source: types.SourcePLL, SYSCLK: 125 * types.MHz, HCLK: 125 * types.MHz,
				PCLK1: 125 * types.MHz, PCLK2: 125 * types.MHz, APB1Div: 1, APB2Div: 1,
			},
		},
	}
	for _, c := range cases {
		got, err := Solve(c.lim, c.target)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s:\n got %+v\nwant %+v", c.name, got, c.want)
		}
	}
}

func TestSolveRejectsWithoutClamping(t *testing.T) {
	cases := []struct {
		name   string
		lim    boards.ClockLimits
		target types.Hertz
	}{
		{"zero", boards.NucleoF767ZI.Clock, 0},
		{"above f767 max", boards.NucleoF767ZI.Clock, 217 * types.MHz},
		{"far above", boards.NucleoF767ZI.Clock, 480 * types.MHz},
		{"below vco window", boards.NucleoF767ZI.Clock, 1 * types.MHz},
		{"not exactly reachable", boards.NucleoF767ZI.Clock, 48*types.MHz + 1},
		{"above f3 max", boards.STM32F3Discovery.Clock, 73 * types.MHz},
		// HSI/2 * 16 tops out at 64 MHz.
		{"f3 72MHz from hsi", boards.STM32F3Discovery.Clock, 72 * types.MHz},
		{"pico not fixed", boards.Pico.Clock, 100 * types.MHz},
	}
	for _, c := range cases {
		got, err := Solve(c.lim, c.target)
		if errcode.Of(err) != errcode.InvalidFrequency {
			t.Fatalf("%s: want invalid_frequency, got %v (%+v)", c.name, err, got)
		}
		if got != (Tree{}) {
			t.Fatalf("%s: rejected request must not return a tree", c.name)
		}
	}
}

func TestSolveIsDeterministic(t *testing.T) {
	a, _ := Solve(boards.NucleoF767ZI.Clock, 96*types.MHz)
	for i := 0; i < 10; i++ {
		b, _ := Solve(boards.NucleoF767ZI.Clock, 96*types.MHz)
		if a != b {
			t.Fatal("solver is not deterministic")
		}
	}
}

func TestEveryReachablePLLOutputIsExact(t *testing.T) {
	lim := boards.NucleoF767ZI.Clock
	for mhz := types.Hertz(24); mhz <= 216; mhz++ {
		tr, err := Solve(lim, mhz*types.MHz)
		if err != nil {
			continue
		}
		if tr.Source != types.SourcePLL {
			continue
		}
		in := uint32(lim.PLLInput())
		out := uint64(in) / uint64(tr.PLL.M) * uint64(tr.PLL.N) / uint64(tr.PLL.P)
		if types.Hertz(out) != tr.SYSCLK {
			t.Fatalf("%dMHz: PLL %+v yields %d", mhz, tr.PLL, out)
		}
		if tr.PCLK1 > lim.APB1Max || tr.PCLK2 > lim.APB2Max {
			t.Fatalf("%dMHz: APB over limit: %+v", mhz, tr)
		}
	}
}

func TestDefault(t *testing.T) {
	if d := Default(boards.STM32F3Discovery.Clock); d.Source != types.SourceHSI || d.SYSCLK != 8*types.MHz {
		t.Fatalf("f3 default: %+v", d)
	}
	if d := Default(boards.Pico.Clock); d.SYSCLK != 125*types.MHz {
		t.Fatalf("pico default: %+v", d)
	}
}
