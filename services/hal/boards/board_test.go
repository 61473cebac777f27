package boards

import (
	"testing"

	"bringup-go/types"
)

func TestDescriptorsAreConsistent(t *testing.T) {
	for _, b := range All() {
		for _, l := range b.LEDs {
			if !b.ValidPin(l.Pin) {
				t.Fatalf("%s: LED %s on invalid pin %v", b.Name, l.Label, l.Pin)
			}
		}
		for _, c := range append(append([]Controller{}, b.UART...), b.I2C...) {
			if !b.ValidPin(c.PinA) || !b.ValidPin(c.PinB) {
				t.Fatalf("%s: %s on invalid pins", b.Name, c.ID)
			}
		}
		if b.Clock.SysclkMax == 0 {
			t.Fatalf("%s: no SYSCLK limit", b.Name)
		}
		if got, ok := ByName(b.Name); !ok || got != b {
			t.Fatalf("%s: ByName lookup failed", b.Name)
		}
	}
}

func TestF3DiscoveryLEDs(t *testing.T) {
	b := STM32F3Discovery
	if len(b.LEDs) != 8 {
		t.Fatalf("want 8 LEDs, got %d", len(b.LEDs))
	}
	seen := map[uint8]bool{}
	for _, l := range b.LEDs {
		if l.Pin.Port != 'E' || l.Pin.N < 8 || l.Pin.N > 15 {
			t.Fatalf("LED %s off PE8..PE15: %v", l.Label, l.Pin)
		}
		seen[l.Pin.N] = true
	}
	if len(seen) != 8 {
		t.Fatal("LED pins are not distinct")
	}
	if b.Label(types.PinID{Port: 'E', N: 9}) != "LD3" {
		t.Fatal("PE9 should be LD3")
	}
}

func TestPLLInput(t *testing.T) {
	if got := STM32F3Discovery.Clock.PLLInput(); got != 4*types.MHz {
		t.Fatalf("F3 PLL input: %v", got)
	}
	if got := NucleoF767ZI.Clock.PLLInput(); got != 8*types.MHz {
		t.Fatalf("F7 PLL input: %v", got)
	}
}
