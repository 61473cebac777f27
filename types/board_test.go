package types

import (
	"testing"

	"bringup-go/errcode"
)

func TestParsePin(t *testing.T) {
	cases := []struct {
		in   string
		want PinID
	}{
		{"PB7", PinID{Port: 'B', N: 7}},
		{"pe15", PinID{Port: 'E', N: 15}},
		{" PC4 ", PinID{Port: 'C', N: 4}},
		{"GP25", PinID{Port: PortGP, N: 25}},
	}
	for _, c := range cases {
		got, err := ParsePin(c.in)
		if err != nil {
			t.Fatalf("%q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("%q: got %v want %v", c.in, got, c.want)
		}
		if back, _ := ParsePin(got.String()); back != got {
			t.Fatalf("%q: String() does not parse back", c.in)
		}
	}
}

func TestParsePinRejects(t *testing.T) {
	for _, in := range []string{"", "B7", "PZ1", "PB", "PB300", "GPx"} {
		if _, err := ParsePin(in); errcode.Of(err) != errcode.UnknownPin {
			t.Fatalf("%q: want unknown_pin, got %v", in, err)
		}
	}
}

func TestHertzString(t *testing.T) {
	cases := map[Hertz]string{
		216 * MHz: "216MHz",
		400 * KHz: "400kHz",
		115200:    "115200Hz",
	}
	for f, want := range cases {
		if f.String() != want {
			t.Fatalf("%d: got %q want %q", uint32(f), f.String(), want)
		}
	}
}
