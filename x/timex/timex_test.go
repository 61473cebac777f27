package timex

import (
	"testing"
	"time"
)

func TestTicksToNs(t *testing.T) {
	cases := []struct {
		ticks uint64
		hz    uint32
		want  int64
	}{
		{216_000, 216_000_000, int64(time.Millisecond)},
		{8_000 * 2_000, 8_000_000, int64(2 * time.Second)},
		{1, 0, 0},
		{150, 115_200, 1_302_083},
	}
	for _, c := range cases {
		if got := TicksToNs(c.ticks, c.hz); got != c.want {
			t.Fatalf("TicksToNs(%d,%d)=%d want %d", c.ticks, c.hz, got, c.want)
		}
	}
}

func TestToMs(t *testing.T) {
	if ToMs(2*time.Second+999*time.Microsecond) != 2000 {
		t.Fatal("truncate")
	}
	if ToMs(-time.Second) != 0 {
		t.Fatal("negative")
	}
	if ToMs(time.Duration(1<<62)) != ^uint32(0) {
		t.Fatal("clamp")
	}
}

func TestBitTimeNs(t *testing.T) {
	// 15 bytes of 8N1 at 115200 baud.
	if got := BitTimeNs(150, 115_200); got != 1_302_083 {
		t.Fatalf("BitTimeNs = %d", got)
	}
}
