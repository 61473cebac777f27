package sim

import (
	"math"
	"testing"
	"time"

	"bringup-go/types"
)

func square(pin types.PinID, name string, on, off time.Duration, cycles int) []types.PinEvent {
	tl := []types.PinEvent{{Pin: pin, Name: name, Level: types.Low}}
	var t time.Duration
	for i := 0; i < cycles; i++ {
		tl = append(tl,
			types.PinEvent{Pin: pin, Name: name, Level: types.High, TSns: int64(t)},
			types.PinEvent{Pin: pin, Name: name, Level: types.Low, TSns: int64(t + on)},
		)
		t += on + off
	}
	return tl
}

func TestPinStats(t *testing.T) {
	ld1, pe9 := pin("PB0"), pin("PE9")
	rep := Report{Timelines: map[types.PinID][]types.PinEvent{
		ld1: square(ld1, "LD1", 100*time.Millisecond, 400*time.Millisecond, 5),
		pe9: square(pe9, "LD3", 500*time.Millisecond, 500*time.Millisecond, 3),
	}}
	stats := rep.PinStats()
	if len(stats) != 2 || stats[0].Pin != ld1 {
		t.Fatalf("stats = %+v", stats)
	}

	s := stats[0]
	if s.Name != "LD1" || s.Edges != 10 || s.Cycles != 4 {
		t.Fatalf("LD1 = %+v", s)
	}
	if s.Period != 500*time.Millisecond || s.PeriodStdDev != 0 {
		t.Fatalf("LD1 period = %v ± %v", s.Period, s.PeriodStdDev)
	}
	if math.Abs(s.Duty-0.2) > 1e-9 {
		t.Fatalf("LD1 duty = %v", s.Duty)
	}
	if s := stats[1]; s.Period != time.Second || math.Abs(s.Duty-0.5) > 1e-9 {
		t.Fatalf("LD3 = %+v", s)
	}
}

func TestPinStatsWithoutCycles(t *testing.T) {
	p := pin("PB7")
	rep := Report{Timelines: map[types.PinID][]types.PinEvent{
		p: {{Pin: p, Level: types.Low}, {Pin: p, Level: types.High, TSns: 5}},
	}}
	s := rep.PinStats()[0]
	if s.Edges != 1 || s.Cycles != 0 || s.Period != 0 || s.Duty != 0 {
		t.Fatalf("stat = %+v", s)
	}
}

func TestUARTStats(t *testing.T) {
	rep := Report{Frames: []types.SerialFrame{
		{Bus: "uart4", Data: []byte("Hello, World!\r\n"), TSns: int64(1 * time.Millisecond)},
		{Bus: "usart1", Data: []byte("x"), TSns: 0},
		{Bus: "uart4", Data: []byte("Hello, World!\r\n"), TSns: int64(2001 * time.Millisecond)},
		{Bus: "uart4", Data: []byte("Hello, World!\r\n"), TSns: int64(4001 * time.Millisecond)},
	}}
	stats := rep.UARTStats()
	if len(stats) != 2 || stats[0].Bus != "uart4" || stats[1].Bus != "usart1" {
		t.Fatalf("stats = %+v", stats)
	}
	u := stats[0]
	if u.Frames != 3 || u.Bytes != 45 || u.Interval != 2*time.Second || u.IntervalStdDev != 0 {
		t.Fatalf("uart4 = %+v", u)
	}
	if stats[1].Interval != 0 {
		t.Fatalf("single frame interval = %v", stats[1].Interval)
	}
}
