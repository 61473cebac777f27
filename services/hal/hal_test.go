package hal

import (
	"errors"
	"testing"
	"time"

	"bringup-go/errcode"
	"bringup-go/services/hal/boards"
	"bringup-go/services/hal/internal/core"
	"bringup-go/services/hal/sim"
	"bringup-go/types"

	"tinygo.org/x/drivers"
)

// newSim resets the process-wide claim and takes the peripherals of a
// fresh simulator.
func newSim(t *testing.T, opts ...sim.Option) (*Peripherals, *sim.Sim) {
	t.Helper()
	taken.Store(false)
	s := sim.New(opts...)
	p, err := take(func() core.Backend { return s })
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		taken.Store(false)
		activeMu.Lock()
		active = nil
		activeMu.Unlock()
	})
	return p, s
}

func pinID(s string) types.PinID {
	id, err := types.ParsePin(s)
	if err != nil {
		panic(err)
	}
	return id
}

func splitPins(t *testing.T, p *Peripherals, port types.PortID, ns ...uint8) []*Pin {
	t.Helper()
	pt, err := p.Port(port)
	if err != nil {
		t.Fatal(err)
	}
	parts, err := pt.Split()
	if err != nil {
		t.Fatal(err)
	}
	out := make([]*Pin, len(ns))
	for i, n := range ns {
		if out[i], err = parts.Pin(n); err != nil {
			t.Fatal(err)
		}
	}
	return out
}

func TestTakeOnce(t *testing.T) {
	prev := sim.Installed()
	defer sim.Install(prev)
	s := sim.New()
	sim.Install(s)
	taken.Store(false)
	defer taken.Store(false)

	p, err := Take()
	if err != nil || p == nil {
		t.Fatalf("first Take: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := Take(); errcode.Of(err) != errcode.AlreadyTaken {
			t.Fatalf("Take #%d: want already_taken, got %v", i+2, err)
		}
	}
	if p.Board() != s.Board() {
		t.Fatal("peripherals not bound to the installed simulator")
	}
}

func TestFreeze(t *testing.T) {
	p, s := newSim(t, sim.WithBoard(boards.NucleoF767ZI))

	clocks, err := p.RCC.Freeze(48 * types.MHz)
	if err != nil {
		t.Fatal(err)
	}
	if clocks.SYSCLK() != 48*types.MHz || clocks.HCLK() != 48*types.MHz {
		t.Fatalf("sysclk=%v hclk=%v", clocks.SYSCLK(), clocks.HCLK())
	}
	if clocks.Source() != types.SourcePLL {
		t.Fatalf("source = %v", clocks.Source())
	}
	if m, n, pp := clocks.PLL(); m != 4 || n != 96 || pp != 4 {
		t.Fatalf("pll = %d/%d/%d", m, n, pp)
	}
	if clocks.PCLK1() != 48*types.MHz || clocks.PCLK2() != 48*types.MHz {
		t.Fatalf("pclk1=%v pclk2=%v", clocks.PCLK1(), clocks.PCLK2())
	}
	if got := s.Clock(); got == nil || got.SYSCLK != 48*types.MHz {
		t.Fatalf("backend clock = %+v", got)
	}

	if _, err := p.RCC.Freeze(48 * types.MHz); errcode.Of(err) != errcode.AlreadyTaken {
		t.Fatalf("second freeze: %v", err)
	}
}

func TestFreezeRejectsUnreachable(t *testing.T) {
	p, s := newSim(t, sim.WithBoard(boards.STM32F3Discovery))
	if _, err := p.RCC.Freeze(100 * types.MHz); errcode.Of(err) != errcode.InvalidFrequency {
		t.Fatalf("want invalid_frequency, got %v", err)
	}
	if s.Clock() != nil {
		t.Fatal("rejected tree reached the backend")
	}
}

func TestFreezeDefault(t *testing.T) {
	p, _ := newSim(t, sim.WithBoard(boards.STM32F3Discovery))
	clocks, err := p.RCC.FreezeDefault()
	if err != nil {
		t.Fatal(err)
	}
	if clocks.SYSCLK() != 8*types.MHz || clocks.Source() != types.SourceHSI {
		t.Fatalf("default = %v from %v", clocks.SYSCLK(), clocks.Source())
	}
}

func TestSplit(t *testing.T) {
	p, _ := newSim(t, sim.WithBoard(boards.NucleoF767ZI))
	gpiob, err := p.Port('B')
	if err != nil {
		t.Fatal(err)
	}
	if again, _ := p.Port('B'); again != gpiob {
		t.Fatal("Port returned a second handle")
	}
	parts, err := gpiob.Split()
	if err != nil {
		t.Fatal(err)
	}
	if parts.Len() != 16 {
		t.Fatalf("pins = %d", parts.Len())
	}
	if _, err := gpiob.Split(); errcode.Of(err) != errcode.AlreadyTaken {
		t.Fatalf("second split: %v", err)
	}
	if _, err := parts.Pin(16); errcode.Of(err) != errcode.UnknownPin {
		t.Fatalf("pin 16: %v", err)
	}
	if _, err := p.Port('L'); errcode.Of(err) != errcode.UnknownPin {
		t.Fatalf("port L: %v", err)
	}
}

func TestPushPullOutput(t *testing.T) {
	p, s := newSim(t, sim.WithBoard(boards.NucleoF767ZI))
	pins := splitPins(t, p, 'B', 0)

	led, err := pins[0].IntoPushPullOutput(types.High)
	if err != nil {
		t.Fatal(err)
	}
	if led.Mode() != types.ModePushPull || s.Mode(pinID("PB0")) != types.ModePushPull {
		t.Fatalf("mode = %v / %v", led.Mode(), s.Mode(pinID("PB0")))
	}
	// Driven high from the first recorded instant.
	tl := s.Timeline(pinID("PB0"))
	if len(tl) != 1 || tl[0].Level != types.High {
		t.Fatalf("timeline = %+v", tl)
	}
	if !led.IsSetHigh() {
		t.Fatal("initial level lost")
	}
	led.Toggle()
	if led.IsSetHigh() {
		t.Fatal("toggle did not drive low")
	}
	led.SetHigh()
	led.SetLow()
	if got := len(s.Timeline(pinID("PB0"))); got != 4 {
		t.Fatalf("events = %d", got)
	}

	if _, err := pins[0].IntoPushPullOutput(types.Low); errcode.Of(err) != errcode.PinInUse {
		t.Fatalf("reuse as output: %v", err)
	}
	if _, err := pins[0].IntoAlternate(7); errcode.Of(err) != errcode.PinInUse {
		t.Fatalf("reuse as alternate: %v", err)
	}
	if led.Mode() != types.ModePushPull {
		t.Fatal("mode changed after a rejected reconfiguration")
	}
}

func TestLEDGroup(t *testing.T) {
	p, s := newSim(t, sim.WithBoard(boards.STM32F3Discovery))
	pins := splitPins(t, p, 'E', 8, 9, 10, 11, 12, 13, 14, 15)
	outs := make([]*Output, len(pins))
	for i, pin := range pins {
		var err error
		if outs[i], err = pin.IntoPushPullOutput(types.Low); err != nil {
			t.Fatal(err)
		}
	}
	g := NewLEDGroup(outs...)
	g.Toggle()
	for i := 0; i < g.Len(); i++ {
		if !g.At(i).IsSetHigh() {
			t.Fatalf("LED %d still low", i)
		}
	}
	g.Set(types.Low)
	if lvl, _ := s.LevelAt(pinID("PE15"), time.Hour); lvl != types.Low {
		t.Fatal("PE15 not low")
	}
}

func f3Serial(t *testing.T, opts ...sim.Option) (*Serial, *sim.Sim) {
	t.Helper()
	p, s := newSim(t, append([]sim.Option{sim.WithBoard(boards.STM32F3Discovery)}, opts...)...)
	clocks, err := p.RCC.Freeze(48 * types.MHz)
	if err != nil {
		t.Fatal(err)
	}
	pins := splitPins(t, p, 'C', 10, 11)
	u, err := p.UART("uart4")
	if err != nil {
		t.Fatal(err)
	}
	ser, err := u.Configure(pins[0], pins[1], 115200, clocks)
	if err != nil {
		t.Fatal(err)
	}
	return ser, s
}

func TestUARTConfigure(t *testing.T) {
	ser, s := f3Serial(t)
	if ser.Divisor() != 208 {
		t.Fatalf("brr = %d", ser.Divisor())
	}
	for _, id := range []string{"PC10", "PC11"} {
		if s.Mode(pinID(id)) != types.ModeAlternate || s.AF(pinID(id)) != 5 {
			t.Fatalf("%s: %v af%d", id, s.Mode(pinID(id)), s.AF(pinID(id)))
		}
	}
	if err := ser.Write([]byte("Hello, World!\r\n")); err != nil {
		t.Fatal(err)
	}
	fr := s.Frames("uart4")
	if len(fr) != 1 || string(fr[0].Data) != "Hello, World!\r\n" {
		t.Fatalf("frames = %+v", fr)
	}
}

func TestUARTConfigureChecksWiring(t *testing.T) {
	p, _ := newSim(t, sim.WithBoard(boards.STM32F3Discovery))
	clocks, _ := p.RCC.Freeze(48 * types.MHz)
	pins := splitPins(t, p, 'C', 4, 5)
	u, _ := p.UART("uart4")
	if _, err := u.Configure(pins[0], pins[1], 115200, clocks); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("want invalid_params, got %v", err)
	}
	// The pins were not consumed.
	if _, err := pins[0].IntoPushPullOutput(types.Low); err != nil {
		t.Fatal(err)
	}
	if _, err := p.UART("usart9"); errcode.Of(err) != errcode.UnknownBus {
		t.Fatalf("usart9: %v", err)
	}
}

func TestBaudDivisor(t *testing.T) {
	ok := []struct {
		pclk types.Hertz
		baud uint32
		brr  uint32
	}{
		{24 * types.MHz, 115200, 208},
		{8 * types.MHz, 115200, 69},
		{54 * types.MHz, 9600, 5625},
		{125 * types.MHz, 115200, 1085},
	}
	for _, c := range ok {
		brr, err := baudDivisor(c.pclk, c.baud)
		if err != nil || brr != c.brr {
			t.Fatalf("%v/%d: brr=%d err=%v", c.pclk, c.baud, brr, err)
		}
	}
	bad := []struct {
		pclk types.Hertz
		baud uint32
	}{
		{types.MHz, 115200},     // divisor 9
		{108 * types.MHz, 1200}, // divisor 90000
		{1_649_000, 100_000},    // 3.06% off
		{8 * types.MHz, 0},
	}
	for _, c := range bad {
		if _, err := baudDivisor(c.pclk, c.baud); errcode.Of(err) != errcode.InvalidParams {
			t.Fatalf("%v/%d: want invalid_params, got %v", c.pclk, c.baud, err)
		}
	}
}

func TestSerialWriteTransmitError(t *testing.T) {
	ser, s := f3Serial(t, sim.FailUARTAfter("uart4", 1))
	if err := ser.Write([]byte("one")); err != nil {
		t.Fatal(err)
	}
	err := ser.Write([]byte("two"))
	if errcode.Of(err) != errcode.TransmitError {
		t.Fatalf("want transmit_error, got %v", err)
	}
	if !errors.Is(err, errcode.Overrun) {
		t.Fatalf("cause lost: %v", err)
	}
	if len(s.Frames("uart4")) != 1 {
		t.Fatal("failed write produced a frame")
	}
}

func TestI2CBus(t *testing.T) {
	p, s := newSim(t,
		sim.WithBoard(boards.STM32F3Discovery),
		sim.WithI2CDevice("i2c1", 0x19, nil),
	)
	clocks, _ := p.RCC.FreezeDefault()
	pins := splitPins(t, p, 'B', 6, 7)
	c, err := p.I2C("i2c1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Configure(pins[0], pins[1], 5_000, clocks); errcode.Of(err) != errcode.InvalidFrequency {
		t.Fatalf("5 kHz: %v", err)
	}
	bus, err := c.Configure(pins[0], pins[1], 100_000, clocks)
	if err != nil {
		t.Fatal(err)
	}
	var _ drivers.I2C = bus
	if s.Mode(pinID("PB6")) != types.ModeAlternateOpenDrain {
		t.Fatalf("scl mode %v", s.Mode(pinID("PB6")))
	}

	if err := bus.WriteRegister(0x19, 0x20, []byte{0x57, 0x01}); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 2)
	if err := bus.ReadRegister(0x19, 0x20, got); err != nil {
		t.Fatal(err)
	}
	if got[0] != 0x57 || got[1] != 0x01 {
		t.Fatalf("read % x", got)
	}
	if err := bus.Tx(0x1E, []byte{0}, nil); errcode.Of(err) != errcode.NACK {
		t.Fatalf("absent target: %v", err)
	}
	if err := bus.Tx(0x200, nil, nil); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("10-bit address: %v", err)
	}
	if _, err := c.Configure(pins[0], pins[1], 100_000, clocks); errcode.Of(err) != errcode.BusInUse {
		t.Fatalf("second configure: %v", err)
	}
}

func TestDelayMs(t *testing.T) {
	p, s := newSim(t, sim.WithBoard(boards.NucleoF767ZI))
	if _, err := p.SysTick.Delay(Clocks{}); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("unfrozen clocks: %v", err)
	}
	clocks, _ := p.RCC.Freeze(216 * types.MHz)
	d, err := p.SysTick.Delay(clocks)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.SysTick.Delay(clocks); errcode.Of(err) != errcode.AlreadyTaken {
		t.Fatalf("second delay: %v", err)
	}

	d.DelayMs(100)
	if s.Now() != 100*time.Millisecond {
		t.Fatalf("now = %v", s.Now())
	}
	// 432e6 ticks: more than one 24-bit reload.
	d.DelayMs(2000)
	if s.Now() != 2100*time.Millisecond {
		t.Fatalf("now = %v", s.Now())
	}
	d.DelayUs(250)
	if s.Now() != 2100*time.Millisecond+250*time.Microsecond {
		t.Fatalf("now = %v", s.Now())
	}
}

func TestHaltParksProgram(t *testing.T) {
	p, s := newSim(t, sim.WithBoard(boards.NucleoF767ZI))
	pins := splitPins(t, p, 'B', 0)
	led, _ := pins[0].IntoPushPullOutput(types.Low)

	rep := s.Run(func() {
		led.SetHigh()
		Halt(errcode.New(errcode.TransmitError, "serial.write", "test"))
		led.SetLow()
	})
	if rep.Fault == nil || rep.Fault.Code != string(errcode.TransmitError) {
		t.Fatalf("fault = %+v", rep.Fault)
	}
	if lvl, _ := s.LevelAt(pinID("PB0"), time.Hour); lvl != types.High {
		t.Fatal("program continued after Halt")
	}
}
