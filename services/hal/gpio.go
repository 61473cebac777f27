package hal

import (
	"strconv"
	"sync"
	"sync/atomic"

	"bringup-go/errcode"
	"bringup-go/services/hal/boards"
	"bringup-go/services/hal/internal/core"
	"bringup-go/types"
)

// Port is a GPIO bank. Split it once to get its pins.
type Port struct {
	id    types.PortID
	hw    core.GPIOPort
	board *boards.Board
	split atomic.Bool
}

func (pt *Port) ID() types.PortID { return pt.id }

// Split gates the bank clock on and returns its pin descriptors.
func (pt *Port) Split() (*Parts, error) {
	if !pt.split.CompareAndSwap(false, true) {
		return nil, errcode.New(errcode.AlreadyTaken, "gpio.split", pt.id.String()+" already split")
	}
	if err := pt.hw.EnableClock(); err != nil {
		return nil, err
	}
	n := pt.board.PinsPerPort
	ps := &Parts{port: pt.id, pins: make([]*Pin, n)}
	for i := uint8(0); i < n; i++ {
		ps.pins[i] = &Pin{id: types.PinID{Port: pt.id, N: i}, hw: pt.hw}
	}
	return ps, nil
}

// Parts holds the descriptors of one split port.
type Parts struct {
	port types.PortID
	pins []*Pin
}

// Pin returns descriptor n. The same descriptor is returned each time; it
// can be configured once.
func (ps *Parts) Pin(n uint8) (*Pin, error) {
	if int(n) >= len(ps.pins) {
		return nil, errcode.New(errcode.UnknownPin, "gpio.pin",
			types.PinID{Port: ps.port, N: n}.String())
	}
	return ps.pins[n], nil
}

// Len is the number of pins in the port.
func (ps *Parts) Len() int { return len(ps.pins) }

// Pin is an unconfigured pin descriptor.
type Pin struct {
	id      types.PinID
	hw      core.GPIOPort
	claimed atomic.Bool
}

func (p *Pin) ID() types.PinID { return p.id }

func (p *Pin) claim(op string) error {
	if !p.claimed.CompareAndSwap(false, true) {
		return errcode.New(errcode.PinInUse, op, p.id.String())
	}
	return nil
}

// IntoPushPullOutput locks the pin into push-pull output mode, driving
// initial from the first instant.
func (p *Pin) IntoPushPullOutput(initial types.Level) (*Output, error) {
	return p.intoOutput("gpio.into_push_pull", types.ModePushPull, initial)
}

// IntoOpenDrainOutput locks the pin into open-drain output mode.
func (p *Pin) IntoOpenDrainOutput(initial types.Level) (*Output, error) {
	return p.intoOutput("gpio.into_open_drain", types.ModeOpenDrain, initial)
}

func (p *Pin) intoOutput(op string, mode types.PinMode, initial types.Level) (*Output, error) {
	if err := p.claim(op); err != nil {
		return nil, err
	}
	// Latch the level first so the pin never glitches.
	p.hw.Set(p.id.N, bool(initial))
	if err := p.hw.Configure(p.id.N, mode, 0); err != nil {
		return nil, err
	}
	return &Output{pin: p.id, hw: p.hw, mode: mode}, nil
}

// IntoAlternate routes the pin to peripheral function af (push-pull).
func (p *Pin) IntoAlternate(af uint8) (*Alternate, error) {
	return p.intoAlternate("gpio.into_alternate", types.ModeAlternate, af)
}

// IntoAlternateOpenDrain routes the pin to af with an open-drain driver.
func (p *Pin) IntoAlternateOpenDrain(af uint8) (*Alternate, error) {
	return p.intoAlternate("gpio.into_alternate_open_drain", types.ModeAlternateOpenDrain, af)
}

func (p *Pin) intoAlternate(op string, mode types.PinMode, af uint8) (*Alternate, error) {
	if af > 15 {
		return nil, errcode.New(errcode.InvalidParams, op, "af"+strconv.Itoa(int(af)))
	}
	if err := p.claim(op); err != nil {
		return nil, err
	}
	if err := p.hw.Configure(p.id.N, mode, af); err != nil {
		return nil, err
	}
	return &Alternate{pin: p.id, mode: mode, af: af}, nil
}

// Output is a pin locked in an output mode.
type Output struct {
	pin  types.PinID
	hw   core.GPIOPort
	mode types.PinMode
}

func (o *Output) Pin() types.PinID    { return o.pin }
func (o *Output) Mode() types.PinMode { return o.mode }
func (o *Output) SetHigh()            { o.hw.Set(o.pin.N, true) }
func (o *Output) SetLow()             { o.hw.Set(o.pin.N, false) }
func (o *Output) Set(l types.Level)   { o.hw.Set(o.pin.N, bool(l)) }

// IsSetHigh reports the driven level (the output latch, not the pad).
func (o *Output) IsSetHigh() bool { return o.hw.Get(o.pin.N) }

func (o *Output) Toggle() { o.hw.Set(o.pin.N, !o.hw.Get(o.pin.N)) }

// Alternate is a pin routed to a peripheral.
type Alternate struct {
	pin  types.PinID
	mode types.PinMode
	af   uint8
}

func (a *Alternate) Pin() types.PinID    { return a.pin }
func (a *Alternate) Mode() types.PinMode { return a.mode }
func (a *Alternate) AF() uint8           { return a.af }

// LEDGroup drives several outputs together, e.g. the eight compass LEDs of
// the F3-Discovery.
type LEDGroup struct {
	mu   sync.Mutex
	outs []*Output
}

func NewLEDGroup(outs ...*Output) *LEDGroup {
	return &LEDGroup{outs: append([]*Output(nil), outs...)}
}

func (g *LEDGroup) Len() int { return len(g.outs) }

// At returns the i-th output in construction order.
func (g *LEDGroup) At(i int) *Output { return g.outs[i] }

func (g *LEDGroup) Set(l types.Level) {
	g.mu.Lock()
	for _, o := range g.outs {
		o.Set(l)
	}
	g.mu.Unlock()
}

func (g *LEDGroup) Toggle() {
	g.mu.Lock()
	for _, o := range g.outs {
		o.Toggle()
	}
	g.mu.Unlock()
}

// Outputs returns the group's outputs for use as schedule targets.
func (g *LEDGroup) Outputs() []*Output { return append([]*Output(nil), g.outs...) }
