// Package sim is a deterministic host backend for the HAL. Time is virtual:
// it advances only when the program waits on SysTick or shifts bytes out of
// a UART, so a two-second delay costs nothing unless a time scale is set.
//
// Every observation is kept for inspection and published on a bus:
//
//	sim/pin/<pin>    types.PinEvent
//	sim/uart/<id>    types.SerialFrame
//	sim/i2c/<id>     types.I2CTransfer
//	sim/clock        types.ClockState (retained)
//	sim/halt         types.Fault (retained)
//	sim/power        "off"
package sim

import (
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"bringup-go/bus"
	"bringup-go/errcode"
	"bringup-go/services/hal/boards"
	"bringup-go/services/hal/internal/clocktree"
	"bringup-go/services/hal/internal/core"
	"bringup-go/types"
	"bringup-go/x/timex"

	"github.com/rs/zerolog"
)

var _ core.Backend = (*Sim)(nil)

const defaultTXFIFO = 256

type Sim struct {
	mu sync.Mutex

	board *boards.Board
	log   zerolog.Logger
	conn  *bus.Connection

	// Virtual time: base plus ticks counted at hz since the last rebase.
	baseNs int64
	ticks  uint64
	hz     types.Hertz

	clock *types.ClockState

	ports map[types.PortID]*port
	uarts map[string]*uart
	i2cs  map[string]*i2c

	timelines map[types.PinID][]types.PinEvent
	frames    []types.SerialFrame
	transfers []types.I2CTransfer
	fault     *types.Fault
	// writes attempted after the halt was recorded
	postHalt int

	// options
	scale       float64
	stopAtNs    int64
	txFIFO      int
	failUART    map[string]int
	i2cDevices  map[string]map[uint16]*Registers
	exitOnOff   bool

	done     chan struct{} // halted or powered off
	doneOnce sync.Once
	off      chan struct{}
	offOnce  sync.Once
}

// Option configures a Sim.
type Option func(*Sim)

func WithBoard(b *boards.Board) Option { return func(s *Sim) { s.board = b } }

func WithLogger(l zerolog.Logger) Option { return func(s *Sim) { s.log = l } }

// WithBus publishes observations on b.
func WithBus(b *bus.Bus) Option {
	return func(s *Sim) { s.conn = b.NewConnection("sim") }
}

// WithTimeScale makes every virtual wait also sleep for scale times its
// length in wall-clock time. Zero (the default) never sleeps.
func WithTimeScale(scale float64) Option { return func(s *Sim) { s.scale = scale } }

// WithPowerOffAfter cuts power once virtual time reaches d.
func WithPowerOffAfter(d time.Duration) Option { return func(s *Sim) { s.stopAtNs = int64(d) } }

// WithTXFIFO sets every UART's transmit FIFO size (power of two).
func WithTXFIFO(n int) Option { return func(s *Sim) { s.txFIFO = n } }

// FailUARTAfter makes UART id reject every write after n accepted ones.
func FailUARTAfter(id string, n int) Option {
	return func(s *Sim) { s.failUART[id] = n }
}

// WithI2CDevice attaches a register-bank target at addr on bus id.
func WithI2CDevice(id string, addr uint16, regs *Registers) Option {
	return func(s *Sim) {
		if s.i2cDevices[id] == nil {
			s.i2cDevices[id] = make(map[uint16]*Registers)
		}
		if regs == nil {
			regs = &Registers{}
		}
		s.i2cDevices[id][addr] = regs
	}
}

// WithExitOnPowerOff ends the process on power-off instead of ending only the
// program goroutine. For programs running the sim from main.
func WithExitOnPowerOff() Option { return func(s *Sim) { s.exitOnOff = true } }

func New(opts ...Option) *Sim {
	s := &Sim{
		board:      boards.Selected,
		log:        zerolog.Nop(),
		txFIFO:     defaultTXFIFO,
		failUART:   make(map[string]int),
		i2cDevices: make(map[string]map[uint16]*Registers),
		ports:      make(map[types.PortID]*port),
		uarts:      make(map[string]*uart),
		i2cs:       make(map[string]*i2c),
		timelines:  make(map[types.PinID][]types.PinEvent),
		done:       make(chan struct{}),
		off:        make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.hz = clocktree.Default(s.board.Clock).HCLK
	return s
}

// -----------------------------------------------------------------------------
// Host default selection
// -----------------------------------------------------------------------------

var installed atomic.Pointer[Sim]

// Install makes s the backend returned to hal.Take on the host.
func Install(s *Sim) { installed.Store(s) }

// Installed returns the installed Sim, or nil.
func Installed() *Sim { return installed.Load() }

// -----------------------------------------------------------------------------
// core.Backend
// -----------------------------------------------------------------------------

func (s *Sim) Board() *boards.Board { return s.board }

func (s *Sim) ApplyClocks(t clocktree.Tree) error {
	cs := t.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clock != nil {
		return errcode.New(errcode.AlreadyTaken, "sim.apply_clocks", "clock tree already applied")
	}
	s.rebaseLocked(cs.HCLK)
	c := cs
	s.clock = &c
	s.log.Info().
		Str("source", cs.Source.String()).
		Str("sysclk", cs.SYSCLK.String()).
		Str("pclk1", cs.PCLK1.String()).
		Str("pclk2", cs.PCLK2.String()).
		Uint8("flash_latency", cs.FlashLatency).
		Msg("clocks frozen")
	s.publishLocked(bus.T("sim", "clock"), c, true)
	return nil
}

func (s *Sim) GPIO(id types.PortID) (core.GPIOPort, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.board.HasPort(id) {
		return nil, false
	}
	p, ok := s.ports[id]
	if !ok {
		p = &port{s: s, id: id}
		s.ports[id] = p
	}
	return p, true
}

func (s *Sim) UART(id string) (core.UARTPeripheral, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.board.UARTByID(id); !ok {
		return nil, false
	}
	u, ok := s.uarts[id]
	if !ok {
		u = newUART(s, id)
		s.uarts[id] = u
	}
	return u, true
}

func (s *Sim) I2C(id string) (core.I2CPeripheral, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.board.I2CByID(id); !ok {
		return nil, false
	}
	b, ok := s.i2cs[id]
	if !ok {
		b = &i2c{s: s, id: id, devices: s.i2cDevices[id]}
		s.i2cs[id] = b
	}
	return b, true
}

func (s *Sim) SysTick() core.Counter { return counter{s} }

// Halt records the fault and parks the caller until power-off.
func (s *Sim) Halt(err error) {
	s.mu.Lock()
	if s.fault == nil {
		f := types.Fault{Code: string(errcode.Of(err)), TSns: s.nowLocked()}
		if err != nil {
			f.Msg = err.Error()
		}
		s.fault = &f
		s.log.Error().Str("code", f.Code).Str("msg", f.Msg).Dur("at", time.Duration(f.TSns)).Msg("halt")
		s.publishLocked(bus.T("sim", "halt"), f, true)
	}
	s.mu.Unlock()
	s.markDone()
	<-s.off
	s.exit()
}

// -----------------------------------------------------------------------------
// Running programs
// -----------------------------------------------------------------------------

// Run executes program on its own goroutine and returns once the program
// halts or power is cut. A program that returns is recorded as a fault.
func (s *Sim) Run(program func()) Report {
	go func() {
		program()
		s.mu.Lock()
		if s.fault == nil {
			s.fault = &types.Fault{Code: string(errcode.Error), Msg: "program returned", TSns: s.nowLocked()}
		}
		s.mu.Unlock()
		s.markDone()
	}()
	<-s.done
	s.PowerOff()
	return s.Report()
}

// Done is closed once the program has halted or power is off.
func (s *Sim) Done() <-chan struct{} { return s.done }

// PowerOff cuts power. Parked and waiting programs end.
func (s *Sim) PowerOff() {
	s.offOnce.Do(func() {
		s.mu.Lock()
		s.log.Info().Dur("uptime", time.Duration(s.nowLocked())).Msg("power off")
		s.publishLocked(bus.T("sim", "power"), "off", false)
		s.mu.Unlock()
		close(s.off)
	})
	s.markDone()
}

func (s *Sim) markDone() { s.doneOnce.Do(func() { close(s.done) }) }

func (s *Sim) poweredOff() bool {
	select {
	case <-s.off:
		return true
	default:
		return false
	}
}

// exit ends the calling program goroutine (or the process).
func (s *Sim) exit() {
	if s.exitOnOff {
		code := 0
		if s.Fault() != nil {
			code = 1
		}
		os.Exit(code)
	}
	runtime.Goexit()
}

// -----------------------------------------------------------------------------
// Virtual time
// -----------------------------------------------------------------------------

func (s *Sim) nowLocked() int64 {
	return s.baseNs + timex.TicksToNs(s.ticks, uint32(s.hz))
}

func (s *Sim) rebaseLocked(hz types.Hertz) {
	s.baseNs = s.nowLocked()
	s.ticks = 0
	s.hz = hz
}

// advance moves virtual time forward by ticks at the current HCLK, or by ns
// when ticks is zero, then honours the time scale and the power-off limit.
func (s *Sim) advance(ticks uint64, ns int64) {
	s.mu.Lock()
	before := s.nowLocked()
	if ticks > 0 {
		s.ticks += ticks
	} else {
		s.baseNs += ns
	}
	now := s.nowLocked()
	cut := s.stopAtNs > 0 && now >= s.stopAtNs
	if cut {
		s.rebaseLocked(s.hz)
		s.baseNs = s.stopAtNs
		now = s.stopAtNs
	}
	s.mu.Unlock()

	if s.scale > 0 {
		d := time.Duration(float64(now-before) * s.scale)
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-s.off:
			t.Stop()
		}
	}
	if cut {
		s.PowerOff()
	}
	if s.poweredOff() {
		s.exit()
	}
}

// Now is the virtual time since power-on.
func (s *Sim) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.nowLocked())
}

type counter struct{ s *Sim }

func (c counter) Wait(ticks uint32) {
	if ticks == 0 {
		return
	}
	if ticks > core.MaxReload {
		ticks = core.MaxReload
	}
	c.s.advance(uint64(ticks), 0)
}

// -----------------------------------------------------------------------------
// Recording
// -----------------------------------------------------------------------------

// checkWriteLocked counts writes attempted after a halt; they are dropped.
func (s *Sim) checkWriteLocked() bool {
	if s.fault != nil {
		s.postHalt++
		return false
	}
	return true
}

func (s *Sim) publishLocked(t bus.Topic, payload any, retained bool) {
	if s.conn == nil {
		return
	}
	s.conn.Publish(s.conn.NewMessage(t, payload, retained))
}

func (s *Sim) recordPinLocked(pin types.PinID, level bool) {
	tl := s.timelines[pin]
	if n := len(tl); n > 0 && bool(tl[n-1].Level) == level {
		return
	}
	ev := types.PinEvent{Pin: pin, Name: s.board.Label(pin), Level: types.Level(level), TSns: s.nowLocked()}
	s.timelines[pin] = append(tl, ev)
	s.log.Debug().Str("pin", pin.String()).Str("name", ev.Name).Str("level", ev.Level.String()).
		Dur("at", time.Duration(ev.TSns)).Msg("pin")
	s.publishLocked(bus.T("sim", "pin", pin.String()), ev, false)
}
