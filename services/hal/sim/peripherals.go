package sim

import (
	"strconv"

	"bringup-go/bus"
	"bringup-go/errcode"
	"bringup-go/services/hal/internal/core"
	"bringup-go/types"
	"bringup-go/x/mathx"
	"bringup-go/x/shmring"
	"bringup-go/x/timex"
)

const maxPins = 32

// -----------------------------------------------------------------------------
// GPIO
// -----------------------------------------------------------------------------

type port struct {
	s      *Sim
	id     types.PortID
	clock  bool
	modes  [maxPins]types.PinMode
	afs    [maxPins]uint8
	levels [maxPins]bool
}

func isOutput(m types.PinMode) bool {
	return m == types.ModePushPull || m == types.ModeOpenDrain
}

func (p *port) op(verb string) string { return "sim." + p.id.String() + "." + verb }

func (p *port) EnableClock() error {
	p.s.mu.Lock()
	p.clock = true
	p.s.mu.Unlock()
	return nil
}

func (p *port) Configure(n uint8, mode types.PinMode, af uint8) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if !p.clock {
		return errcode.New(errcode.NotReady, p.op("configure"), "port clock disabled")
	}
	pin := types.PinID{Port: p.id, N: n}
	if !s.board.ValidPin(pin) {
		return errcode.New(errcode.UnknownPin, p.op("configure"), pin.String())
	}
	if p.modes[n] != types.ModeUnconfigured {
		return errcode.New(errcode.PinInUse, p.op("configure"), pin.String())
	}
	if mode == types.ModeUnconfigured {
		return errcode.New(errcode.InvalidMode, p.op("configure"), pin.String())
	}
	p.modes[n] = mode
	p.afs[n] = af
	if isOutput(mode) {
		s.recordPinLocked(pin, p.levels[n])
	}
	return nil
}

// Set drives pin n. Levels written before the pin becomes an output are
// latched and appear when it is configured.
func (p *port) Set(n uint8, level bool) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(n) >= maxPins {
		return
	}
	if !isOutput(p.modes[n]) {
		p.levels[n] = level
		return
	}
	if !s.checkWriteLocked() {
		return
	}
	p.levels[n] = level
	s.recordPinLocked(types.PinID{Port: p.id, N: n}, level)
}

func (p *port) Get(n uint8) bool {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if int(n) >= maxPins {
		return false
	}
	return p.levels[n]
}

// pinMode reports the mode pin is locked in.
func (s *Sim) pinModeLocked(pin types.PinID) types.PinMode {
	p, ok := s.ports[pin.Port]
	if !ok || int(pin.N) >= maxPins {
		return types.ModeUnconfigured
	}
	return p.modes[pin.N]
}

// Mode reports the mode pin was configured into.
func (s *Sim) Mode(pin types.PinID) types.PinMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinModeLocked(pin)
}

// AF reports the alternate function selected on pin.
func (s *Sim) AF(pin types.PinID) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.ports[pin.Port]
	if !ok || int(pin.N) >= maxPins {
		return 0
	}
	return p.afs[pin.N]
}

// -----------------------------------------------------------------------------
// UART
// -----------------------------------------------------------------------------

type uart struct {
	s        *Sim
	id       string
	cfg      *core.UARTConfig
	fifo     *shmring.Ring
	accepted int
}

func newUART(s *Sim, id string) *uart {
	return &uart{s: s, id: id, fifo: shmring.New(s.txFIFO)}
}

func (u *uart) op(verb string) string { return "sim." + u.id + "." + verb }

func (u *uart) Configure(cfg core.UARTConfig) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.cfg != nil {
		return errcode.New(errcode.BusInUse, u.op("configure"), "already configured")
	}
	for _, pin := range []types.PinID{cfg.TX, cfg.RX} {
		if m := s.pinModeLocked(pin); m != types.ModeAlternate {
			return errcode.New(errcode.InvalidMode, u.op("configure"), pin.String()+" is "+m.String())
		}
	}
	if cfg.BRR == 0 || cfg.PCLK == 0 {
		return errcode.New(errcode.InvalidParams, u.op("configure"), "zero divisor")
	}
	c := cfg
	u.cfg = &c
	s.log.Info().Str("uart", u.id).Str("tx", cfg.TX.String()).Str("rx", cfg.RX.String()).
		Uint32("baud", cfg.Baud).Uint32("brr", cfg.BRR).Msg("uart configured")
	return nil
}

// Write pushes p through the TX FIFO as one frame and advances virtual time
// by the time the shift register needs to put it on the wire.
func (u *uart) Write(p []byte) (int, error) {
	s := u.s
	s.mu.Lock()
	if u.cfg == nil {
		s.mu.Unlock()
		return 0, errcode.New(errcode.NotReady, u.op("write"), "not configured")
	}
	if !s.checkWriteLocked() {
		s.mu.Unlock()
		return 0, errcode.New(errcode.NotReady, u.op("write"), "halted")
	}
	if limit, ok := s.failUART[u.id]; ok && u.accepted >= limit {
		s.mu.Unlock()
		return 0, errcode.New(errcode.Overrun, u.op("write"), "injected fault")
	}
	if !u.fifo.TryWriteAll(p) {
		s.mu.Unlock()
		return 0, errcode.New(errcode.Overrun, u.op("write"),
			strconv.Itoa(len(p))+" bytes exceed tx fifo of "+strconv.Itoa(u.fifo.Space()))
	}
	u.accepted++

	data := make([]byte, len(p))
	u.fifo.ReadInto(data)

	// 16x oversampling: the real baud is PCLK/BRR, not the requested one.
	baud := uint32(mathx.RoundDiv(uint32(u.cfg.PCLK), u.cfg.BRR))
	wire := timex.BitTimeNs(uint64(len(data))*10, baud)
	f := types.SerialFrame{Bus: u.id, Data: data, TSns: s.nowLocked() + wire}
	s.frames = append(s.frames, f)
	s.log.Debug().Str("uart", u.id).Int("len", len(data)).Bytes("data", data).Msg("tx")
	s.publishLocked(bus.T("sim", "uart", u.id), f, false)
	s.mu.Unlock()

	s.advance(0, wire)
	return len(p), nil
}

// -----------------------------------------------------------------------------
// I²C
// -----------------------------------------------------------------------------

// Registers is a simple I²C target: the first written byte sets the register
// pointer, further bytes are stored at successive registers, and reads return
// bytes from the pointer onwards.
type Registers struct {
	Bank [256]byte
	ptr  uint8
}

func (r *Registers) handle(w, rd []byte) {
	if len(w) > 0 {
		r.ptr = w[0]
		for _, b := range w[1:] {
			r.Bank[r.ptr] = b
			r.ptr++
		}
	}
	for i := range rd {
		rd[i] = r.Bank[r.ptr]
		r.ptr++
	}
}

type i2c struct {
	s       *Sim
	id      string
	cfg     *core.I2CConfig
	devices map[uint16]*Registers
}

func (b *i2c) op(verb string) string { return "sim." + b.id + "." + verb }

func (b *i2c) Configure(cfg core.I2CConfig) error {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.cfg != nil {
		return errcode.New(errcode.BusInUse, b.op("configure"), "already configured")
	}
	for _, pin := range []types.PinID{cfg.SCL, cfg.SDA} {
		if m := s.pinModeLocked(pin); m != types.ModeAlternateOpenDrain {
			return errcode.New(errcode.InvalidMode, b.op("configure"), pin.String()+" is "+m.String())
		}
	}
	if cfg.Hz == 0 {
		return errcode.New(errcode.InvalidFrequency, b.op("configure"), "0Hz")
	}
	c := cfg
	b.cfg = &c
	s.log.Info().Str("i2c", b.id).Uint32("hz", cfg.Hz).Msg("i2c configured")
	return nil
}

// Tx performs one combined write/read transaction with the target at addr.
func (b *i2c) Tx(addr uint16, w, r []byte) error {
	s := b.s
	s.mu.Lock()
	if b.cfg == nil {
		s.mu.Unlock()
		return errcode.New(errcode.NotReady, b.op("tx"), "not configured")
	}
	if !s.checkWriteLocked() {
		s.mu.Unlock()
		return errcode.New(errcode.NotReady, b.op("tx"), "halted")
	}
	// start + address + data, 9 clocks per byte, repeated start for reads
	bytes := 1 + len(w)
	if len(r) > 0 {
		bytes += 1 + len(r)
	}
	wire := timex.BitTimeNs(uint64(bytes)*9+2, b.cfg.Hz)

	tr := types.I2CTransfer{Bus: b.id, Addr: addr, W: append([]byte(nil), w...), RLen: len(r), TSns: s.nowLocked() + wire}
	s.transfers = append(s.transfers, tr)
	s.publishLocked(bus.T("sim", "i2c", b.id), tr, false)

	dev, ok := b.devices[addr]
	if ok {
		dev.handle(w, r)
	}
	s.mu.Unlock()

	s.advance(0, wire)
	if !ok {
		return errcode.New(errcode.NACK, b.op("tx"), "no target at 0x"+strconv.FormatUint(uint64(addr), 16))
	}
	return nil
}
