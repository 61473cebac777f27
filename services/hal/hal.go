// Package hal is the bring-up API programs are written against. It hands out
// the peripheral set once per process, and every configuration step after
// that consumes what it configures: a frozen clock tree cannot be frozen
// again, a pin turned into an output cannot be turned into anything else.
//
// A typical program:
//
//	p, err := hal.Take()
//	if err != nil {
//		hal.Halt(err)
//	}
//	clocks, err := p.RCC.Freeze(48 * types.MHz)
//	...
//	gpiob, _ := p.Port('B')
//	parts, _ := gpiob.Split()
//	pin, _ := parts.Pin(0)
//	led, _ := pin.IntoPushPullOutput(types.Low)
//	delay, _ := p.SysTick.Delay(clocks)
//	schedule.RunForever(steps, delay, hal.Halt)
package hal

import (
	"sync"
	"sync/atomic"

	"bringup-go/errcode"
	"bringup-go/services/hal/boards"
	"bringup-go/services/hal/internal/core"
	"bringup-go/services/hal/internal/platform"
	"bringup-go/types"
)

// taken guards Take for the life of the process. There is no release.
var taken atomic.Bool

var (
	activeMu sync.Mutex
	active   core.Backend
)

// Peripherals is the device's peripheral set.
type Peripherals struct {
	RCC     *RCC
	SysTick *SysTick

	be    core.Backend
	mu    sync.Mutex
	ports map[types.PortID]*Port
	uarts map[string]*UART
	i2cs  map[string]*I2C
}

// Take returns the peripheral set the first time it is called and
// errcode.AlreadyTaken on every later call.
func Take() (*Peripherals, error) { return take(platform.Open) }

func take(open func() core.Backend) (*Peripherals, error) {
	if !taken.CompareAndSwap(false, true) {
		return nil, errcode.New(errcode.AlreadyTaken, "hal.take", "peripherals already taken")
	}
	be := open()
	activeMu.Lock()
	active = be
	activeMu.Unlock()

	p := &Peripherals{
		be:    be,
		ports: make(map[types.PortID]*Port),
		uarts: make(map[string]*UART),
		i2cs:  make(map[string]*I2C),
	}
	p.RCC = &RCC{be: be}
	p.SysTick = &SysTick{hw: be.SysTick()}
	return p, nil
}

// Board describes the board the program was built for.
func (p *Peripherals) Board() *boards.Board { return p.be.Board() }

// Port returns GPIO bank id. Repeated calls return the same Port.
func (p *Peripherals) Port(id types.PortID) (*Port, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pt, ok := p.ports[id]; ok {
		return pt, nil
	}
	hw, ok := p.be.GPIO(id)
	if !ok {
		return nil, errcode.New(errcode.UnknownPin, "hal.port", "no port "+id.String()+" on "+p.be.Board().Name)
	}
	pt := &Port{id: id, hw: hw, board: p.be.Board()}
	p.ports[id] = pt
	return pt, nil
}

// UART returns the serial controller id ("usart3", "uart4", "uart0", ...).
func (p *Peripherals) UART(id string) (*UART, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.uarts[id]; ok {
		return u, nil
	}
	ctrl, ok := p.be.Board().UARTByID(id)
	hw, hok := p.be.UART(id)
	if !ok || !hok {
		return nil, errcode.New(errcode.UnknownBus, "hal.uart", id)
	}
	u := &UART{ctrl: ctrl, hw: hw}
	p.uarts[id] = u
	return u, nil
}

// I2C returns the I²C controller id.
func (p *Peripherals) I2C(id string) (*I2C, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.i2cs[id]; ok {
		return c, nil
	}
	ctrl, ok := p.be.Board().I2CByID(id)
	hw, hok := p.be.I2C(id)
	if !ok || !hok {
		return nil, errcode.New(errcode.UnknownBus, "hal.i2c", id)
	}
	c := &I2C{ctrl: ctrl, hw: hw}
	p.i2cs[id] = c
	return c, nil
}

// Halt stops the program for good. On a microcontroller the core spins so a
// debugger can attach; on the host the simulator records err and parks the
// caller. Halt never returns.
func Halt(err error) {
	activeMu.Lock()
	be := active
	activeMu.Unlock()
	if be == nil {
		be = platform.Open()
	}
	be.Halt(err)
	select {}
}
