// Package schedule drives a fixed cyclic list of pin and bus actions from a
// busy-wait delay source. There is no scheduler, interrupt or cancellation:
// RunForever owns the core until a write fails, and then hands the error to
// the halt routine.
//
//	steps := []schedule.Step{
//		{Action: schedule.High(ld1, ld2, ld3), DelayMs: 100},
//		{Action: schedule.Low(ld1, ld2, ld3), DelayMs: 400},
//	}
//	schedule.RunForever(steps, delay, hal.Halt)
package schedule

import (
	"strconv"

	"bringup-go/errcode"

	"tinygo.org/x/drivers"
)

// Pin is an output the schedule can drive. *hal.Output satisfies it.
type Pin interface {
	SetHigh()
	SetLow()
	Toggle()
}

// Writer sends one whole frame or fails. *hal.Serial satisfies it.
type Writer interface {
	Write(p []byte) error
}

// Delayer busy-waits. *hal.Delay satisfies it.
type Delayer interface {
	DelayMs(ms uint32)
}

// Halter never returns on hardware. hal.Halt is one.
type Halter func(err error)

// Kind is what an Action does.
type Kind uint8

const (
	KindHigh Kind = iota + 1
	KindLow
	KindToggle
	KindWrite
	KindI2CWrite
)

func (k Kind) String() string {
	switch k {
	case KindHigh:
		return "high"
	case KindLow:
		return "low"
	case KindToggle:
		return "toggle"
	case KindWrite:
		return "write"
	case KindI2CWrite:
		return "i2c"
	default:
		return "unknown"
	}
}

// Action is one effect of a step. Build it with High, Low, Toggle, Write or
// I2CWrite.
type Action struct {
	kind Kind
	pins []Pin
	w    Writer
	bus  drivers.I2C
	addr uint16
	data []byte
}

func (a Action) Kind() Kind { return a.kind }

// High drives every pin high, in order.
func High(pins ...Pin) Action { return Action{kind: KindHigh, pins: pins} }

// Low drives every pin low, in order.
func Low(pins ...Pin) Action { return Action{kind: KindLow, pins: pins} }

// Toggle inverts every pin, in order.
func Toggle(pins ...Pin) Action { return Action{kind: KindToggle, pins: pins} }

// Write sends data as one frame. data is copied.
func Write(w Writer, data []byte) Action {
	return Action{kind: KindWrite, w: w, data: append([]byte(nil), data...)}
}

// I2CWrite writes data to the 7-bit target addr. data is copied.
func I2CWrite(bus drivers.I2C, addr uint16, data []byte) Action {
	return Action{kind: KindI2CWrite, bus: bus, addr: addr, data: append([]byte(nil), data...)}
}

// Step runs Action, then waits DelayMs.
type Step struct {
	Action  Action
	DelayMs uint32
}

// Period is the cycle length in milliseconds.
func Period(steps []Step) uint64 {
	var ms uint64
	for _, s := range steps {
		ms += uint64(s.DelayMs)
	}
	return ms
}

// Validate checks a schedule before it is started.
func Validate(steps []Step) error {
	const op = "schedule.validate"
	if len(steps) == 0 {
		return errcode.New(errcode.InvalidParams, op, "empty schedule")
	}
	for i, s := range steps {
		at := "step " + strconv.Itoa(i) + ": "
		a := s.Action
		switch a.kind {
		case KindHigh, KindLow, KindToggle:
			if len(a.pins) == 0 {
				return errcode.New(errcode.InvalidParams, op, at+a.kind.String()+" without pins")
			}
			for _, p := range a.pins {
				if p == nil {
					return errcode.New(errcode.InvalidParams, op, at+"nil pin")
				}
			}
		case KindWrite:
			if a.w == nil {
				return errcode.New(errcode.InvalidParams, op, at+"nil serial")
			}
		case KindI2CWrite:
			if a.bus == nil {
				return errcode.New(errcode.InvalidParams, op, at+"nil i2c bus")
			}
			if a.addr > 0x7F {
				return errcode.New(errcode.InvalidParams, op, at+"address 0x"+strconv.FormatUint(uint64(a.addr), 16))
			}
		default:
			return errcode.New(errcode.InvalidParams, op, at+"no action")
		}
	}
	if Period(steps) == 0 {
		return errcode.New(errcode.InvalidParams, op, "zero period")
	}
	return nil
}

// RunForever validates steps and executes them in order, cycling without
// end. The first failed bus write is passed to halt and nothing further is
// driven. RunForever only returns if halt does.
func RunForever(steps []Step, d Delayer, halt Halter) {
	if d == nil {
		halt(errcode.New(errcode.InvalidParams, "schedule.run", "nil delay"))
		return
	}
	if err := Validate(steps); err != nil {
		halt(err)
		return
	}
	for {
		for _, s := range steps {
			if err := s.Action.apply(); err != nil {
				halt(err)
				return
			}
			if s.DelayMs > 0 {
				d.DelayMs(s.DelayMs)
			}
		}
	}
}

func (a Action) apply() error {
	switch a.kind {
	case KindHigh:
		for _, p := range a.pins {
			p.SetHigh()
		}
	case KindLow:
		for _, p := range a.pins {
			p.SetLow()
		}
	case KindToggle:
		for _, p := range a.pins {
			p.Toggle()
		}
	case KindWrite:
		if err := a.w.Write(a.data); err != nil {
			if errcode.Of(err) == errcode.TransmitError {
				return err
			}
			return errcode.Wrap(errcode.TransmitError, "schedule.write", err)
		}
	case KindI2CWrite:
		if err := a.bus.Tx(a.addr, a.data, nil); err != nil {
			return errcode.Wrap(errcode.TransmitError, "schedule.i2c", err)
		}
	}
	return nil
}
