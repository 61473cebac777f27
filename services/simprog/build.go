package simprog

import (
	"strings"

	"bringup-go/errcode"
	"bringup-go/services/hal"
	"bringup-go/services/schedule"
	"bringup-go/types"
)

// Built is a program configured on real peripherals, ready for
// schedule.RunForever.
type Built struct {
	Clocks  hal.Clocks
	Delay   *hal.Delay
	Steps   []schedule.Step
	Outputs map[string]*hal.Output
	Serial  *hal.Serial
	I2C     *hal.I2CBus
}

// Build freezes the clocks, configures every declared pin and bus, and
// compiles the steps. It consumes p's RCC, SysTick and the ports it
// touches.
func (prog *Program) Build(p *hal.Peripherals) (*Built, error) {
	const op = "simprog.build"
	board := p.Board()
	if prog.Board != "" && prog.Board != board.Name {
		return nil, errcode.New(errcode.InvalidParams, op, "program is for "+prog.Board+", running on "+board.Name)
	}

	var (
		clocks hal.Clocks
		err    error
	)
	if prog.SysclkHz == 0 {
		clocks, err = p.RCC.FreezeDefault()
	} else {
		clocks, err = p.RCC.Freeze(types.Hertz(prog.SysclkHz))
	}
	if err != nil {
		return nil, err
	}

	b := &Built{Clocks: clocks, Outputs: make(map[string]*hal.Output, len(prog.Outputs))}
	pins := pinSource{p: p, parts: make(map[types.PortID]*hal.Parts)}

	for _, o := range prog.Outputs {
		id, err := resolvePin(p, o.Pin)
		if err != nil {
			return nil, err
		}
		pin, err := pins.get(id)
		if err != nil {
			return nil, err
		}
		initial := types.Level(strings.EqualFold(o.Initial, "high"))
		var out *hal.Output
		if o.OpenDrain {
			out, err = pin.IntoOpenDrainOutput(initial)
		} else {
			out, err = pin.IntoPushPullOutput(initial)
		}
		if err != nil {
			return nil, err
		}
		b.Outputs[o.Name] = out
	}

	if s := prog.Serial; s != nil {
		if b.Serial, err = buildSerial(p, &pins, s, clocks); err != nil {
			return nil, err
		}
	}
	if c := prog.I2C; c != nil {
		if b.I2C, err = buildI2C(p, &pins, c, clocks); err != nil {
			return nil, err
		}
	}

	if b.Delay, err = p.SysTick.Delay(clocks); err != nil {
		return nil, err
	}

	for _, line := range prog.Steps {
		st, err := ParseStep(line)
		if err != nil {
			return nil, err
		}
		step, err := b.compile(st)
		if err != nil {
			return nil, err
		}
		b.Steps = append(b.Steps, step)
	}
	if err := schedule.Validate(b.Steps); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Built) compile(st StepSpec) (schedule.Step, error) {
	const op = "simprog.build"
	step := schedule.Step{DelayMs: st.WaitMs()}
	switch st.Verb {
	case VerbWrite:
		if b.Serial == nil || b.Serial.ID() != st.Bus {
			return step, errcode.New(errcode.UnknownBus, op, st.Bus)
		}
		step.Action = schedule.Write(b.Serial, st.Data)
	case VerbI2C:
		if b.I2C == nil || b.I2C.ID() != st.Bus {
			return step, errcode.New(errcode.UnknownBus, op, st.Bus)
		}
		step.Action = schedule.I2CWrite(b.I2C, st.Addr, st.Data)
	default:
		targets := make([]schedule.Pin, 0, len(st.Targets))
		for _, name := range st.Targets {
			out, ok := b.Outputs[name]
			if !ok {
				return step, errcode.New(errcode.UnknownPin, op, "no output "+name)
			}
			targets = append(targets, out)
		}
		switch st.Verb {
		case VerbHigh:
			step.Action = schedule.High(targets...)
		case VerbLow:
			step.Action = schedule.Low(targets...)
		default:
			step.Action = schedule.Toggle(targets...)
		}
	}
	return step, nil
}

func buildSerial(p *hal.Peripherals, pins *pinSource, s *Serial, clocks hal.Clocks) (*hal.Serial, error) {
	u, err := p.UART(s.ID)
	if err != nil {
		return nil, err
	}
	ctrl, _ := p.Board().UARTByID(s.ID)
	tx, err := pins.named(s.TX, ctrl.PinA)
	if err != nil {
		return nil, err
	}
	rx, err := pins.named(s.RX, ctrl.PinB)
	if err != nil {
		return nil, err
	}
	if s.AF != nil {
		return u.ConfigureAF(tx, rx, *s.AF, s.Baud, clocks)
	}
	return u.Configure(tx, rx, s.Baud, clocks)
}

func buildI2C(p *hal.Peripherals, pins *pinSource, c *I2C, clocks hal.Clocks) (*hal.I2CBus, error) {
	ctrl, err := p.I2C(c.ID)
	if err != nil {
		return nil, err
	}
	doc, _ := p.Board().I2CByID(c.ID)
	scl, err := pins.named(c.SCL, doc.PinA)
	if err != nil {
		return nil, err
	}
	sda, err := pins.named(c.SDA, doc.PinB)
	if err != nil {
		return nil, err
	}
	return ctrl.Configure(scl, sda, c.Hz, clocks)
}

// resolvePin accepts a pin id or an LED label of the running board.
func resolvePin(p *hal.Peripherals, s string) (types.PinID, error) {
	if led, ok := p.Board().LED(s); ok {
		return led.Pin, nil
	}
	id, err := types.ParsePin(s)
	if err != nil {
		return types.PinID{}, err
	}
	if !p.Board().ValidPin(id) {
		return types.PinID{}, errcode.New(errcode.UnknownPin, "simprog.build", s+" not on "+p.Board().Name)
	}
	return id, nil
}

// pinSource splits each port on first use.
type pinSource struct {
	p     *hal.Peripherals
	parts map[types.PortID]*hal.Parts
}

func (ps *pinSource) get(id types.PinID) (*hal.Pin, error) {
	parts, ok := ps.parts[id.Port]
	if !ok {
		port, err := ps.p.Port(id.Port)
		if err != nil {
			return nil, err
		}
		if parts, err = port.Split(); err != nil {
			return nil, err
		}
		ps.parts[id.Port] = parts
	}
	return parts.Pin(id.N)
}

// named resolves s, or def when s is empty.
func (ps *pinSource) named(s string, def types.PinID) (*hal.Pin, error) {
	if s == "" {
		return ps.get(def)
	}
	id, err := resolvePin(ps.p, s)
	if err != nil {
		return nil, err
	}
	return ps.get(id)
}
