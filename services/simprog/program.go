// Package simprog loads bring-up programs described in TOML or YAML and
// builds them on the hal API, so the simulator can run a board setup
// without a compiled main package.
//
//	board = "nucleo-f767zi"
//	sysclk_hz = 48000000
//	steps = ["high LD1 wait=100ms", "low LD1 wait=400ms"]
//
//	[[output]]
//	name = "LD1"
//	pin = "PB0"
package simprog

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bringup-go/errcode"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Program is the file form of a bring-up program.
type Program struct {
	Board    string   `toml:"board" yaml:"board"`
	SysclkHz uint32   `toml:"sysclk_hz" yaml:"sysclk_hz"` // 0: reset clocks
	Outputs  []Output `toml:"output" yaml:"output"`
	Serial   *Serial  `toml:"serial" yaml:"serial"`
	I2C      *I2C     `toml:"i2c" yaml:"i2c"`
	Steps    []string `toml:"steps" yaml:"steps"`
}

// Output names a pin driven by the steps. Pin is a pin id ("PB0", "GP25")
// or a board LED label ("LD1").
type Output struct {
	Name      string `toml:"name" yaml:"name"`
	Pin       string `toml:"pin" yaml:"pin"`
	Initial   string `toml:"initial" yaml:"initial"` // "low" (default) or "high"
	OpenDrain bool   `toml:"open_drain" yaml:"open_drain"`
}

// Serial configures one UART. Empty pins mean the board's documented
// routing; AF is only needed for other routings.
type Serial struct {
	ID   string `toml:"id" yaml:"id"`
	TX   string `toml:"tx" yaml:"tx"`
	RX   string `toml:"rx" yaml:"rx"`
	AF   *uint8 `toml:"af" yaml:"af"`
	Baud uint32 `toml:"baud" yaml:"baud"`
}

// I2C configures one I²C controller on its documented pins.
type I2C struct {
	ID  string `toml:"id" yaml:"id"`
	SCL string `toml:"scl" yaml:"scl"`
	SDA string `toml:"sda" yaml:"sda"`
	Hz  uint32 `toml:"hz" yaml:"hz"`
}

// Format is a program file encoding.
type Format string

const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

// FormatOf picks the encoding from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", errcode.New(errcode.InvalidParams, "simprog.load", "unknown program format: "+path)
	}
}

// Load reads and validates the program at path.
func Load(path string) (*Program, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, "simprog.load", err)
	}
	return Parse(b, f)
}

// Parse decodes and validates a program. Unknown keys are rejected.
func Parse(b []byte, f Format) (*Program, error) {
	const op = "simprog.parse"
	var p Program
	switch f {
	case TOML:
		if err := toml.NewDecoder(bytes.NewReader(b)).DisallowUnknownFields().Decode(&p); err != nil {
			return nil, errcode.Wrap(errcode.InvalidParams, op, err)
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errcode.New(errcode.InvalidParams, op, "empty program")
			}
			return nil, errcode.Wrap(errcode.InvalidParams, op, err)
		}
	default:
		return nil, errcode.New(errcode.InvalidParams, op, "unknown format "+string(f))
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks what can be checked without a board: names are unique,
// and every step parses and refers to something declared.
func (p *Program) Validate() error {
	const op = "simprog.validate"
	if len(p.Steps) == 0 {
		return errcode.New(errcode.InvalidParams, op, "no steps")
	}
	names := make(map[string]bool, len(p.Outputs))
	for _, o := range p.Outputs {
		if o.Name == "" || o.Pin == "" {
			return errcode.New(errcode.InvalidParams, op, "output needs name and pin")
		}
		if names[o.Name] {
			return errcode.New(errcode.InvalidParams, op, "duplicate output "+o.Name)
		}
		switch strings.ToLower(o.Initial) {
		case "", "low", "high":
		default:
			return errcode.New(errcode.InvalidParams, op, o.Name+": initial must be low or high")
		}
		names[o.Name] = true
	}
	if p.Serial != nil && (p.Serial.ID == "" || p.Serial.Baud == 0) {
		return errcode.New(errcode.InvalidParams, op, "serial needs id and baud")
	}
	if p.I2C != nil && (p.I2C.ID == "" || p.I2C.Hz == 0) {
		return errcode.New(errcode.InvalidParams, op, "i2c needs id and hz")
	}
	for i, line := range p.Steps {
		st, err := ParseStep(line)
		if err != nil {
			return err
		}
		if err := p.checkRefs(op, "step "+strconv.Itoa(i)+": ", st); err != nil {
			return err
		}
	}
	return nil
}

func (p *Program) checkRefs(op, at string, st StepSpec) error {
	switch st.Verb {
	case VerbWrite:
		if p.Serial == nil || p.Serial.ID != st.Bus {
			return errcode.New(errcode.UnknownBus, op, at+st.Bus+" not configured")
		}
	case VerbI2C:
		if p.I2C == nil || p.I2C.ID != st.Bus {
			return errcode.New(errcode.UnknownBus, op, at+st.Bus+" not configured")
		}
	default:
		for _, name := range st.Targets {
			if !p.hasOutput(name) {
				return errcode.New(errcode.UnknownPin, op, at+"no output "+name)
			}
		}
	}
	return nil
}

func (p *Program) hasOutput(name string) bool {
	for _, o := range p.Outputs {
		if o.Name == name {
			return true
		}
	}
	return false
}
