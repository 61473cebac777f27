package simprog

import (
	"math"
	"strconv"
	"strings"
	"time"

	"bringup-go/errcode"
	"bringup-go/x/timex"

	"github.com/google/shlex"
)

// Step verbs.
const (
	VerbHigh   = "high"
	VerbLow    = "low"
	VerbToggle = "toggle"
	VerbWrite  = "write"
	VerbI2C    = "i2c"
)

// StepSpec is one parsed step line.
type StepSpec struct {
	Verb    string
	Targets []string // output names for high/low/toggle
	Bus     string   // serial or i2c id
	Addr    uint16
	Data    []byte
	Wait    time.Duration
}

// WaitMs is Wait in whole milliseconds.
func (s StepSpec) WaitMs() uint32 { return timex.ToMs(s.Wait) }

// ParseStep parses a line such as
//
//	high LD1 LD2 wait=100ms
//	write uart4 'Hello, World!\r\n' wait=2s
//	i2c i2c1 0x19 0x20 0x57 wait=10ms
//
// Words are split with shell quoting. Write payloads accept Go escape
// sequences; single-quote them so the backslashes reach the parser.
func ParseStep(line string) (StepSpec, error) {
	const op = "simprog.step"
	words, err := shlex.Split(line)
	if err != nil {
		return StepSpec{}, errcode.Wrap(errcode.InvalidParams, op, err)
	}
	var st StepSpec
	var args []string
	for _, w := range words {
		v, ok := strings.CutPrefix(w, "wait=")
		if !ok {
			args = append(args, w)
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return StepSpec{}, errcode.Wrap(errcode.InvalidParams, op, err)
		}
		if d < 0 || d%time.Millisecond != 0 || d/time.Millisecond > math.MaxUint32 {
			return StepSpec{}, errcode.New(errcode.InvalidParams, op, "wait must be whole milliseconds: "+v)
		}
		st.Wait = d
	}
	if len(args) == 0 {
		return StepSpec{}, errcode.New(errcode.InvalidParams, op, "empty step")
	}
	st.Verb = strings.ToLower(args[0])
	args = args[1:]

	switch st.Verb {
	case VerbHigh, VerbLow, VerbToggle:
		if len(args) == 0 {
			return StepSpec{}, errcode.New(errcode.InvalidParams, op, st.Verb+" needs outputs")
		}
		st.Targets = args
	case VerbWrite:
		if len(args) != 2 {
			return StepSpec{}, errcode.New(errcode.InvalidParams, op, "usage: write <serial> <data>")
		}
		data, err := unescape(args[1])
		if err != nil {
			return StepSpec{}, errcode.Wrap(errcode.InvalidParams, op, err)
		}
		st.Bus, st.Data = args[0], data
	case VerbI2C:
		if len(args) < 2 {
			return StepSpec{}, errcode.New(errcode.InvalidParams, op, "usage: i2c <bus> <addr> [bytes...]")
		}
		addr, err := strconv.ParseUint(args[1], 0, 7)
		if err != nil {
			return StepSpec{}, errcode.Wrap(errcode.InvalidParams, op, err)
		}
		st.Bus, st.Addr = args[0], uint16(addr)
		for _, a := range args[2:] {
			b, err := strconv.ParseUint(a, 0, 8)
			if err != nil {
				return StepSpec{}, errcode.Wrap(errcode.InvalidParams, op, err)
			}
			st.Data = append(st.Data, byte(b))
		}
	default:
		return StepSpec{}, errcode.New(errcode.InvalidParams, op, "unknown verb "+strconv.Quote(st.Verb))
	}
	return st, nil
}

// unescape interprets Go escapes (\r, \n, \x00) in s. Raw line breaks, as
// left by a TOML or YAML escape, pass through.
func unescape(s string) ([]byte, error) {
	s = strings.NewReplacer(`"`, `\"`, "\n", `\n`).Replace(s)
	u, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return nil, err
	}
	return []byte(u), nil
}
