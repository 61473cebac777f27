package simprog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bringup-go/errcode"
	"bringup-go/services/hal"
	"bringup-go/services/hal/boards"
	"bringup-go/services/hal/sim"
	"bringup-go/services/schedule"
	"bringup-go/types"
)

const nucleoTOML = `
board = "nucleo-f767zi"
sysclk_hz = 48000000
steps = [
  "high LD1 LD2 LD3 wait=100ms",
  "low LD1 LD2 LD3 wait=400ms",
]

[[output]]
name = "LD1"
pin = "PB0"

[[output]]
name = "LD2"
pin = "LD2"

[[output]]
name = "LD3"
pin = "pb14"
initial = "high"
`

const f3YAML = `
board: stm32f3discovery
sysclk_hz: 48000000
serial:
  id: uart4
  baud: 115200
output:
  - name: north
    pin: LD3
steps:
  - toggle north
  - "write uart4 'Hello, World!\r\n' wait=2s"
`

func TestParseTOML(t *testing.T) {
	p, err := Parse([]byte(nucleoTOML), TOML)
	if err != nil {
		t.Fatal(err)
	}
	if p.Board != "nucleo-f767zi" || p.SysclkHz != 48_000_000 {
		t.Fatalf("header = %q %d", p.Board, p.SysclkHz)
	}
	if len(p.Outputs) != 3 || p.Outputs[2].Initial != "high" || len(p.Steps) != 2 {
		t.Fatalf("program = %+v", p)
	}
}

func TestParseYAML(t *testing.T) {
	p, err := Parse([]byte(f3YAML), YAML)
	if err != nil {
		t.Fatal(err)
	}
	if p.Serial == nil || p.Serial.ID != "uart4" || p.Serial.Baud != 115200 {
		t.Fatalf("serial = %+v", p.Serial)
	}
	st, err := ParseStep(p.Steps[1])
	if err != nil {
		t.Fatal(err)
	}
	if string(st.Data) != "Hello, World!\r\n" || st.Wait != 2*time.Second {
		t.Fatalf("step = %+v", st)
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name string
		src  string
		f    Format
		code errcode.Code
	}{
		{"unknown key", "steps = ['toggle A']\nfrequency = 3\n", TOML, errcode.InvalidParams},
		{"unknown yaml key", "steps: [toggle A]\nledz: []\n", YAML, errcode.InvalidParams},
		{"empty yaml", "", YAML, errcode.InvalidParams},
		{"no steps", "board = 'pico'\n", TOML, errcode.InvalidParams},
		{"undeclared output", "steps = ['toggle A wait=1ms']\n", TOML, errcode.UnknownPin},
		{"undeclared serial", "steps = ['write uart4 hi wait=1ms']\n", TOML, errcode.UnknownBus},
		{"duplicate output", "steps = ['toggle A']\n[[output]]\nname='A'\npin='PB0'\n[[output]]\nname='A'\npin='PB1'\n", TOML, errcode.InvalidParams},
		{"bad initial", "steps = ['toggle A']\n[[output]]\nname='A'\npin='PB0'\ninitial='on'\n", TOML, errcode.InvalidParams},
		{"serial without baud", "steps = ['toggle A']\n[serial]\nid='uart4'\n", TOML, errcode.InvalidParams},
	}
	for _, c := range cases {
		if _, err := Parse([]byte(c.src), c.f); errcode.Of(err) != c.code {
			t.Fatalf("%s: want %s, got %v", c.name, c.code, err)
		}
	}
}

func TestParseStep(t *testing.T) {
	st, err := ParseStep("high LD1 LD2 wait=100ms")
	if err != nil || st.Verb != VerbHigh || len(st.Targets) != 2 || st.WaitMs() != 100 {
		t.Fatalf("high: %+v %v", st, err)
	}
	st, err = ParseStep(`write uart4 'Hello, World!\r\n' wait=2s`)
	if err != nil || st.Bus != "uart4" || string(st.Data) != "Hello, World!\r\n" || st.WaitMs() != 2000 {
		t.Fatalf("write: %+v %v", st, err)
	}
	st, err = ParseStep("i2c i2c1 0x19 0x20 0x57")
	if err != nil || st.Addr != 0x19 || len(st.Data) != 2 || st.Data[1] != 0x57 || st.Wait != 0 {
		t.Fatalf("i2c: %+v %v", st, err)
	}

	bad := []string{
		"",
		"wait=10ms",
		"blink LD1",
		"high",
		"write uart4",
		"write uart4 'unterminated",
		"i2c i2c1 0x80",
		"i2c i2c1 0x19 0x100",
		"toggle LD1 wait=1.5ms",
		"toggle LD1 wait=-1ms",
		"toggle LD1 wait=soon",
		`write uart4 '\q'`,
	}
	for _, line := range bad {
		if _, err := ParseStep(line); errcode.Of(err) != errcode.InvalidParams {
			t.Fatalf("%q: want invalid_params, got %v", line, err)
		}
	}
}

func TestLoadPicksFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blinky.toml")
	if err := os.WriteFile(path, []byte(nucleoTOML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(dir, "blinky.json")); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("json: %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("missing: %v", err)
	}
}

// Build needs the process-wide peripheral set, so a single test covers it.
func TestBuildAndRunOnSimulator(t *testing.T) {
	prog, err := Parse([]byte(f3YAML), YAML)
	if err != nil {
		t.Fatal(err)
	}
	prev := sim.Installed()
	defer sim.Install(prev)
	s := sim.New(sim.WithBoard(boards.STM32F3Discovery), sim.WithPowerOffAfter(6500*time.Millisecond))
	sim.Install(s)

	p, err := hal.Take()
	if err != nil {
		t.Fatal(err)
	}
	b, err := prog.Build(p)
	if err != nil {
		t.Fatal(err)
	}
	if b.Clocks.SYSCLK() != 48*types.MHz || b.Serial.Divisor() != 208 {
		t.Fatalf("sysclk=%v brr=%d", b.Clocks.SYSCLK(), b.Serial.Divisor())
	}

	rep := s.Run(func() { schedule.RunForever(b.Steps, b.Delay, hal.Halt) })
	if rep.Fault != nil {
		t.Fatalf("fault: %+v", rep.Fault)
	}
	frames := s.Frames("uart4")
	if len(frames) != 4 {
		t.Fatalf("frames = %d", len(frames))
	}
	for i, f := range frames {
		if string(f.Data) != "Hello, World!\r\n" {
			t.Fatalf("frame %d = %q", i, f.Data)
		}
		if i > 0 {
			gap := time.Duration(f.TSns - frames[i-1].TSns)
			if gap < 2*time.Second || gap > 2*time.Second+2*time.Millisecond {
				t.Fatalf("gap %d = %v", i, gap)
			}
		}
	}
	ld3, _ := types.ParsePin("PE9")
	if tl := s.Timeline(ld3); len(tl) != 5 {
		t.Fatalf("LD3 events = %d", len(tl))
	}
}
