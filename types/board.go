package types

import (
	"strconv"
	"strings"

	"bringup-go/errcode"
)

// ------------------------
// Frequencies
// ------------------------

// Hertz is a clock or bus frequency.
type Hertz uint32

const (
	Hz  Hertz = 1
	KHz Hertz = 1_000
	MHz Hertz = 1_000_000
)

func (f Hertz) String() string {
	switch {
	case f >= MHz && f%MHz == 0:
		return strconv.FormatUint(uint64(f/MHz), 10) + "MHz"
	case f >= KHz && f%KHz == 0:
		return strconv.FormatUint(uint64(f/KHz), 10) + "kHz"
	default:
		return strconv.FormatUint(uint64(f), 10) + "Hz"
	}
}

// ------------------------
// Pins
// ------------------------

// PortID names a GPIO bank: 'A'..'K' on STM32, PortGP for the flat RP2040 bank.
type PortID byte

const PortGP PortID = '#'

func (p PortID) String() string {
	if p == PortGP {
		return "GP"
	}
	return "GPIO" + string(rune(p))
}

// PinID identifies one physical pin.
type PinID struct {
	Port PortID `json:"port" toml:"port" yaml:"port"`
	N    uint8  `json:"n" toml:"n" yaml:"n"`
}

func (p PinID) String() string {
	if p.Port == PortGP {
		return "GP" + strconv.Itoa(int(p.N))
	}
	return "P" + string(rune(p.Port)) + strconv.Itoa(int(p.N))
}

// ParsePin accepts "PB7", "pe15", "GP25".
func ParsePin(s string) (PinID, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	var port PortID
	var num string
	switch {
	case strings.HasPrefix(u, "GP"):
		port, num = PortGP, u[2:]
	case len(u) >= 3 && u[0] == 'P' && u[1] >= 'A' && u[1] <= 'K':
		port, num = PortID(u[1]), u[2:]
	default:
		return PinID{}, errcode.New(errcode.UnknownPin, "types.parse_pin", s)
	}
	n, err := strconv.ParseUint(num, 10, 8)
	if err != nil {
		return PinID{}, errcode.Wrap(errcode.UnknownPin, "types.parse_pin", err)
	}
	return PinID{Port: port, N: uint8(n)}, nil
}

// PinMode is the electrical/function mode a pin is locked into.
type PinMode uint8

const (
	ModeUnconfigured PinMode = iota
	ModeInput
	ModePushPull
	ModeOpenDrain
	ModeAlternate          // push-pull, routed to a peripheral
	ModeAlternateOpenDrain // I²C
)

func (m PinMode) String() string {
	switch m {
	case ModeInput:
		return "input"
	case ModePushPull:
		return "push_pull"
	case ModeOpenDrain:
		return "open_drain"
	case ModeAlternate:
		return "alternate"
	case ModeAlternateOpenDrain:
		return "alternate_open_drain"
	default:
		return "unconfigured"
	}
}

// Level is a logic level on an output.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// ------------------------
// Clocks
// ------------------------

// ClockSource selects what drives SYSCLK.
type ClockSource uint8

const (
	SourceHSI ClockSource = iota
	SourceHSE
	SourcePLL
)

func (s ClockSource) String() string {
	switch s {
	case SourceHSE:
		return "hse"
	case SourcePLL:
		return "pll"
	default:
		return "hsi"
	}
}

// APB selects the peripheral bus a controller hangs off.
type APB uint8

const (
	APB1 APB = 1
	APB2 APB = 2
)
