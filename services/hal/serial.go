package hal

import (
	"strconv"
	"sync/atomic"

	"bringup-go/errcode"
	"bringup-go/services/hal/boards"
	"bringup-go/services/hal/internal/core"
	"bringup-go/types"
	"bringup-go/x/mathx"
)

// Baud divisor limits with 16x oversampling.
const (
	minBRR = 16
	maxBRR = 0xFFFF
	// worst acceptable baud error, per mille
	maxBaudErrPermille = 30
)

// UART is a serial controller. It is consumed by the first Configure.
type UART struct {
	ctrl boards.Controller
	hw   core.UARTPeripheral
	used atomic.Bool
}

func (u *UART) ID() string { return u.ctrl.ID }

// Configure routes tx and rx to the controller on its documented pins and
// alternate function, and sets the baud rate from the controller's APB clock.
func (u *UART) Configure(tx, rx *Pin, baud uint32, clocks Clocks) (*Serial, error) {
	if tx.ID() != u.ctrl.PinA || rx.ID() != u.ctrl.PinB {
		return nil, errcode.New(errcode.InvalidParams, "uart.configure",
			u.ctrl.ID+" is wired to "+u.ctrl.PinA.String()+"/"+u.ctrl.PinB.String())
	}
	return u.ConfigureAF(tx, rx, u.ctrl.AF, baud, clocks)
}

// ConfigureAF is Configure for alternative pin routings; the caller names
// the alternate function.
func (u *UART) ConfigureAF(tx, rx *Pin, af uint8, baud uint32, clocks Clocks) (*Serial, error) {
	const op = "uart.configure"
	if !clocks.frozen() {
		return nil, errcode.New(errcode.InvalidParams, op, "clocks not frozen")
	}
	pclk := clocks.PCLK(u.ctrl.APB)
	brr, err := baudDivisor(pclk, baud)
	if err != nil {
		return nil, err
	}
	if !u.used.CompareAndSwap(false, true) {
		return nil, errcode.New(errcode.BusInUse, op, u.ctrl.ID+" already configured")
	}
	if _, err := tx.IntoAlternate(af); err != nil {
		return nil, err
	}
	if _, err := rx.IntoAlternate(af); err != nil {
		return nil, err
	}
	cfg := core.UARTConfig{TX: tx.ID(), RX: rx.ID(), AF: af, Baud: baud, PCLK: pclk, BRR: brr}
	if err := u.hw.Configure(cfg); err != nil {
		return nil, err
	}
	return &Serial{id: u.ctrl.ID, hw: u.hw, baud: baud, brr: brr}, nil
}

// baudDivisor returns round(pclk/baud) after checking it fits the register
// and lands within 3% of the requested rate.
func baudDivisor(pclk types.Hertz, baud uint32) (uint32, error) {
	const op = "uart.configure"
	if baud == 0 {
		return 0, errcode.New(errcode.InvalidParams, op, "zero baud")
	}
	brr := mathx.RoundDiv(uint32(pclk), baud)
	if brr < minBRR || brr > maxBRR {
		return 0, errcode.New(errcode.InvalidParams, op,
			strconv.FormatUint(uint64(baud), 10)+" baud needs divisor "+strconv.FormatUint(uint64(brr), 10)+" from "+pclk.String())
	}
	actual := uint32(pclk) / brr
	if uint64(mathx.AbsDiff(actual, baud))*1000 > uint64(baud)*maxBaudErrPermille {
		return 0, errcode.New(errcode.InvalidParams, op,
			"baud error above 3% at "+pclk.String())
	}
	return brr, nil
}

// Serial is a configured transmitter.
type Serial struct {
	id   string
	hw   core.UARTPeripheral
	baud uint32
	brr  uint32
}

func (s *Serial) ID() string      { return s.id }
func (s *Serial) Baud() uint32    { return s.baud }
func (s *Serial) Divisor() uint32 { return s.brr }

// Write sends all of p or fails with errcode.TransmitError.
func (s *Serial) Write(p []byte) error {
	n, err := s.hw.Write(p)
	if err != nil {
		return errcode.Wrap(errcode.TransmitError, "serial.write", err)
	}
	if n != len(p) {
		return errcode.New(errcode.TransmitError, "serial.write",
			"short write "+strconv.Itoa(n)+"/"+strconv.Itoa(len(p)))
	}
	return nil
}
