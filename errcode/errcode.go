package errcode

// Code is a stable, machine-readable error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Unsupported   Code = "unsupported"
	InvalidParams Code = "invalid_params"
	InvalidMode   Code = "invalid_mode"
	Timeout       Code = "timeout"

	// Ownership
	AlreadyTaken Code = "already_taken"
	UnknownPin   Code = "unknown_pin"
	PinInUse     Code = "pin_in_use"
	UnknownBus   Code = "unknown_bus"
	BusInUse     Code = "bus_in_use"

	// Clocks
	InvalidFrequency Code = "invalid_frequency"

	// Transfers
	TransmitError Code = "transmit_error"
	Overrun       Code = "overrun"
	NotReady      Code = "not_ready"
	NACK          Code = "nack"

	Error Code = "error" // generic fallback
)

// E keeps a code together with where it happened and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += " (" + e.Err.Error() + ")"
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.X) match a wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap builds an *E for op with the given code and cause.
func Wrap(c Code, op string, cause error) *E {
	return &E{C: c, Op: op, Err: cause}
}

// New builds an *E for op with the given code and message.
func New(c Code, op, msg string) *E {
	return &E{C: c, Op: op, Msg: msg}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// IsFatal reports whether err ends the program. Every code except OK is
// terminal for bring-up programs.
func IsFatal(err error) bool { return Of(err) != OK }
