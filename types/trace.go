package types

// ------------------------
// Observations published by the host simulator
// ------------------------

// PinEvent is one observed output transition.
type PinEvent struct {
	Pin   PinID  `json:"pin"`
	Name  string `json:"name,omitempty"` // board label (e.g. "LD1") if known
	Level Level  `json:"level"`
	TSns  int64  `json:"ts_ns"` // virtual time since power-on
}

// SerialFrame is one complete Write accepted by a UART.
type SerialFrame struct {
	Bus  string `json:"bus"`
	Data []byte `json:"data"`
	TSns int64  `json:"ts_ns"` // virtual time the last stop bit left the wire
}

// I2CTransfer is one Tx on an I²C controller.
type I2CTransfer struct {
	Bus  string `json:"bus"`
	Addr uint16 `json:"addr"`
	W    []byte `json:"w,omitempty"`
	RLen int    `json:"r_len,omitempty"`
	TSns int64  `json:"ts_ns"`
}

// ClockState is the clock tree the backend was frozen with.
type ClockState struct {
	Source       ClockSource `json:"source"`
	SYSCLK       Hertz       `json:"sysclk"`
	HCLK         Hertz       `json:"hclk"`
	PCLK1        Hertz       `json:"pclk1"`
	PCLK2        Hertz       `json:"pclk2"`
	FlashLatency uint8       `json:"flash_latency"`
}

// Fault is the terminal halt record.
type Fault struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	TSns int64  `json:"ts_ns"`
}
