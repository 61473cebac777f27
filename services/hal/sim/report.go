package sim

import (
	"sort"
	"time"

	"bringup-go/types"
)

// Report is everything observed during one power-on.
type Report struct {
	Board          string
	Duration       time.Duration
	Clock          *types.ClockState
	Timelines      map[types.PinID][]types.PinEvent
	Frames         []types.SerialFrame
	Transfers      []types.I2CTransfer
	Fault          *types.Fault
	PostHaltWrites int
}

// Pins lists the pins that have a timeline, in port/number order.
func (r Report) Pins() []types.PinID {
	out := make([]types.PinID, 0, len(r.Timelines))
	for p := range r.Timelines {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Port != out[j].Port {
			return out[i].Port < out[j].Port
		}
		return out[i].N < out[j].N
	})
	return out
}

func (s *Sim) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Report{
		Board:          s.board.Name,
		Duration:       time.Duration(s.nowLocked()),
		Timelines:      make(map[types.PinID][]types.PinEvent, len(s.timelines)),
		Frames:         append([]types.SerialFrame(nil), s.frames...),
		Transfers:      append([]types.I2CTransfer(nil), s.transfers...),
		PostHaltWrites: s.postHalt,
	}
	if s.clock != nil {
		c := *s.clock
		r.Clock = &c
	}
	if s.fault != nil {
		f := *s.fault
		r.Fault = &f
	}
	for p, tl := range s.timelines {
		r.Timelines[p] = append([]types.PinEvent(nil), tl...)
	}
	return r
}

// Timeline returns the recorded transitions of pin.
func (s *Sim) Timeline(pin types.PinID) []types.PinEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.PinEvent(nil), s.timelines[pin]...)
}

// LevelAt returns the level pin was driven to at virtual time t. ok is false
// before the pin became an output.
func (s *Sim) LevelAt(pin types.PinID, t time.Duration) (level types.Level, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return levelAt(s.timelines[pin], int64(t))
}

func levelAt(tl []types.PinEvent, ts int64) (types.Level, bool) {
	i := sort.Search(len(tl), func(i int) bool { return tl[i].TSns > ts })
	if i == 0 {
		return types.Low, false
	}
	return tl[i-1].Level, true
}

// Frames returns the frames written on UART id.
func (s *Sim) Frames(id string) []types.SerialFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.SerialFrame
	for _, f := range s.frames {
		if f.Bus == id {
			out = append(out, f)
		}
	}
	return out
}

func (s *Sim) Transfers() []types.I2CTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.I2CTransfer(nil), s.transfers...)
}

// Fault returns the halt record, or nil while running.
func (s *Sim) Fault() *types.Fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fault == nil {
		return nil
	}
	f := *s.fault
	return &f
}

// Clock returns the applied clock tree, or nil before Freeze.
func (s *Sim) Clock() *types.ClockState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clock == nil {
		return nil
	}
	c := *s.clock
	return &c
}
