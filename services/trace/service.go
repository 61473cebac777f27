// Package trace logs the simulator's observations as they are published on
// the bus.
package trace

import (
	"context"
	"time"

	"bringup-go/bus"
	"bringup-go/types"

	"github.com/rs/zerolog"
)

var topicSim = bus.T("sim", "#")

type Service struct {
	Log zerolog.Logger

	done chan struct{}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, sub *bus.Subscription) {
	defer close(s.done)
	defer conn.Unsubscribe(sub)

	// loop until context is cancelled, logging each observation
	for {
		select {
		case <-ctx.Done():
			// drain what was published before the stop
			for {
				select {
				case msg := <-sub.Channel():
					s.log(msg)
				default:
					return
				}
			}
		case msg := <-sub.Channel():
			s.log(msg)
		}
	}
}

func (s *Service) log(msg *bus.Message) {
	topic := msg.Topic.String()
	switch p := msg.Payload.(type) {
	case types.PinEvent:
		s.Log.Info().Str("topic", topic).Str("name", p.Name).Str("level", p.Level.String()).
			Dur("t", time.Duration(p.TSns)).Msg("pin")
	case types.SerialFrame:
		s.Log.Info().Str("topic", topic).Int("len", len(p.Data)).Str("data", string(p.Data)).
			Dur("t", time.Duration(p.TSns)).Msg("uart")
	case types.I2CTransfer:
		s.Log.Info().Str("topic", topic).Uint16("addr", p.Addr).Hex("w", p.W).Int("r", p.RLen).
			Dur("t", time.Duration(p.TSns)).Msg("i2c")
	case types.ClockState:
		s.Log.Info().Str("topic", topic).Str("source", p.Source.String()).Str("sysclk", p.SYSCLK.String()).
			Str("pclk1", p.PCLK1.String()).Str("pclk2", p.PCLK2.String()).Uint8("latency", p.FlashLatency).Msg("clock")
	case types.Fault:
		s.Log.Error().Str("topic", topic).Str("code", p.Code).Str("msg", p.Msg).
			Dur("t", time.Duration(p.TSns)).Msg("halt")
	default:
		s.Log.Debug().Str("topic", topic).Interface("payload", p).Msg("message")
	}
}

// Start the trace service. It is subscribed when Start returns; Done is
// closed once it has stopped.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.done = make(chan struct{})
	sub := conn.Subscribe(topicSim)
	go s.serviceLoop(ctx, conn, sub)
	return nil
}

func (s *Service) Done() <-chan struct{} { return s.done }
