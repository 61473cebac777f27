//go:build !tinygo

package platform

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"bringup-go/services/hal/internal/core"
	"bringup-go/services/hal/sim"

	"github.com/rs/zerolog"
)

// Open returns the installed simulator, or starts a real-time one for the
// selected board that ends the process when interrupted.
func Open() core.Backend {
	if s := sim.Installed(); s != nil {
		return s
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "sim").Logger()
	s := sim.New(
		sim.WithLogger(log),
		sim.WithTimeScale(1),
		sim.WithExitOnPowerOff(),
	)
	sim.Install(s)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		s.PowerOff()
	}()
	return s
}
