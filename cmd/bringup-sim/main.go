// bringup-sim runs bring-up programs against the host simulator.
//
//	bringup-sim run examples/nucleo-blinky.toml --time-scale 1
//	bringup-sim run examples/f3disco-uart.yaml --watch
//	bringup-sim report examples/nucleo-blinky.toml --duration 10s
//	bringup-sim boards
package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger(), nil
}

func main() {
	var logLevel string

	root := &cobra.Command{
		Use:           "bringup-sim",
		Short:         "Run board bring-up programs on a simulated microcontroller",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	logger := func() zerolog.Logger {
		log, err := newLogger(logLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bringup-sim: %v\n", err)
			os.Exit(2)
		}
		return log
	}

	root.AddCommand(
		newRunCmd(logger),
		newReportCmd(logger),
		newBoardsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bringup-sim: %v\n", err)
		os.Exit(1)
	}
}
