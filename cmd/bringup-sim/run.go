package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bringup-go/bus"
	"bringup-go/services/hal"
	"bringup-go/services/hal/boards"
	"bringup-go/services/hal/sim"
	"bringup-go/services/schedule"
	"bringup-go/services/simprog"
	"bringup-go/services/trace"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// traceQueue is deep enough for a fast-forwarded run between log flushes.
const traceQueue = 4096

type runOptions struct {
	timeScale  float64
	duration   time.Duration
	watch      bool
	txFIFO     int
	i2cTargets []string
	failUART   []string
}

func (o *runOptions) bind(f *pflag.FlagSet, scale float64, duration time.Duration) {
	f.Float64Var(&o.timeScale, "time-scale", scale, "wall seconds per virtual second (0 runs as fast as possible)")
	f.DurationVar(&o.duration, "duration", duration, "cut power after this much virtual time (0 runs until interrupted)")
	f.IntVar(&o.txFIFO, "tx-fifo", 256, "UART transmit FIFO size in bytes (power of two)")
	f.StringSliceVar(&o.i2cTargets, "i2c-target", nil, "attach a register target, e.g. i2c1=0x19")
	f.StringSliceVar(&o.failUART, "fail-uart", nil, "reject writes after n frames, e.g. uart4=3")
}

func newRunCmd(logger func() zerolog.Logger) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Run a TOML or YAML program in the simulator, tracing every observation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			if opts.watch {
				return supervise(cmd.Context(), log, args[0], childArgs(os.Args[1:]))
			}
			rep, err := runProgram(log, args[0], opts, true)
			if err != nil {
				return err
			}
			logSummary(log, rep)
			if rep.Fault != nil {
				os.Exit(1)
			}
			return nil
		},
	}
	opts.bind(cmd.Flags(), 1, 0)
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "restart the run (power cycle) whenever the program file changes")
	return cmd
}

// runProgram loads path, builds it on a fresh simulator and runs it until it
// halts or power is cut.
func runProgram(log zerolog.Logger, path string, opts runOptions, traced bool) (sim.Report, error) {
	prog, err := simprog.Load(path)
	if err != nil {
		return sim.Report{}, err
	}
	board := boards.Selected
	if prog.Board != "" {
		b, ok := boards.ByName(prog.Board)
		if !ok {
			return sim.Report{}, fmt.Errorf("unknown board %q", prog.Board)
		}
		board = b
	}

	simOpts := []sim.Option{
		sim.WithBoard(board),
		sim.WithLogger(log.With().Str("component", "sim").Logger()),
		sim.WithTimeScale(opts.timeScale),
		sim.WithTXFIFO(opts.txFIFO),
	}
	if opts.duration > 0 {
		simOpts = append(simOpts, sim.WithPowerOffAfter(opts.duration))
	}
	for _, kv := range opts.i2cTargets {
		id, v, err := splitKV(kv)
		if err != nil {
			return sim.Report{}, err
		}
		addr, err := strconv.ParseUint(v, 0, 7)
		if err != nil {
			return sim.Report{}, fmt.Errorf("i2c target %q: %w", kv, err)
		}
		simOpts = append(simOpts, sim.WithI2CDevice(id, uint16(addr), nil))
	}
	for _, kv := range opts.failUART {
		id, v, err := splitKV(kv)
		if err != nil {
			return sim.Report{}, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return sim.Report{}, fmt.Errorf("fail-uart %q: %w", kv, err)
		}
		simOpts = append(simOpts, sim.FailUARTAfter(id, n))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var tracer *trace.Service
	if traced {
		b := bus.NewBus(traceQueue)
		tracer = &trace.Service{Log: log.With().Str("component", "trace").Logger()}
		if err := tracer.Start(ctx, b.NewConnection("trace")); err != nil {
			return sim.Report{}, err
		}
		simOpts = append(simOpts, sim.WithBus(b))
	}

	s := sim.New(simOpts...)
	sim.Install(s)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		select {
		case <-sig:
			log.Info().Msg("received signal, cutting power")
			s.PowerOff()
		case <-s.Done():
		}
	}()

	log.Info().Str("program", path).Str("board", board.Name).Float64("time_scale", opts.timeScale).
		Dur("duration", opts.duration).Msg("power on")
	rep := s.Run(func() {
		p, err := hal.Take()
		if err != nil {
			hal.Halt(err)
		}
		built, err := prog.Build(p)
		if err != nil {
			hal.Halt(err)
		}
		schedule.RunForever(built.Steps, built.Delay, hal.Halt)
	})

	if tracer != nil {
		cancel()
		<-tracer.Done()
	}
	return rep, nil
}

func logSummary(log zerolog.Logger, rep sim.Report) {
	ev := log.Info()
	if rep.Fault != nil {
		ev = log.Error().Str("fault", rep.Fault.Code).Str("msg", rep.Fault.Msg)
	}
	events := 0
	for _, tl := range rep.Timelines {
		events += len(tl)
	}
	ev.Str("board", rep.Board).Dur("uptime", rep.Duration).Int("pin_events", events).
		Int("frames", len(rep.Frames)).Int("i2c", len(rep.Transfers)).
		Int("post_halt_writes", rep.PostHaltWrites).Msg("power off")
}

func splitKV(s string) (string, string, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" || v == "" {
		return "", "", fmt.Errorf("expected id=value, got %q", s)
	}
	return k, v, nil
}
