package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"bringup-go/services/hal/sim"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newReportCmd(logger func() zerolog.Logger) *cobra.Command {
	var opts runOptions
	var traced bool
	cmd := &cobra.Command{
		Use:   "report <program>",
		Short: "Run a program for a fixed virtual time and print waveform statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.duration <= 0 {
				return fmt.Errorf("--duration must be positive")
			}
			rep, err := runProgram(logger(), args[0], opts, traced)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	opts.bind(cmd.Flags(), 0, 10*time.Second)
	cmd.Flags().BoolVar(&traced, "trace", false, "also log every observation")
	return cmd
}

func printReport(out io.Writer, rep sim.Report) {
	fmt.Fprintf(out, "board %s, %v virtual", rep.Board, rep.Duration)
	if c := rep.Clock; c != nil {
		fmt.Fprintf(out, ", sysclk %v (%v), pclk1 %v, pclk2 %v", c.SYSCLK, c.Source, c.PCLK1, c.PCLK2)
	}
	fmt.Fprintln(out)
	if f := rep.Fault; f != nil {
		fmt.Fprintf(out, "halted at %v: %s %s\n", time.Duration(f.TSns), f.Code, f.Msg)
	}

	if pins := rep.PinStats(); len(pins) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PIN\tNAME\tEDGES\tCYCLES\tPERIOD\tJITTER\tDUTY")
		for _, p := range pins {
			fmt.Fprintf(w, "%v\t%s\t%d\t%d\t%v\t%v\t%.1f%%\n",
				p.Pin, p.Name, p.Edges, p.Cycles, p.Period, p.PeriodStdDev, p.Duty*100)
		}
		w.Flush()
	}

	if uarts := rep.UARTStats(); len(uarts) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "UART\tFRAMES\tBYTES\tINTERVAL\tJITTER")
		for _, u := range uarts {
			fmt.Fprintf(w, "%s\t%d\t%d\t%v\t%v\n", u.Bus, u.Frames, u.Bytes, u.Interval, u.IntervalStdDev)
		}
		w.Flush()
	}

	if n := len(rep.Transfers); n > 0 {
		fmt.Fprintf(out, "\ni2c transfers: %d\n", n)
	}
}
