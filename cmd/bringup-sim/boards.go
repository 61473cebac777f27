package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"bringup-go/services/hal/boards"

	"github.com/spf13/cobra"
)

func newBoardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List the board descriptors and their clock limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BOARD\tFAMILY\tSYSCLK MAX\tRESET\tAPB1 MAX\tAPB2 MAX\tLEDS\tUARTS\tI2C")
			for _, b := range boards.All() {
				reset := b.Clock.HSI
				if b.Clock.Fixed != 0 {
					reset = b.Clock.Fixed
				}
				fmt.Fprintf(w, "%s\t%v\t%v\t%v\t%v\t%v\t%s\t%s\t%s\n",
					b.Name, b.Family, b.Clock.SysclkMax, reset, b.Clock.APB1Max, b.Clock.APB2Max,
					ledList(b), ctrlList(b.UART), ctrlList(b.I2C))
			}
			return w.Flush()
		},
	}
}

func ledList(b *boards.Board) string {
	s := make([]string, len(b.LEDs))
	for i, l := range b.LEDs {
		s[i] = l.Label + "=" + l.Pin.String()
	}
	return strings.Join(s, ",")
}

func ctrlList(cs []boards.Controller) string {
	s := make([]string, len(cs))
	for i, c := range cs {
		s[i] = fmt.Sprintf("%s(%v/%v)", c.ID, c.PinA, c.PinB)
	}
	return strings.Join(s, ",")
}
