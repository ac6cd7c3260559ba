package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"digital.vasic.challengeboard/pkg/interval"
)

func newIntervalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interval <expr>",
		Short: "Parse a rotation interval expression",
		Long: `Prints the period of a rotation interval such as "daily", "weekly",
"monthly" or "1d12h30m", both in normal and in testing mode.`,
		Args: cobra.ExactArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if interval.IsDisabled(args[0]) {
				fmt.Fprintln(out, interval.Format(interval.Never))
				return nil
			}
			d, err := interval.Parse(args[0])
			if err != nil {
				return err
			}
			td, err := interval.ParseTesting(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "period:  %s (%s)\n", interval.Format(d), d)
			fmt.Fprintf(out, "testing: %s\n", td)
			return nil
		},
	}
}
