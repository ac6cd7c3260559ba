package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version is set with -ldflags at build time.
	Version = "dev"
	// Commit is set with -ldflags at build time.
	Commit = "none"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "challengeboard %s (%s)\n", Version, Commit)
			fmt.Fprintf(out, "%s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
