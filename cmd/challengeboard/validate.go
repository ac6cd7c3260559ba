package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"digital.vasic.challengeboard/pkg/interval"
	"digital.vasic.challengeboard/pkg/logging"
	"digital.vasic.challengeboard/pkg/registry"
)

var errInvalidCatalog = errors.New("catalog has configuration errors")

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Load the catalog and report configuration errors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.CatalogDir
			if len(args) == 1 {
				dir = args[0]
			}
			return validateCatalog(cmd, dir)
		},
	}
}

func validateCatalog(cmd *cobra.Command, dir string) error {
	out := cmd.OutOrStdout()
	cat, err := registry.NewLoader(
		registry.WithLoaderLogger(logging.NullLogger{}),
	).LoadDir(dir)
	if err != nil {
		return err
	}

	for _, l := range cat.List() {
		every := l.RotationInterval
		if interval.IsDisabled(every) {
			every = "disabled"
		}
		fmt.Fprintf(out, "%-20s %3d challenges, %d visible, %d per participant, rotates %s\n",
			l.ID, l.Len(), l.EffectiveVisible(), l.MaxActivePerParticipant, every)
	}

	problems := cat.AllProblems()
	for _, p := range problems {
		fmt.Fprintf(out, "error: %v\n", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %d", errInvalidCatalog, len(problems))
	}
	fmt.Fprintf(out, "%d lists OK\n", cat.Count())
	return nil
}
