package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"digital.vasic.challengeboard/pkg/report"
)

func newReportCmd(a *app) *cobra.Command {
	var format, outPath string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the saved board as JSON or HTML",
		Long: `Loads the catalog and the saved rotations and profiles, then
renders the visible challenges of every list and each participant's
attempts. Nothing is written back to the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, ok := report.ForFormat(format)
			if !ok {
				return fmt.Errorf("unknown format %q", format)
			}
			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return a.writeReport(cmd.Context(), rep, w)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json, html")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file, stdout when empty")
	return cmd
}

func (a *app) writeReport(
	ctx context.Context, rep report.Reporter, w io.Writer,
) error {
	st, err := openStore(a.cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	e, err := a.buildEngine(ctx, st)
	if err != nil {
		return err
	}
	return rep.Write(w, report.Build(e, nil))
}
