package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quire/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, credentials, tools and connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)

			fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, res := range results {
				fmt.Fprintln(out, renderCheckLine(res.Name, res.Passed, res.Detail, colorize))
			}
			if probe := preflight.ProbeConverter(cfg.Converter.Binary); probe.Found {
				fmt.Fprintf(out, "Converter: %s\n", probe.Detail())
			}

			failed := preflight.Failed(results)
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
