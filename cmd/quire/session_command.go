package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the persisted site session",
	}
	sessionCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Discard saved cookies so the next run logs in again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			if err := newSessionStore(cfg, logger).Invalidate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session cleared (%s)\n", cfg.Paths.SessionFile)
			return nil
		},
	})
	return sessionCmd
}
