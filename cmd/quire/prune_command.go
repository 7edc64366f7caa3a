package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quire/internal/config"
	"quire/internal/edition"
	"quire/internal/ledger"
	"quire/internal/staging"
)

func newPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove content and e-books of delivered editions",
		Long: "Delete the scraped content and built e-book of every edition the ledger records as " +
			"delivered and that has not been touched for --older-than. Abandoned partial scrapes are removed too.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			return ctx.withLedger(func(cfg *config.Config, store *ledger.Store) error {
				delivered, err := store.DeliveredSet(cmd.Context())
				if err != nil {
					return err
				}
				result, err := staging.PruneDelivered(cmd.Context(), edition.NewWorkspace(cfg), delivered, olderThan, dryRun, logger)
				if err != nil {
					return err
				}
				if !dryRun {
					partial := staging.CleanPartial(cmd.Context(), cfg.Paths.ContentDir, olderThan, logger)
					result.Freed += partial.Freed
					result.Errors = append(result.Errors, partial.Errors...)
				}

				out := cmd.OutOrStdout()
				verb := "Pruned"
				if dryRun {
					verb = "Would prune"
				}
				fmt.Fprintf(out, "%s %d editions (%s)\n", verb, len(result.Editions), formatBytes(result.Freed))
				for _, id := range result.Editions {
					fmt.Fprintf(out, "  %s\n", id)
				}
				for _, failure := range result.Errors {
					fmt.Fprintf(out, "  failed: %s: %v\n", failure.Path, failure.Error)
				}
				if len(result.Errors) > 0 {
					return fmt.Errorf("%d paths could not be removed", len(result.Errors))
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Only prune editions untouched for this long")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed without deleting")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
