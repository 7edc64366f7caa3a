package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quire/internal/config"
	"quire/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Delivery ledger maintenance",
	}
	ledgerCmd.AddCommand(newLedgerImportCommand(ctx))
	return ledgerCmd
}

func newLedgerImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Record editions from a plain history file as delivered",
		Long: "Read one delivered e-book per line, either a slug such as edicao-18 or an " +
			"attachment name such as \"Edição 18 (Revista Liberta).epub\", and mark each as delivered.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open history file: %w", err)
			}
			defer file.Close()

			return ctx.withLedger(func(_ *config.Config, store *ledger.Store) error {
				result, err := store.ImportHistory(cmd.Context(), file, time.Now())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d editions", len(result.Imported))
				if len(result.Skipped) > 0 {
					fmt.Fprintf(out, " (%d already recorded or unrecognised)", len(result.Skipped))
				}
				fmt.Fprintln(out)
				for _, id := range result.Imported {
					fmt.Fprintf(out, "  %s\n", id)
				}
				return nil
			})
		},
	}
}
