package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quire/internal/config"
	"quire/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var editionID string
	var limit uint64
	var successOnly bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show ledger deliveries and recent run attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(_ *config.Config, store *ledger.Store) error {
				filter := ledger.Filter{
					EditionID:   strings.TrimSpace(editionID),
					SuccessOnly: successOnly,
					Limit:       limit,
				}
				deliveries, err := store.Deliveries(cmd.Context(), filter)
				if err != nil {
					return err
				}
				attempts, err := store.Attempts(cmd.Context(), ledger.Filter{EditionID: filter.EditionID, Limit: limit})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Deliveries")
				if len(deliveries) == 0 {
					fmt.Fprintln(out, "  none recorded")
				} else {
					rows := make([][]string, 0, len(deliveries))
					for _, d := range deliveries {
						rows = append(rows, []string{
							d.EditionID,
							formatTimestamp(d.DeliveredAt),
							deliveryOutcome(d.Success),
							d.Source,
							strings.Join(d.Destinations, ", "),
						})
					}
					writeTable(out, []string{"Edition", "When", "Outcome", "Source", "Destinations"}, rows, nil)
				}

				fmt.Fprintln(out, "Attempts")
				if len(attempts) == 0 {
					fmt.Fprintln(out, "  none recorded")
					return nil
				}
				rows := make([][]string, 0, len(attempts))
				for _, a := range attempts {
					detail := a.ErrorMessage
					if detail == "" {
						detail = a.ArtifactPath
					}
					state := a.State
					if a.FailedStage != "" {
						state = fmt.Sprintf("%s (%s)", a.State, a.FailedStage)
					}
					rows = append(rows, []string{
						a.EditionID,
						shortID(a.RunID),
						formatTimestamp(a.StartedAt),
						state,
						detail,
					})
				}
				writeTable(out, []string{"Edition", "Run", "Started", "State", "Detail"}, rows, nil)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&editionID, "edition", "e", "", "Only show this edition")
	cmd.Flags().Uint64VarP(&limit, "limit", "n", 20, "Maximum rows per section (0 for all)")
	cmd.Flags().BoolVar(&successOnly, "delivered", false, "Only show successful deliveries")
	return cmd
}

func deliveryOutcome(success bool) string {
	if success {
		return "delivered"
	}
	return "partial"
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
