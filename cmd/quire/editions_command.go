package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"quire/internal/config"
	"quire/internal/ledger"
	"quire/internal/scraper"
)

func newEditionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "editions",
		Short: "List editions on the site and whether they were delivered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			opener := scraper.NewOpener(cfg, newSessionStore(cfg, logger), logger)
			src, release, err := opener.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			editions, err := src.ListEditions(cmd.Context())
			if err != nil {
				return err
			}
			return ctx.withLedger(func(_ *config.Config, store *ledger.Store) error {
				delivered, err := store.DeliveredSet(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(editions) == 0 {
					fmt.Fprintln(out, "No editions found")
					return nil
				}
				rows := make([][]string, 0, len(editions))
				for _, ed := range editions {
					_, done := delivered[ed.ID]
					rows = append(rows, []string{strconv.Itoa(ed.Position), ed.ID, ed.Title, yesNo(done)})
				}
				writeTable(out, []string{"#", "Edition", "Title", "Delivered"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
				return nil
			})
		},
	}
}
