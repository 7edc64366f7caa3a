package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quire/internal/config"
	"quire/internal/deps"
	"quire/internal/ledger"
	"quire/internal/logging"
	"quire/internal/preflight"
	"quire/internal/runlock"
	"quire/internal/services"
	"quire/internal/staging"
	"quire/internal/workflow"
)

var errEditionsFailed = errors.New("one or more editions failed")

// staleScrapeAge is how old a partial scrape directory must be before a run
// treats it as abandoned.
const staleScrapeAge = 6 * time.Hour

func newRunCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var editionID string
	var opts workflow.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape, build and deliver recent editions",
		Long: "Discover the most recent editions, skip those already in the delivery ledger, " +
			"and scrape, build and mail the rest. With --edition only that edition is processed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := checkRunnable(cfg); err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = cfg.Pipeline.DefaultLimit
			}
			if limit < 0 {
				return services.Wrap(services.ErrValidation, "run", "parse flags", "--limit must be zero or positive", nil)
			}

			lock, err := runlock.Acquire(cfg.Paths.LockFile)
			if err != nil {
				if errors.Is(err, runlock.ErrHeld) {
					return fmt.Errorf("another quire run holds %s", cfg.Paths.LockFile)
				}
				return err
			}
			defer lock.Release()

			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			if cleaned := staging.CleanPartial(cmd.Context(), cfg.Paths.ContentDir, staleScrapeAge, logger); len(cleaned.Removed) > 0 {
				logger.Info("removed abandoned partial scrapes", logging.Int("count", len(cleaned.Removed)))
			}

			return ctx.withLedger(func(cfg *config.Config, store *ledger.Store) error {
				orchestrator := newOrchestrator(cfg, store, logger)
				var report *workflow.Report
				if id := strings.TrimSpace(editionID); id != "" {
					report, err = orchestrator.ProcessSingle(cmd.Context(), id, opts)
				} else {
					report, err = orchestrator.ProcessRecent(cmd.Context(), limit, opts)
				}
				printRunReport(cmd.OutOrStdout(), report)
				if err != nil {
					return err
				}
				if report.HasFailures() {
					return errEditionsFailed
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum editions to process (default pipeline.default_limit, 0 for all)")
	cmd.Flags().StringVarP(&editionID, "edition", "e", "", "Process a single edition by slug (e.g. edicao-18)")
	cmd.Flags().BoolVar(&opts.IgnoreLedger, "force", false, "Process editions already in the ledger and resend to every destination")
	cmd.Flags().BoolVar(&opts.Rescrape, "rescrape", false, "Ignore previously scraped content")
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "Rebuild the e-book even when it is up to date")
	return cmd
}

// checkRunnable fails fast on problems that would abort a run anyway.
func checkRunnable(cfg *config.Config) error {
	if err := cfg.ValidateCredentials(); err != nil {
		return services.Wrap(services.ErrConfiguration, "run", "check credentials", "", err)
	}
	if missing := deps.MissingRequired(preflight.CheckSystemDeps(cfg)); len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "run", "check dependencies",
			"missing required tools: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

func printRunReport(out io.Writer, report *workflow.Report) {
	if report == nil {
		return
	}
	if len(report.Results) > 0 {
		rows := make([][]string, 0, len(report.Results))
		for _, res := range report.Results {
			rows = append(rows, []string{
				res.EditionID,
				res.Title,
				resultStatus(res),
				resultDetail(res),
				formatDuration(res.Duration),
			})
		}
		writeTable(out, []string{"Edition", "Title", "Status", "Detail", "Time"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight})
	}
	delivered, skipped, failed := report.Counts()
	fmt.Fprintf(out, "Run %s: %d delivered, %d skipped, %d failed in %s\n",
		shortID(report.RunID), delivered, skipped, failed, formatDuration(report.Duration()))
}

func resultStatus(res workflow.Result) string {
	if res.State == workflow.StateFailed && res.FailedStage != "" {
		return fmt.Sprintf("failed (%s)", res.FailedStage)
	}
	return string(res.State)
}

func resultDetail(res workflow.Result) string {
	switch {
	case res.Skipped:
		return "already delivered"
	case res.Err != nil:
		return res.Err.Error()
	case len(res.Undelivered) > 0:
		return "pending: " + strings.Join(res.Undelivered, ", ")
	case len(res.Delivered) > 0:
		parts := []string{fmt.Sprintf("%d destinations", len(res.Delivered))}
		if res.ContentReused {
			parts = append(parts, "content reused")
		}
		if res.ArtifactReused {
			parts = append(parts, "artifact reused")
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(100 * time.Millisecond).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
