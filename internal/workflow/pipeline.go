package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"quire/internal/builder"
	"quire/internal/delivery"
	"quire/internal/edition"
	"quire/internal/ledger"
	"quire/internal/logging"
	"quire/internal/notifications"
	"quire/internal/services"
)

// processEdition moves one undelivered edition through scrape, build and
// deliver. The returned error is non-nil only when the run must abort; stage
// failures are reported through the Result.
func (o *Orchestrator) processEdition(ctx context.Context, src Source, ed edition.Edition, opts Options) (Result, error) {
	correlationID := uuid.NewString()
	ctx = services.WithEditionID(ctx, ed.ID)
	ctx = services.WithRequestID(ctx, correlationID)
	logger := logging.WithContext(ctx, o.logger)
	if ed.Title == "" {
		ed.Title = edition.TitleFromSlug(ed.ID)
	}

	started := o.now()
	res := Result{EditionID: ed.ID, Title: ed.Title, State: StateDiscovered}
	logger.Info("edition started",
		logging.String("title", ed.Title),
		logging.String(logging.FieldEventType, "edition_start"),
	)

	fatal := o.runStages(ctx, logger, src, ed, opts, &res)
	res.Duration = o.now().Sub(started)

	attempt := ledger.Attempt{
		RunID:        runIDFrom(ctx),
		EditionID:    ed.ID,
		State:        string(res.State),
		FailedStage:  res.FailedStage,
		ArtifactPath: res.ArtifactPath,
		StartedAt:    started,
		FinishedAt:   started.Add(res.Duration),
	}
	if res.Err != nil {
		attempt.ErrorMessage = res.Err.Error()
	}
	if err := o.components.Ledger.RecordAttempt(ctx, attempt); err != nil && fatal == nil {
		fatal = ledgerError("record attempt", err)
	}

	switch res.State {
	case StateDelivered:
		logger.Info("edition delivered",
			logging.Strings("destinations", res.Delivered),
			logging.Bool("content_reused", res.ContentReused),
			logging.Bool("artifact_reused", res.ArtifactReused),
			logging.Duration("duration", res.Duration),
			logging.String(logging.FieldEventType, "edition_delivered"),
		)
		o.notify(ctx, notifications.EventEditionDelivered, notifications.Payload{
			"edition":      ed.ID,
			"title":        ed.Title,
			"destinations": len(res.Delivered),
		})
	case StateFailed:
		logging.ErrorWithContext(logger, "edition failed", "edition_failed",
			logging.String(logging.FieldStage, res.FailedStage),
			logging.Error(res.Err),
			logging.String(logging.FieldErrorKind, services.Kind(res.Err)),
			logging.String(logging.FieldErrorHint, services.Hint(res.Err)),
		)
		if fatal == nil {
			o.notify(ctx, notifications.EventError, notifications.Payload{
				"context": ed.ID + " (" + res.FailedStage + ")",
				"error":   res.Err,
			})
		}
	}
	return res, fatal
}

// runStages advances res and returns an error only when the run must abort.
func (o *Orchestrator) runStages(ctx context.Context, logger *slog.Logger, src Source, ed edition.Edition, opts Options, res *Result) error {
	fail := func(stage string, err error) error {
		res.State = StateFailed
		res.FailedStage = stage
		res.Err = err
		if services.RunFatal(err) || errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	// Scrape.
	res.State = StateScraping
	stageStarted := o.stageStart(logger, StageScrape)
	if o.cfg.Pipeline.ReuseContent && !opts.Rescrape && o.workspace.HasContent(ed.ID) {
		res.ContentReused = true
		logger.Info("reusing scraped content",
			logging.String("content_dir", o.workspace.ContentDir(ed.ID)),
			logging.String(logging.FieldEventType, "content_reused"),
		)
	} else if _, err := src.ScrapeEdition(services.WithStage(ctx, StageScrape), ed); err != nil {
		return fail(StageScrape, err)
	}
	res.State = StateScraped
	o.stageDone(logger, StageScrape, stageStarted)

	// Build.
	res.State = StateBuilding
	stageStarted = o.stageStart(logger, StageBuild)
	artifact, err := o.components.Builder.Build(services.WithStage(ctx, StageBuild), ed, builder.Options{Force: opts.Rebuild})
	if err != nil {
		return fail(StageBuild, err)
	}
	res.ArtifactReused = artifact.Reused
	res.ArtifactPath = artifact.Path
	res.State = StateBuilt
	o.stageDone(logger, StageBuild, stageStarted)

	// Deliver.
	res.State = StateDelivering
	stageStarted = o.stageStart(logger, StageDeliver)
	deliverCtx := services.WithStage(ctx, StageDeliver)
	destinations := o.cfg.Mail.Destinations
	policy := o.policy
	if opts.IgnoreLedger {
		policy = delivery.RedeliverAll
	}

	confirmed := map[string]time.Time{}
	if policy == delivery.RedeliverPending {
		receipts, err := o.components.Ledger.Receipts(deliverCtx, ed.ID)
		if err != nil {
			return fail(StageDeliver, ledgerError("read receipts", err))
		}
		for addr, at := range receipts {
			confirmed[addr] = at
		}
	}
	targets := policy.Targets(destinations, confirmed)
	if skipped := len(destinations) - len(targets); skipped > 0 {
		logger.Info("skipping destinations with receipts",
			logging.Int("skipped", skipped),
			logging.Strings("targets", targets),
		)
	}

	var outcome delivery.Outcome
	if len(targets) > 0 {
		outcome = o.components.Deliverer.Deliver(deliverCtx, artifact, targets)
	}
	at := o.now()
	for _, addr := range outcome.Delivered() {
		confirmed[strings.ToLower(addr)] = at
	}
	res.Delivered = outcome.Delivered()
	for _, failed := range outcome.Failed() {
		res.Undelivered = append(res.Undelivered, failed.Address)
	}

	if !delivery.Complete(destinations, confirmed) {
		if len(res.Delivered) > 0 {
			partial := ledger.Delivery{
				EditionID:    ed.ID,
				DeliveredAt:  at,
				Destinations: res.Delivered,
				Success:      false,
				Source:       ledger.SourcePipeline,
			}
			if err := o.components.Ledger.Append(deliverCtx, partial); err != nil {
				return fail(StageDeliver, ledgerError("record partial delivery", err))
			}
		}
		err := outcome.Err()
		if err == nil {
			err = services.Wrap(services.ErrDelivery, StageDeliver, "send", "destinations without receipts", nil)
		}
		return fail(StageDeliver, err)
	}

	if err := o.components.Ledger.RecordDelivered(deliverCtx, ed.ID, destinations, at); err != nil {
		return fail(StageDeliver, ledgerError("record delivery", err))
	}
	res.State = StateDelivered
	o.stageDone(logger, StageDeliver, stageStarted)
	return nil
}

func (o *Orchestrator) stageStart(logger *slog.Logger, stage string) time.Time {
	logger.Debug("stage started",
		logging.String(logging.FieldStage, stage),
		logging.String(logging.FieldEventType, "stage_start"),
	)
	return o.now()
}

func (o *Orchestrator) stageDone(logger *slog.Logger, stage string, started time.Time) {
	logger.Debug("stage completed",
		logging.String(logging.FieldStage, stage),
		logging.Duration("stage_duration", o.now().Sub(started)),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
}

func runIDFrom(ctx context.Context) string {
	id, _ := services.RunIDFromContext(ctx)
	return id
}
