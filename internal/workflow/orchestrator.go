package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"quire/internal/config"
	"quire/internal/delivery"
	"quire/internal/edition"
	"quire/internal/logging"
	"quire/internal/notifications"
	"quire/internal/retry"
	"quire/internal/services"
)

const (
	discoveryBaseDelay = 2 * time.Second
	discoveryMaxDelay  = 30 * time.Second
)

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSleeper overrides the discovery backoff sleeper.
func WithSleeper(sleep retry.Sleeper) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// Orchestrator runs the pipeline for one or more editions.
type Orchestrator struct {
	cfg        *config.Config
	components Components
	workspace  edition.Workspace
	policy     delivery.RedeliveryPolicy
	logger     *slog.Logger
	now        func() time.Time
	sleep      retry.Sleeper
}

// New builds an orchestrator. A nil Notifier is replaced by the no-op service.
func New(cfg *config.Config, components Components, logger *slog.Logger, opts ...Option) *Orchestrator {
	if components.Notifier == nil {
		components.Notifier = notifications.Noop()
	}
	o := &Orchestrator{
		cfg:        cfg,
		components: components,
		workspace:  edition.NewWorkspace(cfg),
		policy:     delivery.ParsePolicy(cfg.Pipeline.Redelivery),
		logger:     logging.NewComponentLogger(logger, "workflow"),
		now:        time.Now,
		sleep:      retry.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessRecent delivers up to limit undelivered editions in discovery order.
// A limit of zero or less processes every undelivered edition.
func (o *Orchestrator) ProcessRecent(ctx context.Context, limit int, opts Options) (*Report, error) {
	ctx, report := o.startRun(ctx)
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("run started",
		logging.Int("limit", limit),
		logging.String("redelivery", string(o.policy)),
		logging.String(logging.FieldEventType, "run_start"),
	)

	err := o.withSource(ctx, func(src Source) error {
		editions, err := o.discover(ctx, src)
		if err != nil {
			return err
		}

		attempted := 0
		for _, ed := range editions {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit > 0 && attempted >= limit {
				break
			}
			if !opts.IgnoreLedger {
				done, err := o.components.Ledger.IsDelivered(ctx, ed.ID)
				if err != nil {
					return ledgerError("check ledger", err)
				}
				if done {
					report.Results = append(report.Results, o.skipped(ctx, ed))
					continue
				}
			}
			attempted++
			res, err := o.processEdition(ctx, src, ed, opts)
			report.Results = append(report.Results, res)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return o.finishRun(ctx, report, err)
}

// ProcessSingle runs one edition. The edition is looked up in discovery and
// constructed from its slug when the index does not list it.
func (o *Orchestrator) ProcessSingle(ctx context.Context, id string, opts Options) (*Report, error) {
	ctx, report := o.startRun(ctx)
	id = strings.TrimSpace(id)
	if err := edition.ValidateID(id); err != nil {
		return o.finishRun(ctx, report, services.Wrap(services.ErrValidation, StageDiscover, "validate edition", id, err))
	}
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("single edition run started",
		logging.String(logging.FieldEditionID, id),
		logging.String(logging.FieldEventType, "run_start"),
	)

	err := o.withSource(ctx, func(src Source) error {
		ed, err := o.lookup(ctx, src, id)
		if err != nil {
			return err
		}
		if !opts.IgnoreLedger {
			done, err := o.components.Ledger.IsDelivered(ctx, ed.ID)
			if err != nil {
				return ledgerError("check ledger", err)
			}
			if done {
				report.Results = append(report.Results, o.skipped(ctx, ed))
				return nil
			}
		}
		res, err := o.processEdition(ctx, src, ed, opts)
		report.Results = append(report.Results, res)
		return err
	})
	return o.finishRun(ctx, report, err)
}

func (o *Orchestrator) startRun(ctx context.Context) (context.Context, *Report) {
	runID := uuid.NewString()
	report := &Report{RunID: runID, StartedAt: o.now()}
	return services.WithRunID(ctx, runID), report
}

func (o *Orchestrator) finishRun(ctx context.Context, report *Report, err error) (*Report, error) {
	report.FinishedAt = o.now()
	delivered, skipped, failed := report.Counts()
	logger := logging.WithContext(ctx, o.logger)
	if err != nil {
		logging.ErrorWithContext(logger, "run aborted", "run_aborted",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		o.notify(ctx, notifications.EventError, notifications.Payload{
			"context": "run",
			"error":   err,
		})
	}
	logger.Info("run finished",
		logging.Int("delivered", delivered),
		logging.Int("skipped", skipped),
		logging.Int("failed", failed),
		logging.Duration("duration", report.Duration()),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	if delivered+failed > 0 || err != nil {
		o.notify(ctx, notifications.EventRunCompleted, notifications.Payload{
			"delivered": delivered,
			"skipped":   skipped,
			"failed":    failed,
			"duration":  report.Duration(),
		})
	}
	return report, err
}

// withSource acquires the session for the run and always releases it.
func (o *Orchestrator) withSource(ctx context.Context, fn func(Source) error) error {
	src, release, err := o.components.Opener.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if release == nil {
			return
		}
		if cerr := release(); cerr != nil {
			logging.WithContext(ctx, o.logger).Warn("session release failed", logging.Error(cerr))
		}
	}()
	return fn(src)
}

// discover lists editions, retrying transient index failures.
func (o *Orchestrator) discover(ctx context.Context, src Source) ([]edition.Edition, error) {
	logger := logging.WithContext(services.WithStage(ctx, StageDiscover), o.logger)
	policy := retry.Policy{
		MaxAttempts: o.cfg.Pipeline.DiscoveryAttempts,
		BaseDelay:   discoveryBaseDelay,
		MaxDelay:    discoveryMaxDelay,
	}
	retryable := func(err error) bool {
		return errors.Is(err, services.ErrTransient) && !services.RunFatal(err)
	}
	onRetry := func(attempt int, delay time.Duration, err error) {
		logging.WarnWithContext(logger, "edition discovery failed; retrying", "discovery_retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the index page was unreachable"),
		)
	}

	var editions []edition.Edition
	_, err := retry.Do(ctx, policy, o.sleep, retryable, onRetry, func(ctx context.Context, _ int) error {
		list, err := src.ListEditions(ctx)
		if err != nil {
			return err
		}
		editions = list
		return nil
	})
	if err != nil {
		if !services.RunFatal(err) {
			err = services.Wrap(services.ErrDiscovery, StageDiscover, "list editions", "", err)
		}
		return nil, err
	}
	logger.Info("editions discovered",
		logging.Int("count", len(editions)),
		logging.String(logging.FieldEventType, "editions_discovered"),
	)
	return editions, nil
}

func (o *Orchestrator) lookup(ctx context.Context, src Source, id string) (edition.Edition, error) {
	editions, err := o.discover(ctx, src)
	if err != nil {
		if errors.Is(err, services.ErrAuth) || errors.Is(err, context.Canceled) {
			return edition.Edition{}, err
		}
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "discovery unavailable; using edition slug", "discovery_fallback",
			logging.String(logging.FieldEditionID, id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the edition URL is derived from site.edition_url_template"),
		)
		return edition.New(id, o.cfg.EditionURL(id), 0), nil
	}
	for _, ed := range editions {
		if ed.ID == id {
			return ed, nil
		}
	}
	return edition.New(id, o.cfg.EditionURL(id), 0), nil
}

func (o *Orchestrator) skipped(ctx context.Context, ed edition.Edition) Result {
	logging.WithContext(ctx, o.logger).Info("edition already delivered",
		logging.String(logging.FieldEditionID, ed.ID),
		logging.String(logging.FieldEventType, "edition_skipped"),
	)
	return Result{EditionID: ed.ID, Title: ed.Title, State: StateDone, Skipped: true}
}

func (o *Orchestrator) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := o.components.Notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logging.WithContext(ctx, o.logger).Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

func ledgerError(operation string, err error) error {
	if errors.Is(err, services.ErrLedgerIO) {
		return err
	}
	return services.Wrap(services.ErrLedgerIO, StageLedger, operation, "", err)
}
