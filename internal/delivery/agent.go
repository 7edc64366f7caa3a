package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quire/internal/config"
	"quire/internal/edition"
	"quire/internal/logging"
	"quire/internal/retry"
	"quire/internal/services"
)

// Result is the outcome for one destination.
type Result struct {
	Address   string
	Delivered bool
	// Permanent is set when the destination was given up on without
	// exhausting retries.
	Permanent bool
	Err       error
	// Attempt is the attempt number that settled this destination.
	Attempt int
}

// Outcome summarises one Deliver call.
type Outcome struct {
	Results  []Result
	Attempts int
	Retries  int
}

// AllDelivered reports whether every destination accepted the message.
func (o Outcome) AllDelivered() bool {
	for _, r := range o.Results {
		if !r.Delivered {
			return false
		}
	}
	return true
}

// Delivered lists the destinations that accepted the message.
func (o Outcome) Delivered() []string {
	var out []string
	for _, r := range o.Results {
		if r.Delivered {
			out = append(out, r.Address)
		}
	}
	return out
}

// Failed lists the destinations that did not accept the message.
func (o Outcome) Failed() []Result {
	var out []Result
	for _, r := range o.Results {
		if !r.Delivered {
			out = append(out, r)
		}
	}
	return out
}

// Err returns nil when every destination accepted the message, otherwise a
// delivery error naming the failed destinations.
func (o Outcome) Err() error {
	failed := o.Failed()
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(failed))
	causes := make([]error, 0, len(failed))
	for _, r := range failed {
		names = append(names, r.Address)
		if r.Err != nil {
			causes = append(causes, fmt.Errorf("%s: %w", r.Address, r.Err))
		}
	}
	msg := fmt.Sprintf("%d of %d destinations failed (%s)", len(failed), len(o.Results), strings.Join(names, ", "))
	return services.Wrap(services.ErrDelivery, "delivery", "send", msg, errors.Join(causes...))
}

// Option customises an Agent.
type Option func(*Agent)

// WithSleeper replaces the backoff sleeper, mainly for tests.
func WithSleeper(sleep retry.Sleeper) Option {
	return func(a *Agent) {
		if sleep != nil {
			a.sleep = sleep
		}
	}
}

// Agent mails artifacts with retries.
type Agent struct {
	channel Channel
	policy  retry.Policy
	sleep   retry.Sleeper
	sender  string
	subject string
	body    string
	logger  *slog.Logger
}

// NewAgent configures an agent from the mail settings.
func NewAgent(cfg *config.Config, channel Channel, logger *slog.Logger, opts ...Option) *Agent {
	a := &Agent{
		channel: channel,
		policy: retry.Policy{
			MaxAttempts: cfg.Mail.MaxAttempts,
			BaseDelay:   cfg.MailRetryDelay(),
			MaxDelay:    cfg.MailRetryMaxDelay(),
		},
		sleep:   retry.Sleep,
		sender:  cfg.Mail.Sender,
		subject: cfg.Mail.Subject,
		body:    cfg.Mail.Body,
		logger:  logging.NewComponentLogger(logger, "delivery"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Deliver sends the artifact to each destination. Destinations that accept
// the message are not sent to again within this call.
func (a *Agent) Deliver(ctx context.Context, artifact *edition.Artifact, destinations []string) Outcome {
	logger := logging.WithContext(ctx, a.logger)
	results := make([]Result, len(destinations))
	for i, dest := range destinations {
		results[i] = Result{Address: dest}
	}
	outcome := Outcome{Results: results}
	if len(destinations) == 0 {
		return outcome
	}

	if artifact == nil || artifact.Path == "" {
		settleAll(results, 0, true, errors.New("no artifact to deliver"))
		return outcome
	}
	if _, err := os.Stat(artifact.Path); err != nil {
		settleAll(results, 0, true, fmt.Errorf("artifact unavailable: %w", err))
		return outcome
	}
	name := artifact.AttachmentName
	if name == "" {
		name = filepath.Base(artifact.Path)
	}

	send := func(ctx context.Context, attempt int) error {
		conn, err := a.channel.Dial(ctx)
		if err != nil {
			switch Classify(err) {
			case ClassAuth, ClassPermanent:
				settlePending(results, attempt, true, err)
			}
			return err
		}
		defer func() {
			if cerr := conn.Close(); cerr != nil {
				logger.Debug("smtp close failed", logging.Error(cerr))
			}
		}()

		for i := range results {
			r := &results[i]
			if r.Delivered || r.Permanent {
				continue
			}
			err := conn.Send(ctx, Message{
				From:           a.sender,
				To:             r.Address,
				Subject:        a.subject,
				Body:           a.body,
				AttachmentPath: artifact.Path,
				AttachmentName: name,
			})
			if err == nil {
				r.Delivered = true
				r.Err = nil
				r.Attempt = attempt
				logger.Info("edition mailed",
					logging.String("destination", r.Address),
					logging.Int("attempt", attempt),
					logging.String(logging.FieldEventType, "destination_delivered"),
				)
				continue
			}
			switch Classify(err) {
			case ClassPermanent:
				r.Permanent = true
				r.Err = err
				r.Attempt = attempt
				logging.WarnWithContext(logger, "destination rejected", "destination_rejected",
					logging.String("destination", r.Address),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check the address and the sender's approved list"),
				)
			case ClassAuth:
				settlePending(results, attempt, true, err)
				return err
			default:
				r.Err = err
				return err
			}
		}
		return nil
	}

	retryable := func(err error) bool {
		return Classify(err) == ClassTransient
	}
	onRetry := func(attempt int, delay time.Duration, err error) {
		logging.WarnWithContext(logger, "delivery attempt failed; retrying", "delivery_retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "transient SMTP failure"),
		)
	}

	res, err := retry.Do(ctx, a.policy, a.sleep, retryable, onRetry, send)
	outcome.Attempts = res.Attempts
	outcome.Retries = res.Retries
	if err != nil {
		settlePending(results, res.Attempts, false, err)
	}
	return outcome
}

func settlePending(results []Result, attempt int, permanent bool, err error) {
	for i := range results {
		r := &results[i]
		if r.Delivered || r.Permanent {
			continue
		}
		r.Permanent = permanent
		r.Err = err
		r.Attempt = attempt
	}
}

func settleAll(results []Result, attempt int, permanent bool, err error) {
	for i := range results {
		results[i].Permanent = permanent
		results[i].Err = err
		results[i].Attempt = attempt
	}
}
