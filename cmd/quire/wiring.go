package main

import (
	"context"
	"log/slog"

	"quire/internal/builder"
	"quire/internal/config"
	"quire/internal/delivery"
	"quire/internal/ledger"
	"quire/internal/notifications"
	"quire/internal/scraper"
	"quire/internal/session"
	"quire/internal/workflow"
)

func newSessionStore(cfg *config.Config, logger *slog.Logger) *session.Store {
	return session.NewStore(cfg, session.NewRodDriver(cfg, logger), logger)
}

func sourceOpener(opener *scraper.Opener) workflow.SourceOpener {
	return workflow.OpenerFunc(func(ctx context.Context) (workflow.Source, func() error, error) {
		src, release, err := opener.Open(ctx)
		if err != nil {
			return nil, nil, err
		}
		return src, release, nil
	})
}

// newOrchestrator wires the production collaborators around an open ledger.
func newOrchestrator(cfg *config.Config, store *ledger.Store, logger *slog.Logger) *workflow.Orchestrator {
	sessions := newSessionStore(cfg, logger)
	components := workflow.Components{
		Opener:    sourceOpener(scraper.NewOpener(cfg, sessions, logger)),
		Builder:   builder.New(cfg, logger),
		Deliverer: delivery.NewAgent(cfg, delivery.NewSMTPChannel(cfg), logger),
		Ledger:    store,
		Notifier:  notifications.NewService(cfg),
	}
	return workflow.New(cfg, components, logger)
}
