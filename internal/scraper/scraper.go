package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"quire/internal/config"
	"quire/internal/edition"
	"quire/internal/logging"
	"quire/internal/session"
)

// Fetcher renders pages and downloads assets with the site session.
type Fetcher interface {
	Page(ctx context.Context, url string) (string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Scraper extracts editions from the content site.
type Scraper struct {
	cfg       *config.Config
	fetcher   Fetcher
	workspace edition.Workspace
	limiter   *rate.Limiter
	md        *converter.Converter
	policy    *bluemonday.Policy
	logger    *slog.Logger
	now       func() time.Time
}

// New builds a scraper that fetches through fetcher.
func New(cfg *config.Config, fetcher Fetcher, logger *slog.Logger) *Scraper {
	return &Scraper{
		cfg:       cfg,
		fetcher:   fetcher,
		workspace: edition.NewWorkspace(cfg),
		limiter:   rate.NewLimiter(rate.Limit(cfg.Scrape.RequestsPerSecond), 1),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
		logger: logging.NewComponentLogger(logger, "scraper"),
		now:    time.Now,
	}
}

// Opener acquires one session per run and wraps it in a Scraper.
type Opener struct {
	cfg      *config.Config
	sessions *session.Store
	logger   *slog.Logger
}

// NewOpener returns an Opener backed by the session store.
func NewOpener(cfg *config.Config, sessions *session.Store, logger *slog.Logger) *Opener {
	return &Opener{cfg: cfg, sessions: sessions, logger: logger}
}

// Open authenticates and returns a scraper plus the function that releases
// its session.
func (o *Opener) Open(ctx context.Context) (*Scraper, func() error, error) {
	sess, err := o.sessions.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return New(o.cfg, sess, o.logger), sess.Close, nil
}

func (s *Scraper) wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}
