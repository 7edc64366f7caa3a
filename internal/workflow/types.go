package workflow

import (
	"context"
	"time"

	"quire/internal/builder"
	"quire/internal/delivery"
	"quire/internal/edition"
	"quire/internal/ledger"
	"quire/internal/notifications"
)

// State is an edition's position in the pipeline.
type State string

const (
	StateDiscovered State = "discovered"
	// StateDone marks an edition skipped because the ledger already has it.
	StateDone       State = "done"
	StateScraping   State = "scraping"
	StateScraped    State = "scraped"
	StateBuilding   State = "building"
	StateBuilt      State = "built"
	StateDelivering State = "delivering"
	StateDelivered  State = "delivered"
	StateFailed     State = "failed"
)

// Stage names used for failed(stage) and log fields.
const (
	StageDiscover = "discover"
	StageLedger   = "ledger"
	StageScrape   = "scrape"
	StageBuild    = "build"
	StageDeliver  = "deliver"
)

// Source lists and extracts editions through an authenticated session.
type Source interface {
	ListEditions(ctx context.Context) ([]edition.Edition, error)
	ScrapeEdition(ctx context.Context, ed edition.Edition) (*edition.ContentSet, error)
}

// SourceOpener acquires a Source for one run. release closes the session.
type SourceOpener interface {
	Open(ctx context.Context) (src Source, release func() error, err error)
}

// OpenerFunc adapts a function to SourceOpener.
type OpenerFunc func(ctx context.Context) (Source, func() error, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context) (Source, func() error, error) {
	return f(ctx)
}

// Builder turns a content set into an e-book.
type Builder interface {
	Build(ctx context.Context, ed edition.Edition, opts builder.Options) (*edition.Artifact, error)
}

// Deliverer mails an artifact to destinations.
type Deliverer interface {
	Deliver(ctx context.Context, artifact *edition.Artifact, destinations []string) delivery.Outcome
}

// Ledger is the subset of the delivery ledger the orchestrator uses.
type Ledger interface {
	IsDelivered(ctx context.Context, id string) (bool, error)
	Receipts(ctx context.Context, id string) (map[string]time.Time, error)
	RecordDelivered(ctx context.Context, id string, destinations []string, at time.Time) error
	Append(ctx context.Context, d ledger.Delivery) error
	RecordAttempt(ctx context.Context, a ledger.Attempt) error
}

// Components bundles the concrete collaborators the orchestrator drives.
type Components struct {
	Opener    SourceOpener
	Builder   Builder
	Deliverer Deliverer
	Ledger    Ledger
	Notifier  notifications.Service
}

// Options adjusts how a run treats existing state.
type Options struct {
	// IgnoreLedger processes editions even when already delivered and resends
	// to every destination.
	IgnoreLedger bool
	// Rescrape ignores an existing content set.
	Rescrape bool
	// Rebuild ignores a fresh artifact.
	Rebuild bool
}

// Result is the outcome for one edition.
type Result struct {
	EditionID      string
	Title          string
	State          State
	FailedStage    string
	Skipped        bool
	ContentReused  bool
	ArtifactReused bool
	ArtifactPath   string
	Delivered      []string
	Undelivered    []string
	Err            error
	Duration       time.Duration
}

// Report summarises a run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Result
}

// Counts tallies delivered, skipped and failed editions.
func (r *Report) Counts() (delivered, skipped, failed int) {
	if r == nil {
		return 0, 0, 0
	}
	for _, res := range r.Results {
		switch res.State {
		case StateDelivered:
			delivered++
		case StateDone:
			skipped++
		case StateFailed:
			failed++
		}
	}
	return delivered, skipped, failed
}

// HasFailures reports whether any edition failed.
func (r *Report) HasFailures() bool {
	_, _, failed := r.Counts()
	return failed > 0
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// EditionIDs lists the editions in report order.
func (r *Report) EditionIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		ids = append(ids, res.EditionID)
	}
	return ids
}
