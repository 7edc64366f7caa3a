package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quire/internal/builder"
	"quire/internal/config"
	"quire/internal/delivery"
	"quire/internal/edition"
	"quire/internal/ledger"
	"quire/internal/logging"
	"quire/internal/notifications"
	"quire/internal/services"
	"quire/internal/testsupport"
	"quire/internal/workflow"
)

var errRejected = errors.New("550 mailbox unavailable")

type fakeSource struct {
	t         *testing.T
	workspace edition.Workspace
	editions  []edition.Edition
	listErrs  []error
	scrapeErr map[string]error
	scraped   []string
	released  int
}

func (s *fakeSource) ListEditions(context.Context) ([]edition.Edition, error) {
	if len(s.listErrs) > 0 {
		err := s.listErrs[0]
		s.listErrs = s.listErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return append([]edition.Edition(nil), s.editions...), nil
}

func (s *fakeSource) ScrapeEdition(_ context.Context, ed edition.Edition) (*edition.ContentSet, error) {
	s.scraped = append(s.scraped, ed.ID)
	if err := s.scrapeErr[ed.ID]; err != nil {
		return nil, err
	}
	dir := s.workspace.ContentDir(ed.ID)
	testsupport.WriteContentSet(s.t, dir, ed.ID, "Abertura", "Entrevista")
	return edition.LoadContentSet(dir)
}

type fakeBuilder struct {
	workspace edition.Workspace
	failures  map[string]error
	built     []string
	forced    []bool
}

func (b *fakeBuilder) Build(_ context.Context, ed edition.Edition, opts builder.Options) (*edition.Artifact, error) {
	b.built = append(b.built, ed.ID)
	b.forced = append(b.forced, opts.Force)
	if err := b.failures[ed.ID]; err != nil {
		return nil, err
	}
	path := b.workspace.ArtifactPath(ed.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte("epub "+ed.ID), 0o644); err != nil {
		return nil, err
	}
	return &edition.Artifact{
		EditionID:      ed.ID,
		Path:           path,
		AttachmentName: edition.AttachmentName(ed.Title, "Revista Liberta"),
	}, nil
}

// stubConverter stands in for pandoc: it writes a placeholder e-book to the
// -o argument and counts invocations.
type stubConverter struct {
	calls int
}

func (c *stubConverter) Run(_ context.Context, _, _ string, args []string) (string, error) {
	c.calls++
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			return "", os.WriteFile(args[i+1], []byte("PK\x03\x04epub"), 0o644)
		}
	}
	return "", errors.New("no output path")
}

type sent struct {
	edition string
	address string
}

type fakeDeliverer struct {
	// rejects counts how many more times an address refuses mail.
	rejects map[string]int
	sent    []sent
}

func (d *fakeDeliverer) Deliver(_ context.Context, artifact *edition.Artifact, destinations []string) delivery.Outcome {
	outcome := delivery.Outcome{Attempts: 1}
	for _, addr := range destinations {
		if d.rejects[addr] > 0 {
			d.rejects[addr]--
			outcome.Results = append(outcome.Results, delivery.Result{Address: addr, Permanent: true, Err: errRejected, Attempt: 1})
			continue
		}
		d.sent = append(d.sent, sent{edition: artifact.EditionID, address: addr})
		outcome.Results = append(outcome.Results, delivery.Result{Address: addr, Delivered: true, Attempt: 1})
	}
	return outcome
}

func (d *fakeDeliverer) sentTo(id string) []string {
	var out []string
	for _, s := range d.sent {
		if s.edition == id {
			out = append(out, s.address)
		}
	}
	return out
}

type fakeNotifier struct {
	events []notifications.Event
}

func (n *fakeNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) count(event notifications.Event) int {
	total := 0
	for _, e := range n.events {
		if e == event {
			total++
		}
	}
	return total
}

// faultyLedger fails the next delivery record as if the process died before
// the transaction committed.
type faultyLedger struct {
	*ledger.Store
	failRecord bool
}

func (l *faultyLedger) RecordDelivered(ctx context.Context, id string, destinations []string, at time.Time) error {
	if l.failRecord {
		l.failRecord = false
		return services.Wrap(services.ErrLedgerIO, "ledger", "record delivered", "disk I/O error", errors.New("simulated crash"))
	}
	return l.Store.RecordDelivered(ctx, id, destinations, at)
}

type harness struct {
	t        *testing.T
	cfg      *config.Config
	store    *ledger.Store
	ledger   workflow.Ledger
	source   *fakeSource
	builder  *fakeBuilder
	mailer   *fakeDeliverer
	notifier *fakeNotifier
	opens    int
	openErr  error
	sleeps   []time.Duration
	// build replaces the fake builder when set.
	build workflow.Builder
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store := testsupport.MustOpenLedger(t, cfg)
	workspace := edition.NewWorkspace(cfg)
	return &harness{
		t:      t,
		cfg:    cfg,
		store:  store,
		ledger: store,
		source: &fakeSource{
			t:         t,
			workspace: workspace,
			editions: []edition.Edition{
				edition.New("edicao-20", cfg.EditionURL("edicao-20"), 0),
				edition.New("edicao-19", cfg.EditionURL("edicao-19"), 1),
				edition.New("edicao-18", cfg.EditionURL("edicao-18"), 2),
			},
			scrapeErr: map[string]error{},
		},
		builder:  &fakeBuilder{workspace: workspace, failures: map[string]error{}},
		mailer:   &fakeDeliverer{rejects: map[string]int{}},
		notifier: &fakeNotifier{},
	}
}

func (h *harness) orchestrator() *workflow.Orchestrator {
	opener := workflow.OpenerFunc(func(context.Context) (workflow.Source, func() error, error) {
		h.opens++
		if h.openErr != nil {
			return nil, nil, h.openErr
		}
		return h.source, func() error {
			h.source.released++
			return nil
		}, nil
	})
	sleep := func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	var build workflow.Builder = h.builder
	if h.build != nil {
		build = h.build
	}
	return workflow.New(h.cfg, workflow.Components{
		Opener:    opener,
		Builder:   build,
		Deliverer: h.mailer,
		Ledger:    h.ledger,
		Notifier:  h.notifier,
	}, logging.NewNop(), workflow.WithSleeper(sleep))
}

func (h *harness) markDelivered(id string) {
	h.t.Helper()
	if err := h.store.RecordDelivered(context.Background(), id, h.cfg.Mail.Destinations, time.Now()); err != nil {
		h.t.Fatalf("seed ledger: %v", err)
	}
}

func (h *harness) isDelivered(id string) bool {
	h.t.Helper()
	ok, err := h.store.IsDelivered(context.Background(), id)
	if err != nil {
		h.t.Fatalf("IsDelivered: %v", err)
	}
	return ok
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
