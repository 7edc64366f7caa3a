package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"quire/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Credentials and destinations are filled with placeholders so credential
// validation passes; the site URLs are derived from the default base URL.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.ContentDir = filepath.Join(base, "data", "content")
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "data", "ebooks")
	cfgVal.Paths.SessionFile = filepath.Join(base, "data", "session.json")
	cfgVal.Paths.LedgerDB = filepath.Join(base, "data", "quire.db")
	cfgVal.Paths.LogDir = filepath.Join(base, "data", "logs")
	cfgVal.Paths.LockFile = filepath.Join(base, "data", "quire.lock")
	cfgVal.Site.Username = "reader"
	cfgVal.Site.Password = "secret"
	cfgVal.Mail.Sender = "sender@example.com"
	cfgVal.Mail.Password = "app-password"
	cfgVal.Mail.Destinations = []string{"a@kindle.com", "b@kindle.com"}
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	WithSiteURL(cfgVal.Site.BaseURL)(builder)

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSiteURL points every site URL at baseURL, typically an httptest server.
func WithSiteURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Site.BaseURL = baseURL
		b.cfg.Site.IndexURL = baseURL + "/edicoes/"
		b.cfg.Site.LoginURL = baseURL + "/login/"
		b.cfg.Site.ProbeURL = baseURL + "/edicoes/"
		b.cfg.Site.EditionURLTemplate = baseURL + "/edicao/%s"
	}
}

// WithDestinations overrides the configured delivery addresses.
func WithDestinations(addrs ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mail.Destinations = append([]string(nil), addrs...)
	}
}

// WithRedelivery selects the partial redelivery policy.
func WithRedelivery(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Redelivery = policy
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the configured converter binary
// is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{b.cfg.Converter.Binary}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
