package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"quire/internal/config"
)

func clearSecretEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"QUIRE_SITE_USER", "LIBER_USER",
		"QUIRE_SITE_PASSWORD", "LIBER_PASS",
		"QUIRE_MAIL_SENDER", "MAIL",
		"QUIRE_MAIL_PASSWORD", "SEC",
		"QUIRE_DESTINATIONS", "KINDLE_EMAILS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigDerivesPathsFromDataDir(t *testing.T) {
	clearSecretEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	dataDir := filepath.Join(tempHome, ".local", "share", "quire")
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, dataDir)
	}
	checks := map[string]string{
		"content":  filepath.Join(dataDir, "content"),
		"artifact": filepath.Join(dataDir, "ebooks"),
		"session":  filepath.Join(dataDir, "session.json"),
		"ledger":   filepath.Join(dataDir, "quire.db"),
		"logs":     filepath.Join(dataDir, "logs"),
	}
	got := map[string]string{
		"content":  cfg.Paths.ContentDir,
		"artifact": cfg.Paths.ArtifactDir,
		"session":  cfg.Paths.SessionFile,
		"ledger":   cfg.Paths.LedgerDB,
		"logs":     cfg.Paths.LogDir,
	}
	for key, want := range checks {
		if got[key] != want {
			t.Fatalf("unexpected %s path: got %q want %q", key, got[key], want)
		}
	}
	if cfg.Pipeline.Redelivery != config.RedeliverPending {
		t.Fatalf("expected pending redelivery by default, got %q", cfg.Pipeline.Redelivery)
	}
	if cfg.Mail.Port != 465 || cfg.Mail.MaxAttempts != 3 {
		t.Fatalf("unexpected mail defaults: port=%d attempts=%d", cfg.Mail.Port, cfg.Mail.MaxAttempts)
	}
	if got := cfg.EditionURL("edicao-18"); got != "https://revistaliberta.com.br/digital/edicao/edicao-18" {
		t.Fatalf("unexpected edition url %q", got)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.ContentDir, cfg.Paths.ArtifactDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearSecretEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "quire.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Mail struct {
			Destinations []string `toml:"destinations"`
		} `toml:"mail"`
		Pipeline struct {
			Redelivery string `toml:"redelivery"`
		} `toml:"pipeline"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Mail.Destinations = []string{" Reader@Kindle.com ", "reader@kindle.com", "other@kindle.com"}
	custom.Pipeline.Redelivery = "ALL"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q to be used, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.LedgerDB != filepath.Join(tempDir, "data", "quire.db") {
		t.Fatalf("unexpected ledger path %q", cfg.Paths.LedgerDB)
	}
	if len(cfg.Mail.Destinations) != 2 || cfg.Mail.Destinations[0] != "reader@kindle.com" {
		t.Fatalf("expected deduped destinations, got %v", cfg.Mail.Destinations)
	}
	if cfg.Pipeline.Redelivery != config.RedeliverAll {
		t.Fatalf("expected redelivery all, got %q", cfg.Pipeline.Redelivery)
	}
}

func TestSiteURLsFollowBaseURL(t *testing.T) {
	clearSecretEnv(t)
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "quire.toml")
	content := "[site]\nbase_url = \"http://127.0.0.1:9999/mag/\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := map[string]string{
		"base":    "http://127.0.0.1:9999/mag",
		"index":   "http://127.0.0.1:9999/mag/edicoes/",
		"login":   "http://127.0.0.1:9999/mag/login/",
		"probe":   "http://127.0.0.1:9999/mag/edicoes/",
		"edition": "http://127.0.0.1:9999/mag/edicao/edicao-18",
	}
	got := map[string]string{
		"base":    cfg.Site.BaseURL,
		"index":   cfg.Site.IndexURL,
		"login":   cfg.Site.LoginURL,
		"probe":   cfg.Site.ProbeURL,
		"edition": cfg.EditionURL("edicao-18"),
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("unexpected %s url: got %q want %q", key, got[key], value)
		}
	}
}

func TestExplicitSiteURLsOverrideBaseURL(t *testing.T) {
	clearSecretEnv(t)
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "quire.toml")
	content := "[site]\nbase_url = \"http://127.0.0.1:9999/mag\"\nindex_url = \"http://127.0.0.1:9999/arquivo/\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Site.IndexURL != "http://127.0.0.1:9999/arquivo/" {
		t.Fatalf("expected explicit index url, got %q", cfg.Site.IndexURL)
	}
	if cfg.Site.ProbeURL != cfg.Site.IndexURL {
		t.Fatalf("expected probe url to follow index url, got %q", cfg.Site.ProbeURL)
	}
	if cfg.Site.LoginURL != "http://127.0.0.1:9999/mag/login/" {
		t.Fatalf("expected derived login url, got %q", cfg.Site.LoginURL)
	}
}

func TestEnvironmentFallbacks(t *testing.T) {
	clearSecretEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LIBER_USER", "reader")
	t.Setenv("LIBER_PASS", "secret")
	t.Setenv("MAIL", "sender@example.com")
	t.Setenv("SEC", "app-password")
	t.Setenv("KINDLE_EMAILS", "a@kindle.com, b@kindle.com")
	t.Setenv("QUIRE_SITE_USER", "override")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Site.Username != "override" {
		t.Fatalf("expected QUIRE_SITE_USER to win, got %q", cfg.Site.Username)
	}
	if cfg.Site.Password != "secret" || cfg.Mail.Password != "app-password" {
		t.Fatal("expected passwords from environment")
	}
	if len(cfg.Mail.Destinations) != 2 || cfg.Mail.Destinations[1] != "b@kindle.com" {
		t.Fatalf("unexpected destinations %v", cfg.Mail.Destinations)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		t.Fatalf("ValidateCredentials: %v", err)
	}
}

func TestValidateCredentialsListsMissingSettings(t *testing.T) {
	clearSecretEnv(t)
	t.Setenv("HOME", t.TempDir())
	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	err = cfg.ValidateCredentials()
	if err == nil {
		t.Fatal("expected missing credential error")
	}
	for _, fragment := range []string{"site.username", "mail.password", "mail.destinations"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %v", fragment, err)
		}
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"redelivery", func(c *config.Config) { c.Pipeline.Redelivery = "sometimes" }, "pipeline.redelivery"},
		{"template", func(c *config.Config) { c.Site.EditionURLTemplate = "https://example.com/edicao/" }, "edition_url_template"},
		{"destination", func(c *config.Config) { c.Mail.Destinations = []string{"not-an-address"} }, "mail.destinations"},
		{"quality", func(c *config.Config) { c.Book.CoverQuality = 150 }, "cover_quality"},
		{"submit", func(c *config.Config) { c.Selectors.LoginSubmit = nil }, "login_submit"},
	}
	clearSecretEnv(t)
	t.Setenv("HOME", t.TempDir())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, _, _, err := config.Load("")
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			tc.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	clearSecretEnv(t)
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(target); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}
