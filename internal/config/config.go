package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the on-disk layout for persisted pipeline state.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	ContentDir  string `toml:"content_dir"`
	ArtifactDir string `toml:"artifact_dir"`
	SessionFile string `toml:"session_file"`
	LedgerDB    string `toml:"ledger_db"`
	LogDir      string `toml:"log_dir"`
	LockFile    string `toml:"lock_file"`
}

// Site describes the subscriber-only content source.
type Site struct {
	BaseURL            string `toml:"base_url"`
	IndexURL           string `toml:"index_url"`
	LoginURL           string `toml:"login_url"`
	ProbeURL           string `toml:"probe_url"`
	EditionURLTemplate string `toml:"edition_url_template"`
	Username           string `toml:"username"`
	Password           string `toml:"password"`
	UserAgent          string `toml:"user_agent"`
}

// Selectors holds the CSS selectors used to navigate the site markup.
type Selectors struct {
	EditionLink     string   `toml:"edition_link"`
	Cover           string   `toml:"cover"`
	ArticleLink     string   `toml:"article_link"`
	ArticleContent  []string `toml:"article_content"`
	ArticleStrip    []string `toml:"article_strip"`
	AuthorContainer string   `toml:"author_container"`
	AuthorName      string   `toml:"author_name"`
	AuthorBio       string   `toml:"author_bio"`
	LoginUsername   string   `toml:"login_username"`
	LoginPassword   string   `toml:"login_password"`
	LoginSubmit     []string `toml:"login_submit"`
}

// Session controls the headless browser used for authenticated fetches.
type Session struct {
	BrowserBinary     string `toml:"browser_binary"`
	Headless          bool   `toml:"headless"`
	NavigationTimeout int    `toml:"navigation_timeout"`
	LoginTimeout      int    `toml:"login_timeout"`
}

// Scrape tunes article extraction.
type Scrape struct {
	ArticleWorkers    int     `toml:"article_workers"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	HTTPTimeout       int     `toml:"http_timeout"`
	MaxImageBytes     int64   `toml:"max_image_bytes"`
}

// Book describes e-book metadata and image handling.
type Book struct {
	Author         string `toml:"author"`
	Language       string `toml:"language"`
	CoverMaxWidth  int    `toml:"cover_max_width"`
	CoverMaxHeight int    `toml:"cover_max_height"`
	CoverQuality   int    `toml:"cover_quality"`
	ImageQuality   int    `toml:"image_quality"`
}

// Converter configures the external document converter.
type Converter struct {
	Binary         string   `toml:"binary"`
	CSSPath        string   `toml:"css_path"`
	ExtraArgs      []string `toml:"extra_args"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Mail contains SMTP delivery settings.
type Mail struct {
	Sender            string   `toml:"sender"`
	Password          string   `toml:"password"`
	Destinations      []string `toml:"destinations"`
	Host              string   `toml:"host"`
	Port              int      `toml:"port"`
	MaxAttempts       int      `toml:"max_attempts"`
	RetryDelaySeconds int      `toml:"retry_delay_seconds"`
	RetryMaxDelay     int      `toml:"retry_max_delay_seconds"`
	TimeoutSeconds    int      `toml:"timeout_seconds"`
	Subject           string   `toml:"subject"`
	Body              string   `toml:"body"`
}

// Pipeline contains orchestration knobs.
type Pipeline struct {
	DefaultLimit      int    `toml:"default_limit"`
	ReuseContent      bool   `toml:"reuse_content"`
	Redelivery        string `toml:"redelivery"`
	DiscoveryAttempts int    `toml:"discovery_attempts"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Delivered      bool   `toml:"delivered"`
	RunSummary     bool   `toml:"run_summary"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for quire.
//
// A Config is built once at startup and handed to each component
// constructor. Nothing downstream reads the environment directly.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Site          Site          `toml:"site"`
	Selectors     Selectors     `toml:"selectors"`
	Session       Session       `toml:"session"`
	Scrape        Scrape        `toml:"scrape"`
	Book          Book          `toml:"book"`
	Converter     Converter     `toml:"converter"`
	Mail          Mail          `toml:"mail"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("quire.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		c.Paths.ContentDir,
		c.Paths.ArtifactDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.SessionFile),
		filepath.Dir(c.Paths.LedgerDB),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// EditionURL renders the page URL for an edition slug.
func (c *Config) EditionURL(slug string) string {
	return fmt.Sprintf(c.Site.EditionURLTemplate, strings.TrimSpace(slug))
}

// NavigationTimeout returns the browser navigation timeout.
func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Session.NavigationTimeout) * time.Second
}

// HTTPTimeout returns the timeout applied to plain HTTP downloads.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Scrape.HTTPTimeout) * time.Second
}

// ConverterTimeout returns the maximum runtime for one converter invocation.
func (c *Config) ConverterTimeout() time.Duration {
	return time.Duration(c.Converter.TimeoutSeconds) * time.Second
}

// MailRetryDelay returns the base backoff delay between delivery attempts.
func (c *Config) MailRetryDelay() time.Duration {
	return time.Duration(c.Mail.RetryDelaySeconds) * time.Second
}

// MailRetryMaxDelay caps the exponential backoff between delivery attempts.
func (c *Config) MailRetryMaxDelay() time.Duration {
	return time.Duration(c.Mail.RetryMaxDelay) * time.Second
}

// MailTimeout returns the SMTP dial and command timeout.
func (c *Config) MailTimeout() time.Duration {
	return time.Duration(c.Mail.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
