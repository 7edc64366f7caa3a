package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSite()
	c.normalizeSession()
	c.normalizeScrape()
	c.normalizeBook()
	if err := c.normalizeConverter(); err != nil {
		return err
	}
	c.normalizeMail()
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}

	derived := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.content_dir", &c.Paths.ContentDir, filepath.Join(c.Paths.DataDir, "content")},
		{"paths.artifact_dir", &c.Paths.ArtifactDir, filepath.Join(c.Paths.DataDir, "ebooks")},
		{"paths.session_file", &c.Paths.SessionFile, filepath.Join(c.Paths.DataDir, "session.json")},
		{"paths.ledger_db", &c.Paths.LedgerDB, filepath.Join(c.Paths.DataDir, "quire.db")},
		{"paths.log_dir", &c.Paths.LogDir, filepath.Join(c.Paths.DataDir, "logs")},
		{"paths.lock_file", &c.Paths.LockFile, filepath.Join(c.Paths.DataDir, "quire.lock")},
	}
	for _, entry := range derived {
		if strings.TrimSpace(*entry.value) == "" {
			*entry.value = entry.fallback
		}
		if *entry.value, err = expandPath(*entry.value); err != nil {
			return fmt.Errorf("%s: %w", entry.key, err)
		}
	}
	return nil
}

func (c *Config) normalizeSite() {
	c.Site.BaseURL = strings.TrimRight(strings.TrimSpace(c.Site.BaseURL), "/")
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = defaultBaseURL
	}
	c.Site.IndexURL = strings.TrimSpace(c.Site.IndexURL)
	if c.Site.IndexURL == "" {
		c.Site.IndexURL = c.Site.BaseURL + "/edicoes/"
	}
	c.Site.LoginURL = strings.TrimSpace(c.Site.LoginURL)
	if c.Site.LoginURL == "" {
		c.Site.LoginURL = c.Site.BaseURL + "/login/"
	}
	c.Site.ProbeURL = strings.TrimSpace(c.Site.ProbeURL)
	if c.Site.ProbeURL == "" {
		c.Site.ProbeURL = c.Site.IndexURL
	}
	c.Site.EditionURLTemplate = strings.TrimSpace(c.Site.EditionURLTemplate)
	if c.Site.EditionURLTemplate == "" {
		c.Site.EditionURLTemplate = c.Site.BaseURL + "/edicao/%s"
	}
	c.Site.UserAgent = strings.TrimSpace(c.Site.UserAgent)
	if c.Site.UserAgent == "" {
		c.Site.UserAgent = defaultUserAgent
	}
	c.Site.Username = firstNonEmpty(c.Site.Username, lookupEnv("QUIRE_SITE_USER", "LIBER_USER"))
	c.Site.Password = firstNonEmpty(c.Site.Password, lookupEnv("QUIRE_SITE_PASSWORD", "LIBER_PASS"))
}

func (c *Config) normalizeSession() {
	c.Session.BrowserBinary = strings.TrimSpace(c.Session.BrowserBinary)
	if c.Session.NavigationTimeout <= 0 {
		c.Session.NavigationTimeout = defaultNavigationTimeout
	}
	if c.Session.LoginTimeout <= 0 {
		c.Session.LoginTimeout = defaultLoginTimeout
	}
}

func (c *Config) normalizeScrape() {
	if c.Scrape.ArticleWorkers <= 0 {
		c.Scrape.ArticleWorkers = defaultArticleWorkers
	}
	if c.Scrape.RequestsPerSecond <= 0 {
		c.Scrape.RequestsPerSecond = defaultRequestsPerSecond
	}
	if c.Scrape.HTTPTimeout <= 0 {
		c.Scrape.HTTPTimeout = defaultHTTPTimeout
	}
	if c.Scrape.MaxImageBytes <= 0 {
		c.Scrape.MaxImageBytes = defaultMaxImageBytes
	}
}

func (c *Config) normalizeBook() {
	c.Book.Author = strings.TrimSpace(c.Book.Author)
	if c.Book.Author == "" {
		c.Book.Author = defaultBookAuthor
	}
	c.Book.Language = strings.TrimSpace(c.Book.Language)
	if c.Book.Language == "" {
		c.Book.Language = defaultBookLanguage
	}
	if c.Book.CoverMaxWidth <= 0 {
		c.Book.CoverMaxWidth = defaultCoverMaxWidth
	}
	if c.Book.CoverMaxHeight <= 0 {
		c.Book.CoverMaxHeight = defaultCoverMaxHeight
	}
	if c.Book.CoverQuality <= 0 {
		c.Book.CoverQuality = defaultCoverQuality
	}
	if c.Book.ImageQuality <= 0 {
		c.Book.ImageQuality = defaultImageQuality
	}
}

func (c *Config) normalizeConverter() error {
	c.Converter.Binary = strings.TrimSpace(c.Converter.Binary)
	if c.Converter.Binary == "" {
		c.Converter.Binary = defaultConverterBinary
	}
	if c.Converter.TimeoutSeconds <= 0 {
		c.Converter.TimeoutSeconds = defaultConverterTimeout
	}
	if strings.TrimSpace(c.Converter.CSSPath) != "" {
		var err error
		if c.Converter.CSSPath, err = expandPath(strings.TrimSpace(c.Converter.CSSPath)); err != nil {
			return fmt.Errorf("converter.css_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeMail() {
	c.Mail.Sender = firstNonEmpty(c.Mail.Sender, lookupEnv("QUIRE_MAIL_SENDER", "MAIL"))
	c.Mail.Password = firstNonEmpty(c.Mail.Password, lookupEnv("QUIRE_MAIL_PASSWORD", "SEC"))
	if len(c.Mail.Destinations) == 0 {
		if value := lookupEnv("QUIRE_DESTINATIONS", "KINDLE_EMAILS"); value != "" {
			c.Mail.Destinations = strings.Split(value, ",")
		}
	}
	c.Mail.Destinations = normalizeAddresses(c.Mail.Destinations)

	c.Mail.Host = strings.TrimSpace(c.Mail.Host)
	if c.Mail.Host == "" {
		c.Mail.Host = defaultMailHost
	}
	if c.Mail.Port <= 0 {
		c.Mail.Port = defaultMailPort
	}
	if c.Mail.MaxAttempts <= 0 {
		c.Mail.MaxAttempts = defaultMailMaxAttempts
	}
	if c.Mail.RetryDelaySeconds <= 0 {
		c.Mail.RetryDelaySeconds = defaultMailRetryDelay
	}
	if c.Mail.RetryMaxDelay <= 0 {
		c.Mail.RetryMaxDelay = defaultMailRetryMaxDelay
	}
	if c.Mail.TimeoutSeconds <= 0 {
		c.Mail.TimeoutSeconds = defaultMailTimeout
	}
	if strings.TrimSpace(c.Mail.Subject) == "" {
		c.Mail.Subject = defaultMailSubject
	}
	if strings.TrimSpace(c.Mail.Body) == "" {
		c.Mail.Body = defaultMailBody
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.DefaultLimit < 0 {
		c.Pipeline.DefaultLimit = 0
	}
	c.Pipeline.Redelivery = strings.ToLower(strings.TrimSpace(c.Pipeline.Redelivery))
	if c.Pipeline.Redelivery == "" {
		c.Pipeline.Redelivery = RedeliverPending
	}
	if c.Pipeline.DiscoveryAttempts <= 0 {
		c.Pipeline.DiscoveryAttempts = defaultDiscoveryAttempts
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// normalizeAddresses trims, lowercases and dedupes destinations, keeping order.
func normalizeAddresses(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		addr := strings.ToLower(strings.TrimSpace(value))
		if addr == "" {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
