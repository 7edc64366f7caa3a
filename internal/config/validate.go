package config

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSite(); err != nil {
		return err
	}
	if err := c.validateSelectors(); err != nil {
		return err
	}
	if err := c.validateBook(); err != nil {
		return err
	}
	if err := c.validateMail(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return nil
}

// ValidateCredentials reports missing secrets needed for an actual run.
// Load does not require them so commands like history work offline.
func (c *Config) ValidateCredentials() error {
	var missing []string
	if c.Site.Username == "" {
		missing = append(missing, "site.username (or LIBER_USER)")
	}
	if c.Site.Password == "" {
		missing = append(missing, "site.password (or LIBER_PASS)")
	}
	if c.Mail.Sender == "" {
		missing = append(missing, "mail.sender (or MAIL)")
	}
	if c.Mail.Password == "" {
		missing = append(missing, "mail.password (or SEC)")
	}
	if len(c.Mail.Destinations) == 0 {
		missing = append(missing, "mail.destinations (or KINDLE_EMAILS)")
	}
	if len(missing) == 0 {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("missing required settings: %s. Set them in %s (create with 'quire config init') or export the environment variables", strings.Join(missing, ", "), defaultPath)
}

func (c *Config) validateSite() error {
	for key, value := range map[string]string{
		"site.base_url":  c.Site.BaseURL,
		"site.index_url": c.Site.IndexURL,
		"site.login_url": c.Site.LoginURL,
		"site.probe_url": c.Site.ProbeURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
		}
	}
	if strings.Count(c.Site.EditionURLTemplate, "%s") != 1 {
		return errors.New("site.edition_url_template must contain exactly one %s placeholder")
	}
	return nil
}

func (c *Config) validateSelectors() error {
	required := map[string]string{
		"selectors.edition_link":   c.Selectors.EditionLink,
		"selectors.article_link":   c.Selectors.ArticleLink,
		"selectors.login_username": c.Selectors.LoginUsername,
		"selectors.login_password": c.Selectors.LoginPassword,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if len(c.Selectors.LoginSubmit) == 0 {
		return errors.New("selectors.login_submit must list at least one selector")
	}
	if len(c.Selectors.ArticleContent) == 0 {
		return errors.New("selectors.article_content must list at least one selector")
	}
	return nil
}

func (c *Config) validateBook() error {
	if c.Book.CoverQuality > 100 {
		return errors.New("book.cover_quality must be between 1 and 100")
	}
	if c.Book.ImageQuality > 100 {
		return errors.New("book.image_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateMail() error {
	if c.Mail.Port > 65535 {
		return fmt.Errorf("mail.port out of range: %d", c.Mail.Port)
	}
	if c.Mail.Sender != "" {
		if _, err := mail.ParseAddress(c.Mail.Sender); err != nil {
			return fmt.Errorf("mail.sender %q is not a valid address: %w", c.Mail.Sender, err)
		}
	}
	for _, dest := range c.Mail.Destinations {
		if _, err := mail.ParseAddress(dest); err != nil {
			return fmt.Errorf("mail.destinations entry %q is not a valid address: %w", dest, err)
		}
	}
	if c.Mail.RetryMaxDelay < c.Mail.RetryDelaySeconds {
		return errors.New("mail.retry_max_delay_seconds must be >= mail.retry_delay_seconds")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	switch c.Pipeline.Redelivery {
	case RedeliverPending, RedeliverAll:
	default:
		return fmt.Errorf("pipeline.redelivery must be %q or %q, got %q", RedeliverPending, RedeliverAll, c.Pipeline.Redelivery)
	}
	return nil
}
