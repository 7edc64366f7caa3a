package config

const (
	defaultConfigPath = "~/.config/quire/config.toml"
	defaultDataDir    = "~/.local/share/quire"

	defaultBaseURL   = "https://revistaliberta.com.br/digital"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	defaultNavigationTimeout = 30
	defaultLoginTimeout      = 5
	defaultArticleWorkers    = 4
	defaultRequestsPerSecond = 4
	defaultHTTPTimeout       = 30
	defaultMaxImageBytes     = 20 << 20

	defaultBookAuthor     = "Revista Liberta"
	defaultBookLanguage   = "pt-BR"
	defaultCoverMaxWidth  = 1200
	defaultCoverMaxHeight = 1920
	defaultCoverQuality   = 85
	defaultImageQuality   = 80

	defaultConverterBinary  = "pandoc"
	defaultConverterTimeout = 300

	defaultMailHost          = "smtp.gmail.com"
	defaultMailPort          = 465
	defaultMailMaxAttempts   = 3
	defaultMailRetryDelay    = 5
	defaultMailRetryMaxDelay = 60
	defaultMailTimeout       = 30
	defaultMailSubject       = "Liberta Magazine"
	defaultMailBody          = "Your requested magazine is attached."

	defaultPipelineLimit     = 5
	defaultDiscoveryAttempts = 3

	// RedeliverPending resends an edition only to destinations that have not
	// yet confirmed receipt.
	RedeliverPending = "pending"
	// RedeliverAll resends an edition to every configured destination.
	RedeliverAll = "all"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Site: Site{
			BaseURL:   defaultBaseURL,
			UserAgent: defaultUserAgent,
		},
		Selectors: Selectors{
			EditionLink:     "a.text-main-dark",
			Cover:           "img.w-100",
			ArticleLink:     "a.text-main-dark",
			ArticleContent:  []string{"article .entry-content", "article", "main", ".content", "body"},
			ArticleStrip:    []string{"nav", "aside", "header", "footer", "script", "style", "noscript", "form", "iframe", "#author", ".share", ".ads", ".advertisement", ".related"},
			AuthorContainer: "#author",
			AuthorName:      "h6",
			AuthorBio:       "p",
			LoginUsername:   `input[name="log"]`,
			LoginPassword:   `input[name="pwd"]`,
			LoginSubmit:     []string{"#wp-submit", `input[name="wp-submit"]`, `button[type="submit"]`},
		},
		Session: Session{
			Headless:          true,
			NavigationTimeout: defaultNavigationTimeout,
			LoginTimeout:      defaultLoginTimeout,
		},
		Scrape: Scrape{
			ArticleWorkers:    defaultArticleWorkers,
			RequestsPerSecond: defaultRequestsPerSecond,
			HTTPTimeout:       defaultHTTPTimeout,
			MaxImageBytes:     defaultMaxImageBytes,
		},
		Book: Book{
			Author:         defaultBookAuthor,
			Language:       defaultBookLanguage,
			CoverMaxWidth:  defaultCoverMaxWidth,
			CoverMaxHeight: defaultCoverMaxHeight,
			CoverQuality:   defaultCoverQuality,
			ImageQuality:   defaultImageQuality,
		},
		Converter: Converter{
			Binary:         defaultConverterBinary,
			TimeoutSeconds: defaultConverterTimeout,
		},
		Mail: Mail{
			Host:              defaultMailHost,
			Port:              defaultMailPort,
			MaxAttempts:       defaultMailMaxAttempts,
			RetryDelaySeconds: defaultMailRetryDelay,
			RetryMaxDelay:     defaultMailRetryMaxDelay,
			TimeoutSeconds:    defaultMailTimeout,
			Subject:           defaultMailSubject,
			Body:              defaultMailBody,
		},
		Pipeline: Pipeline{
			DefaultLimit:      defaultPipelineLimit,
			ReuseContent:      true,
			Redelivery:        RedeliverPending,
			DiscoveryAttempts: defaultDiscoveryAttempts,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Delivered:      true,
			RunSummary:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
