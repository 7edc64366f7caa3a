package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"quire/internal/config"
	"quire/internal/logging"
	"quire/internal/services"
)

// Store hands out authenticated sessions and owns the persisted state.
type Store struct {
	cfg    *config.Config
	driver Driver
	logger *slog.Logger
	now    func() time.Time
}

// NewStore builds a session store backed by driver.
func NewStore(cfg *config.Config, driver Driver, logger *slog.Logger) *Store {
	return &Store{
		cfg:    cfg,
		driver: driver,
		logger: logging.NewComponentLogger(logger, "session"),
		now:    time.Now,
	}
}

// Acquire returns an authenticated session. The caller must Close it.
func (s *Store) Acquire(ctx context.Context) (*Session, error) {
	path := s.cfg.Paths.SessionFile
	state, err := readState(path)
	if err != nil {
		if !errors.Is(err, errCorruptState) {
			return nil, authError("load state", "", err)
		}
		logging.WarnWithContext(s.logger, "discarding unusable session state", "session_state_corrupt",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "a fresh login will be performed"),
		)
		if rmErr := s.Invalidate(); rmErr != nil {
			return nil, rmErr
		}
		state = nil
	}

	var cookies []Cookie
	if state != nil {
		cookies = state.Cookies
	}
	browser, err := s.driver.Open(ctx, cookies)
	if err != nil {
		return nil, authError("open browser", "", err)
	}

	sess, err := s.authenticate(ctx, browser, state != nil)
	if err != nil {
		_ = browser.Close()
		return nil, err
	}
	return sess, nil
}

// With acquires a session, runs fn, and closes the session on every exit path.
func (s *Store) With(ctx context.Context, fn func(*Session) error) (err error) {
	sess, err := s.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(sess)
}

// Invalidate removes the persisted session state.
func (s *Store) Invalidate() error {
	if err := os.Remove(s.cfg.Paths.SessionFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return authError("invalidate state", "", err)
	}
	return nil
}

func (s *Store) authenticate(ctx context.Context, browser Browser, hadState bool) (*Session, error) {
	if hadState {
		page, err := browser.Render(ctx, s.cfg.Site.ProbeURL)
		if err == nil && s.authenticated(page) {
			s.logger.Info("session restored",
				logging.String(logging.FieldEventType, "session_restored"),
			)
			return s.newSession(ctx, browser)
		}
		fields := []logging.Attr{logging.String("probe_url", s.cfg.Site.ProbeURL)}
		if err != nil {
			fields = append(fields, logging.Error(err))
		}
		s.logger.Info("persisted session rejected; logging in", logging.Args(fields...)...)
		if err := s.Invalidate(); err != nil {
			return nil, err
		}
	}

	if err := s.login(ctx, browser); err != nil {
		return nil, err
	}
	return s.newSession(ctx, browser)
}

// login submits the credentials through browser and persists the resulting
// cookies.
func (s *Store) login(ctx context.Context, browser Browser) error {
	if s.cfg.Site.Username == "" || s.cfg.Site.Password == "" {
		return authError("login", "site credentials are not configured", nil)
	}

	s.logger.Info("logging in",
		logging.String("user", s.cfg.Site.Username),
		logging.String(logging.FieldEventType, "session_login"),
	)
	page, err := browser.Login(ctx, LoginForm{
		URL:              s.cfg.Site.LoginURL,
		Username:         s.cfg.Site.Username,
		Password:         s.cfg.Site.Password,
		UsernameSelector: s.cfg.Selectors.LoginUsername,
		PasswordSelector: s.cfg.Selectors.LoginPassword,
		SubmitSelectors:  s.cfg.Selectors.LoginSubmit,
		SubmitTimeout:    time.Duration(s.cfg.Session.LoginTimeout) * time.Second,
	})
	if err != nil {
		return authError("login", "", err)
	}
	if !s.authenticated(page) {
		return authError("login", "still on login page after submit", nil)
	}

	cookies, err := browser.Cookies(ctx)
	if err != nil {
		return authError("save state", "", err)
	}
	if len(cookies) == 0 {
		return authError("save state", "login produced no cookies", nil)
	}
	if err := writeState(s.cfg.Paths.SessionFile, cookies, s.now()); err != nil {
		return authError("save state", "", err)
	}
	s.logger.Info("login succeeded; session saved",
		logging.String("path", s.cfg.Paths.SessionFile),
		logging.String(logging.FieldEventType, "session_saved"),
	)
	return nil
}

// authenticated reports whether page shows a logged-in view: the login form is
// absent and the browser was not redirected to the login page.
func (s *Store) authenticated(page Page) bool {
	if sameURL(page.URL, s.cfg.Site.LoginURL) {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return false
	}
	return doc.Find(s.cfg.Selectors.LoginUsername).Length() == 0
}

func (s *Store) newSession(ctx context.Context, browser Browser) (*Session, error) {
	client, err := s.cookieClient(ctx, browser)
	if err != nil {
		return nil, err
	}
	return &Session{
		browser:   browser,
		client:    client,
		userAgent: s.cfg.Site.UserAgent,
		loginURL:  s.cfg.Site.LoginURL,
		maxBytes:  s.cfg.Scrape.MaxImageBytes,
		logger:    s.logger,
		relogin: func(ctx context.Context) (*http.Client, error) {
			if err := s.Invalidate(); err != nil {
				return nil, err
			}
			if err := s.login(ctx, browser); err != nil {
				return nil, err
			}
			return s.cookieClient(ctx, browser)
		},
	}, nil
}

func (s *Store) cookieClient(ctx context.Context, browser Browser) (*http.Client, error) {
	cookies, err := browser.Cookies(ctx)
	if err != nil {
		return nil, authError("read cookies", "", err)
	}
	client, err := newHTTPClient(cookies, s.cfg.HTTPTimeout())
	if err != nil {
		return nil, authError("http client", "", err)
	}
	return client, nil
}

func sameURL(a, b string) bool {
	ua, errA := url.Parse(strings.TrimSpace(a))
	ub, errB := url.Parse(strings.TrimSpace(b))
	if errA != nil || errB != nil || ua.Host == "" {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host) &&
		strings.TrimRight(ua.Path, "/") == strings.TrimRight(ub.Path, "/")
}

func authError(operation, message string, err error) error {
	return services.Wrap(services.ErrAuth, "session", operation, message, err)
}

func newHTTPClient(cookies []Cookie, timeout time.Duration) (*http.Client, error) {
	jar, err := newJar(cookies)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &http.Client{Jar: jar, Timeout: timeout}, nil
}
