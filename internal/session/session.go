package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"quire/internal/logging"
	"quire/internal/services"
)

// ErrTooLarge reports a download exceeding the configured size limit.
var ErrTooLarge = errors.New("download exceeds size limit")

// Session is an authenticated view of the site. It is safe for concurrent use.
type Session struct {
	browser   Browser
	userAgent string
	loginURL  string
	maxBytes  int64
	logger    *slog.Logger
	relogin   func(context.Context) (*http.Client, error)

	mu         sync.RWMutex
	client     *http.Client
	generation int

	closeOnce sync.Once
	closeErr  error
}

// Page renders url and returns its HTML. Being bounced to the login page
// means the session expired mid-run; the session logs in again once and
// retries. A second bounce is reported as services.ErrAuth.
func (s *Session) Page(ctx context.Context, target string) (string, error) {
	s.mu.RLock()
	seen := s.generation
	s.mu.RUnlock()

	page, err := s.browser.Render(ctx, target)
	if err != nil {
		return "", err
	}
	if !s.bounced(page, target) {
		return page.HTML, nil
	}
	if err := s.reauthenticate(ctx, seen); err != nil {
		return "", err
	}
	page, err = s.browser.Render(ctx, target)
	if err != nil {
		return "", err
	}
	if s.bounced(page, target) {
		return "", authError("render", "redirected to login page after re-authentication", nil)
	}
	return page.HTML, nil
}

func (s *Session) bounced(page Page, target string) bool {
	return sameURL(page.URL, s.loginURL) && !sameURL(target, s.loginURL)
}

// reauthenticate logs in again unless another caller already did so since
// seen was observed.
func (s *Session) reauthenticate(ctx context.Context, seen int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != seen {
		return nil
	}
	if s.relogin == nil {
		return authError("render", "redirected to login page", nil)
	}
	s.logger.Warn("session expired mid-run; logging in again",
		logging.String(logging.FieldEventType, "session_expired"),
	)
	client, err := s.relogin(ctx)
	if err != nil {
		return err
	}
	s.client = client
	s.generation++
	return nil
}

func (s *Session) httpClient() *http.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Download fetches target over plain HTTP using the session cookies.
func (s *Session) Download(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.httpClient().Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "session", "download", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %s", target, resp.Status)
	}

	reader := io.Reader(resp.Body)
	if s.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, s.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "session", "download", target, err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %s larger than %d bytes", ErrTooLarge, target, s.maxBytes)
	}
	return data, nil
}

// Close releases the browser. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
	})
	return s.closeErr
}

func newJar(cookies []Cookie) (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	for _, c := range cookies {
		host := strings.TrimPrefix(c.Domain, ".")
		if host == "" {
			continue
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if strings.HasPrefix(c.Domain, ".") {
			cookie.Domain = c.Domain
		}
		if c.Expires > 0 {
			cookie.Expires = time.Unix(int64(c.Expires), 0)
		}
		jar.SetCookies(&url.URL{Scheme: scheme, Host: host, Path: path}, []*http.Cookie{cookie})
	}
	return jar, nil
}
