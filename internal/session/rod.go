package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"quire/internal/config"
	"quire/internal/logging"
)

// RodDriver launches Chrome through go-rod with stealth pages.
type RodDriver struct {
	Bin               string
	Headless          bool
	NavigationTimeout time.Duration
	Logger            *slog.Logger
}

// NewRodDriver configures a driver from the session settings.
func NewRodDriver(cfg *config.Config, logger *slog.Logger) *RodDriver {
	return &RodDriver{
		Bin:               cfg.Session.BrowserBinary,
		Headless:          cfg.Session.Headless,
		NavigationTimeout: cfg.NavigationTimeout(),
		Logger:            logging.NewComponentLogger(logger, "browser"),
	}
}

// Open launches a local browser and installs cookies.
func (d *RodDriver) Open(ctx context.Context, cookies []Cookie) (Browser, error) {
	l := launcher.New().Headless(d.Headless)
	l = l.Set("disable-blink-features", "AutomationControlled")
	if d.Bin != "" {
		l = l.Bin(d.Bin)
	}

	u, err := l.Launch()
	if err != nil {
		terminate(l)
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		terminate(l)
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	d.Logger.Debug("browser launched", logging.Bool("headless", d.Headless))

	rb := &rodBrowser{browser: b, launcher: l, navTimeout: d.NavigationTimeout, logger: d.Logger}
	if len(cookies) > 0 {
		if err := b.SetCookies(toCookieParams(cookies)); err != nil {
			_ = rb.Close()
			return nil, fmt.Errorf("install cookies: %w", err)
		}
	}
	return rb, nil
}

type rodBrowser struct {
	browser    *rod.Browser
	launcher   *launcher.Launcher
	navTimeout time.Duration
	logger     *slog.Logger
}

func (b *rodBrowser) newPage(ctx context.Context) (*rod.Page, *rod.Page, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, nil, fmt.Errorf("open tab: %w", err)
	}
	scoped := page.Context(ctx)
	if b.navTimeout > 0 {
		scoped = scoped.Timeout(b.navTimeout)
	}
	return page, scoped, nil
}

func (b *rodBrowser) Render(ctx context.Context, url string) (Page, error) {
	page, p, err := b.newPage(ctx)
	if err != nil {
		return Page{}, err
	}
	defer page.Close()

	if err := p.Navigate(url); err != nil {
		return Page{}, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		b.logger.Warn("wait load incomplete",
			logging.String("url", url),
			logging.Error(err),
			logging.String(logging.FieldEventType, "browser_wait_load"),
		)
	}
	return snapshot(p)
}

func (b *rodBrowser) Login(ctx context.Context, form LoginForm) (Page, error) {
	page, p, err := b.newPage(ctx)
	if err != nil {
		return Page{}, err
	}
	defer page.Close()

	if err := p.Navigate(form.URL); err != nil {
		return Page{}, fmt.Errorf("navigate %s: %w", form.URL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return Page{}, fmt.Errorf("load login page: %w", err)
	}

	user, err := p.Element(form.UsernameSelector)
	if err != nil {
		return Page{}, fmt.Errorf("find username field: %w", err)
	}
	if err := user.Input(form.Username); err != nil {
		return Page{}, fmt.Errorf("fill username: %w", err)
	}
	pass, err := p.Element(form.PasswordSelector)
	if err != nil {
		return Page{}, fmt.Errorf("find password field: %w", err)
	}
	if err := pass.Input(form.Password); err != nil {
		return Page{}, fmt.Errorf("fill password: %w", err)
	}

	submit, selector := findFirst(p, form.SubmitSelectors, form.SubmitTimeout)
	if submit == nil {
		return Page{}, errors.New("no login button matched " + strings.Join(form.SubmitSelectors, ", "))
	}
	b.logger.Debug("clicking login button", logging.String("selector", selector))

	wait := p.WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return Page{}, fmt.Errorf("click login button: %w", err)
	}
	wait()
	return snapshot(p)
}

func findFirst(p *rod.Page, selectors []string, timeout time.Duration) (*rod.Element, string) {
	parent := p.GetContext()
	for _, selector := range selectors {
		ctx, cancel := parent, context.CancelFunc(func() {})
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(parent, timeout)
		}
		el, err := p.Context(ctx).Element(selector)
		cancel()
		if err == nil && el != nil {
			return el.Context(parent), selector
		}
	}
	return nil, ""
}

func snapshot(p *rod.Page) (Page, error) {
	html, err := p.HTML()
	if err != nil {
		return Page{}, fmt.Errorf("read document: %w", err)
	}
	info, err := p.Info()
	if err != nil {
		return Page{}, fmt.Errorf("read page info: %w", err)
	}
	return Page{HTML: html, URL: info.URL}, nil
}

func (b *rodBrowser) Cookies(ctx context.Context) ([]Cookie, error) {
	cookies, err := b.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: string(c.SameSite),
		})
	}
	return out, nil
}

func (b *rodBrowser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.launcher != nil {
		if err != nil {
			terminate(b.launcher)
		} else {
			b.launcher.Cleanup()
		}
		b.launcher = nil
	}
	return err
}

// terminate kills the browser process and waits for it to exit. Cleanup alone
// blocks until the process exits on its own, which a wedged browser never does.
func terminate(l *launcher.Launcher) {
	if l.PID() == 0 {
		return
	}
	l.Kill()
	l.Cleanup()
}

func toCookieParams(cookies []Cookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			param.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		if c.SameSite != "" {
			param.SameSite = proto.NetworkCookieSameSite(c.SameSite)
		}
		params = append(params, param)
	}
	return params
}
