package session

import (
	"context"
	"time"
)

// Page is a rendered document.
type Page struct {
	HTML string
	// URL is the final address after redirects.
	URL string
}

// LoginForm describes how to submit the site's login form.
type LoginForm struct {
	URL              string
	Username         string
	Password         string
	UsernameSelector string
	PasswordSelector string
	// SubmitSelectors are tried in order; the first one present is clicked.
	SubmitSelectors []string
	// SubmitTimeout bounds the wait for each submit selector.
	SubmitTimeout time.Duration
}

// Browser is one running browser instance.
type Browser interface {
	Render(ctx context.Context, url string) (Page, error)
	Login(ctx context.Context, form LoginForm) (Page, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	Close() error
}

// Driver starts browsers seeded with cookies.
type Driver interface {
	Open(ctx context.Context, cookies []Cookie) (Browser, error)
}
