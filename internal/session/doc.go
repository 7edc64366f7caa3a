// Package session owns the authenticated connection to the content site.
//
// A Store loads persisted cookies, probes whether they still authenticate,
// logs in through a headless browser when they do not, and persists the
// refreshed cookies atomically. Callers obtain a *Session via Acquire or the
// scoped With helper and must Close it; the browser is released on every exit
// path. Any login failure is reported as services.ErrAuth.
package session
