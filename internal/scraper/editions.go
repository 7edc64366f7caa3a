package scraper

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"quire/internal/edition"
	"quire/internal/logging"
	"quire/internal/services"
)

// ListEditions returns the editions linked from the index page in the order
// the site lists them, newest first on the real site.
func (s *Scraper) ListEditions(ctx context.Context) ([]edition.Edition, error) {
	indexURL := s.cfg.Site.IndexURL
	if err := s.wait(ctx); err != nil {
		return nil, services.Wrap(services.ErrTransient, "discovery", "rate limit", "", err)
	}
	html, err := s.fetcher.Page(ctx, indexURL)
	if err != nil {
		if errors.Is(err, services.ErrAuth) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrTransient, "discovery", "fetch index", indexURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, services.Wrap(services.ErrDiscovery, "discovery", "parse index", "", err)
	}

	var editions []edition.Edition
	seen := make(map[string]struct{})
	doc.Find(s.cfg.Selectors.EditionLink).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		slug := slugFromHref(href)
		if edition.ValidateID(slug) != nil {
			return
		}
		if _, dup := seen[slug]; dup {
			return
		}
		seen[slug] = struct{}{}
		editions = append(editions, edition.New(slug, s.cfg.EditionURL(slug), len(editions)))
	})

	if len(editions) == 0 {
		return nil, services.Wrap(services.ErrDiscovery, "discovery", "match editions",
			"no links matched "+s.cfg.Selectors.EditionLink, nil)
	}
	s.logger.Info("editions discovered",
		logging.Int("count", len(editions)),
		logging.String(logging.FieldEventType, "editions_discovered"),
	)
	return editions, nil
}

// slugFromHref returns the last path segment of href.
func slugFromHref(href string) string {
	href = strings.TrimSpace(href)
	if parsed, err := url.Parse(href); err == nil {
		href = parsed.Path
	}
	href = strings.Trim(href, "/")
	if idx := strings.LastIndex(href, "/"); idx >= 0 {
		href = href[idx+1:]
	}
	return href
}

func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}
