package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"quire/internal/edition"
	"quire/internal/fileutil"
	"quire/internal/logging"
	"quire/internal/services"
)

type articleResult struct {
	entry *edition.ArticleEntry
	err   error
}

// ScrapeEdition extracts every article of ed into a fresh content set,
// replacing any previous set for the same edition.
func (s *Scraper) ScrapeEdition(ctx context.Context, ed edition.Edition) (*edition.ContentSet, error) {
	if err := edition.ValidateID(ed.ID); err != nil {
		return nil, services.Wrap(services.ErrValidation, "scrape", "validate id", "", err)
	}
	if ed.URL == "" {
		ed.URL = s.cfg.EditionURL(ed.ID)
	}
	if ed.Title == "" {
		ed.Title = edition.TitleFromSlug(ed.ID)
	}
	logger := logging.WithContext(ctx, s.logger)

	if err := s.wait(ctx); err != nil {
		return nil, scrapeError("rate limit", "", err)
	}
	html, err := s.fetcher.Page(ctx, ed.URL)
	if err != nil {
		if errors.Is(err, services.ErrAuth) {
			return nil, err
		}
		return nil, scrapeError("fetch edition page", ed.URL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, scrapeError("parse edition page", "", err)
	}
	base, _ := url.Parse(ed.URL)

	if src := imageSource(doc.Find(s.cfg.Selectors.Cover).First()); src != "" {
		ed.CoverURL = resolveURL(base, src)
	}
	ed.Articles = s.articleRefs(doc, base)
	if len(ed.Articles) == 0 {
		return nil, scrapeError("match articles", "no links matched "+s.cfg.Selectors.ArticleLink, nil)
	}
	logger.Info("edition page parsed",
		logging.Int("articles", len(ed.Articles)),
		logging.Bool("cover", ed.CoverURL != ""),
	)

	staging, err := s.workspace.NewStagingDir(ed.ID)
	if err != nil {
		return nil, scrapeError("create staging dir", "", err)
	}
	swapped := false
	defer func() {
		if !swapped {
			_ = os.RemoveAll(staging)
		}
	}()

	images := newImageStore(s, staging)
	coverFile := ""
	if ed.CoverURL != "" {
		name, err := images.save(ctx, ed.CoverURL, "cover")
		if err != nil {
			logging.WarnWithContext(logger, "cover download failed", "cover_failed",
				logging.String("url", ed.CoverURL),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the e-book will be built without a cover"),
			)
		} else {
			coverFile = name
		}
	}

	results := s.scrapeArticles(ctx, staging, ed.Articles, images)
	if err := ctx.Err(); err != nil {
		return nil, scrapeError("extract articles", "cancelled", err)
	}

	meta := edition.Metadata{
		ID:        ed.ID,
		Title:     ed.Title,
		Author:    s.cfg.Book.Author,
		SourceURL: ed.URL,
		ScrapedAt: s.now().UTC(),
		Complete:  true,
		CoverFile: coverFile,
	}
	for i, res := range results {
		if res.err != nil {
			meta.FailedArticles = append(meta.FailedArticles, edition.FailedArticle{
				Index: ed.Articles[i].Index,
				URL:   ed.Articles[i].URL,
				Error: res.err.Error(),
			})
			continue
		}
		meta.Articles = append(meta.Articles, *res.entry)
	}
	if len(meta.Articles) == 0 {
		return nil, scrapeError("extract articles", fmt.Sprintf("all %d articles failed", len(ed.Articles)), results[0].err)
	}
	meta.Images = images.names()

	if err := edition.WriteMetadata(staging, meta); err != nil {
		return nil, scrapeError("write metadata", "", err)
	}
	target := s.workspace.ContentDir(ed.ID)
	if err := fileutil.ReplaceDir(staging, target); err != nil {
		return nil, scrapeError("publish content set", "", err)
	}
	swapped = true

	logger.Info("edition scraped",
		logging.Int("articles", len(meta.Articles)),
		logging.Int("failed_articles", len(meta.FailedArticles)),
		logging.Int("images", len(meta.Images)),
		logging.String("content_dir", target),
		logging.String(logging.FieldEventType, "edition_scraped"),
	)
	return &edition.ContentSet{Dir: target, Metadata: meta}, nil
}

func (s *Scraper) articleRefs(doc *goquery.Document, base *url.URL) []edition.ArticleRef {
	var refs []edition.ArticleRef
	seen := make(map[string]struct{})
	doc.Find(s.cfg.Selectors.ArticleLink).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		link := resolveURL(base, href)
		if link == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		refs = append(refs, edition.ArticleRef{Index: len(refs), URL: link})
	})
	return refs
}

// scrapeArticles fetches refs with a bounded worker pool. Results keep the
// source order regardless of completion order.
func (s *Scraper) scrapeArticles(ctx context.Context, dir string, refs []edition.ArticleRef, images *imageStore) []articleResult {
	results := make([]articleResult, len(refs))
	workers := s.cfg.Scrape.ArticleWorkers
	if workers > len(refs) {
		workers = len(refs)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				entry, err := s.scrapeArticle(ctx, dir, refs[i], images)
				results[i] = articleResult{entry: entry, err: err}
			}
		}()
	}
dispatch:
	for i := range refs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(refs); j++ {
				results[j].err = ctx.Err()
			}
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

func scrapeError(operation, message string, err error) error {
	return services.Wrap(services.ErrScrape, "scrape", operation, message, err)
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func writeChapter(dir string, index int, body string) (string, error) {
	name := edition.ChapterFileName(index)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}
