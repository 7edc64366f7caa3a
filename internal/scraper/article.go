package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"quire/internal/edition"
	"quire/internal/logging"
)

var errNoContent = errors.New("no readable content")

func (s *Scraper) scrapeArticle(ctx context.Context, dir string, ref edition.ArticleRef, images *imageStore) (*edition.ArticleEntry, error) {
	logger := logging.WithContext(ctx, s.logger).With(logging.Args(
		logging.Int("article", ref.Index),
		logging.String("url", ref.URL),
	)...)

	entry, err := s.extractArticle(ctx, dir, ref, images, logger)
	if err != nil {
		logging.WarnWithContext(logger, "article skipped", "article_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the edition is built without this article"),
		)
		return nil, err
	}
	logger.Debug("article saved", logging.String("file", entry.File), logging.String("title", entry.Title))
	return entry, nil
}

func (s *Scraper) extractArticle(ctx context.Context, dir string, ref edition.ArticleRef, images *imageStore, logger *slog.Logger) (*edition.ArticleEntry, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	html, err := s.fetcher.Page(ctx, ref.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	base, _ := url.Parse(ref.URL)

	title := cleanTitle(doc.Find("title").First().Text(), s.cfg.Book.Author)
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = fmt.Sprintf("Artigo %d", ref.Index+1)
	}
	name, bio := s.author(doc)

	root := s.contentRoot(doc)
	if root == nil {
		return nil, errNoContent
	}
	if len(s.cfg.Selectors.ArticleStrip) > 0 {
		root.Find(strings.Join(s.cfg.Selectors.ArticleStrip, ", ")).Remove()
	}
	root.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if abs := resolveURL(base, href); abs != "" {
			a.SetAttr("href", abs)
		}
	})
	root.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := resolveURL(base, imageSource(img))
		if src == "" {
			img.Remove()
			return
		}
		local, err := images.localize(ctx, src)
		if err != nil {
			logger.Warn("image dropped",
				logging.String("image_url", src),
				logging.Error(err),
				logging.String(logging.FieldEventType, "image_failed"),
			)
			img.Remove()
			return
		}
		img.SetAttr("src", local)
		for _, attr := range []string{"srcset", "sizes", "data-src", "data-lazy-src", "data-srcset"} {
			img.RemoveAttr(attr)
		}
	})

	body, err := root.Html()
	if err != nil {
		return nil, fmt.Errorf("render content: %w", err)
	}
	markdown, err := s.md.ConvertString(s.policy.Sanitize(body))
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return nil, errNoContent
	}

	file, err := writeChapter(dir, ref.Index, renderChapter(title, name, bio, markdown))
	if err != nil {
		return nil, err
	}
	return &edition.ArticleEntry{
		Index:  ref.Index,
		Title:  title,
		Author: name,
		File:   file,
		URL:    ref.URL,
	}, nil
}

// contentRoot returns the first configured content selector with text.
func (s *Scraper) contentRoot(doc *goquery.Document) *goquery.Selection {
	for _, selector := range s.cfg.Selectors.ArticleContent {
		found := doc.Find(selector).First()
		if found.Length() > 0 && strings.TrimSpace(found.Text()) != "" {
			return found
		}
	}
	return nil
}

func (s *Scraper) author(doc *goquery.Document) (string, string) {
	container := doc.Find(s.cfg.Selectors.AuthorContainer).First()
	if container.Length() == 0 {
		return "", ""
	}
	name := strings.TrimSpace(container.Find(s.cfg.Selectors.AuthorName).First().Text())
	bio := strings.TrimSpace(container.Find(s.cfg.Selectors.AuthorBio).First().Text())
	return name, bio
}

// cleanTitle drops the site suffix from a document title.
func cleanTitle(raw, siteName string) string {
	title := strings.TrimSpace(raw)
	for _, sep := range []string{"|", " \u2013 ", " \u2014 ", " - "} {
		if idx := strings.Index(title, sep); idx >= 0 {
			title = title[:idx]
		}
	}
	if siteName != "" {
		title = strings.ReplaceAll(title, siteName, "")
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(title), "-\u2013\u2014|"))
}

// renderChapter lays out one chapter: heading, byline, body and the
// author box quoted at the end.
func renderChapter(title, author, bio, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if author != "" {
		fmt.Fprintf(&b, "**%s**\n\n", author)
	}
	b.WriteString(body)
	b.WriteString("\n")
	if author != "" || bio != "" {
		fmt.Fprintf(&b, "\n>**%s**\n\n", author)
		if bio != "" {
			fmt.Fprintf(&b, "> *%s*\n\n", bio)
		}
		b.WriteString("---\n")
	}
	return b.String()
}

func imageSource(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if v, ok := sel.Attr(attr); ok {
			v = strings.TrimSpace(v)
			if v != "" && !strings.HasPrefix(v, "data:") {
				return v
			}
		}
	}
	if srcset, ok := sel.Attr("srcset"); ok {
		if first := strings.Fields(strings.Split(srcset, ",")[0]); len(first) > 0 {
			return first[0]
		}
	}
	return ""
}
