package scraper_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"quire/internal/config"
	"quire/internal/edition"
	"quire/internal/logging"
	"quire/internal/scraper"
	"quire/internal/services"
	"quire/internal/testsupport"
)

const site = "https://example.test/digital"

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]string
	files     map[string][]byte
	downloads []string
}

func (f *fakeFetcher) Page(_ context.Context, url string) (string, error) {
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("render %s: net::ERR_CONNECTION_RESET", url)
	}
	return html, nil
}

func (f *fakeFetcher) Download(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.downloads = append(f.downloads, url)
	f.mu.Unlock()
	data, ok := f.files[url]
	if !ok {
		return nil, fmt.Errorf("download %s: status 404 Not Found", url)
	}
	return data, nil
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSiteURL(site))
	cfg.Scrape.RequestsPerSecond = 1000
	return cfg
}

func articleHTML(title, author, bio, body string) string {
	return `<html><head><title>` + title + ` | Revista Liberta</title></head><body>
<header><nav>Menu</nav></header>
<article><div class="entry-content">` + body + `</div></article>
<div id="author"><h6>` + author + `</h6><p>` + bio + `</p></div>
<footer>Rodapé</footer>
</body></html>`
}

func editionFixture() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]string{
			site + "/edicao/edicao-18": `<html><body>
<img class="w-100" src="/capa.jpg">
<a class="text-main-dark" href="/digital/artigo-1/">Um</a>
<a class="text-main-dark" href="/digital/artigo-2/">Dois</a>
<a class="text-main-dark" href="/digital/artigo-3/">Três</a>
<a class="text-main-dark" href="/digital/artigo-1/">Um de novo</a>
</body></html>`,
			"https://example.test/digital/artigo-1/": articleHTML("Primeiro artigo", "Ana Autora", "Escreve sobre liberdade.",
				`<p>Texto com <a href="/digital/outro/">link</a>.</p><img src="/img/foto.png"><div class="share">Compartilhe</div>`),
			"https://example.test/digital/artigo-3/": articleHTML("Terceiro artigo", "", "",
				`<p>Sem autor.</p><img src="/img/foto.png"><img src="/img/perdida.png">`),
		},
		files: map[string][]byte{
			"https://example.test/capa.jpg":     jpegBytes,
			"https://example.test/img/foto.png": pngBytes,
		},
	}
}

func TestListEditions(t *testing.T) {
	cfg := newConfig(t)
	fetcher := &fakeFetcher{pages: map[string]string{
		cfg.Site.IndexURL: `<html><body>
<a class="text-main-dark" href="https://example.test/digital/edicao/edicao-20/">20</a>
<a class="text-main-dark" href="/digital/edicao/edicao-19/">19</a>
<a class="text-main-dark" href="/digital/edicao/edicao-20/">20 again</a>
<a class="other" href="/digital/edicao/edicao-17/">ignored</a>
<a class="text-main-dark" href="/digital/edicao/edicao-18">18</a>
</body></html>`,
	}}
	s := scraper.New(cfg, fetcher, logging.NewNop())

	editions, err := s.ListEditions(context.Background())
	if err != nil {
		t.Fatalf("ListEditions: %v", err)
	}
	var ids []string
	for _, ed := range editions {
		ids = append(ids, ed.ID)
	}
	if strings.Join(ids, ",") != "edicao-20,edicao-19,edicao-18" {
		t.Fatalf("unexpected editions %v", ids)
	}
	if editions[2].Position != 2 || editions[2].URL != site+"/edicao/edicao-18" || editions[2].Title != "Edição 18" {
		t.Fatalf("unexpected edition %+v", editions[2])
	}
}

func TestListEditionsErrors(t *testing.T) {
	cfg := newConfig(t)

	empty := &fakeFetcher{pages: map[string]string{cfg.Site.IndexURL: `<html><body><p>nada</p></body></html>`}}
	_, err := scraper.New(cfg, empty, logging.NewNop()).ListEditions(context.Background())
	if !errors.Is(err, services.ErrDiscovery) {
		t.Fatalf("expected discovery error, got %v", err)
	}

	unreachable := &fakeFetcher{pages: map[string]string{}}
	_, err = scraper.New(cfg, unreachable, logging.NewNop()).ListEditions(context.Background())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if errors.Is(err, services.ErrDiscovery) {
		t.Fatal("fetch failure must be distinguishable from an empty index")
	}
}

func TestScrapeEditionWritesContentSet(t *testing.T) {
	cfg := newConfig(t)
	fetcher := editionFixture()
	s := scraper.New(cfg, fetcher, logging.NewNop())

	set, err := s.ScrapeEdition(context.Background(), edition.New("edicao-18", "", 0))
	if err != nil {
		t.Fatalf("ScrapeEdition: %v", err)
	}
	wantDir := filepath.Join(cfg.Paths.ContentDir, "edicao-18")
	if set.Dir != wantDir {
		t.Fatalf("unexpected dir %q", set.Dir)
	}
	if len(set.Articles) != 2 || set.Articles[0].Index != 0 || set.Articles[1].Index != 2 {
		t.Fatalf("expected articles 0 and 2 in source order, got %+v", set.Articles)
	}
	if len(set.FailedArticles) != 1 || set.FailedArticles[0].Index != 1 {
		t.Fatalf("expected article 1 recorded as failed, got %+v", set.FailedArticles)
	}
	if set.CoverFile != "cover.jpg" {
		t.Fatalf("unexpected cover file %q", set.CoverFile)
	}
	if len(set.Images) != 1 {
		t.Fatalf("expected one shared image, got %v", set.Images)
	}

	loaded, err := edition.LoadContentSet(wantDir)
	if err != nil {
		t.Fatalf("LoadContentSet: %v", err)
	}
	if !loaded.Complete || loaded.Title != "Edição 18" {
		t.Fatalf("unexpected metadata %+v", loaded.Metadata)
	}

	first, err := os.ReadFile(filepath.Join(wantDir, "artigo_00.md"))
	if err != nil {
		t.Fatalf("read chapter: %v", err)
	}
	chapter := string(first)
	for _, fragment := range []string{
		"# Primeiro artigo\n",
		"**Ana Autora**",
		"https://example.test/digital/outro/",
		set.Images[0],
		">**Ana Autora**",
		"> *Escreve sobre liberdade.*",
		"---",
	} {
		if !strings.Contains(chapter, fragment) {
			t.Fatalf("expected %q in chapter:\n%s", fragment, chapter)
		}
	}
	for _, stripped := range []string{"Menu", "Compartilhe", "Rodapé"} {
		if strings.Contains(chapter, stripped) {
			t.Fatalf("expected %q stripped from chapter:\n%s", stripped, chapter)
		}
	}

	third, err := os.ReadFile(filepath.Join(wantDir, "artigo_02.md"))
	if err != nil {
		t.Fatalf("read chapter: %v", err)
	}
	if strings.Contains(string(third), "perdida") || strings.Contains(string(third), "---") {
		t.Fatalf("unexpected third chapter:\n%s", third)
	}

	assertNoStaging(t, cfg.Paths.ContentDir)
}

func TestScrapeEditionReplacesPreviousSet(t *testing.T) {
	cfg := newConfig(t)
	stale := filepath.Join(cfg.Paths.ContentDir, "edicao-18", "artigo_07.md")
	testsupport.WriteFile(t, stale, "# Old\n")

	if _, err := scraper.New(cfg, editionFixture(), logging.NewNop()).ScrapeEdition(context.Background(), edition.New("edicao-18", "", 0)); err != nil {
		t.Fatalf("ScrapeEdition: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("re-scrape must overwrite, not merge")
	}
}

func TestScrapeEditionAllArticlesFail(t *testing.T) {
	cfg := newConfig(t)
	fetcher := editionFixture()
	delete(fetcher.pages, "https://example.test/digital/artigo-1/")
	delete(fetcher.pages, "https://example.test/digital/artigo-3/")

	_, err := scraper.New(cfg, fetcher, logging.NewNop()).ScrapeEdition(context.Background(), edition.New("edicao-18", "", 0))
	if !errors.Is(err, services.ErrScrape) {
		t.Fatalf("expected scrape error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Paths.ContentDir, "edicao-18")); !os.IsNotExist(statErr) {
		t.Fatal("failed scrape must not publish a content set")
	}
	assertNoStaging(t, cfg.Paths.ContentDir)
}

func TestScrapeEditionWithoutArticleLinks(t *testing.T) {
	cfg := newConfig(t)
	fetcher := &fakeFetcher{pages: map[string]string{
		site + "/edicao/edicao-18": `<html><body><p>Em breve</p></body></html>`,
	}}
	_, err := scraper.New(cfg, fetcher, logging.NewNop()).ScrapeEdition(context.Background(), edition.New("edicao-18", "", 0))
	if !errors.Is(err, services.ErrScrape) {
		t.Fatalf("expected scrape error, got %v", err)
	}
}

func TestScrapeEditionPageFailure(t *testing.T) {
	cfg := newConfig(t)
	_, err := scraper.New(cfg, &fakeFetcher{}, logging.NewNop()).ScrapeEdition(context.Background(), edition.New("edicao-18", "", 0))
	if !errors.Is(err, services.ErrScrape) {
		t.Fatalf("expected scrape error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Paths.ContentDir, "edicao-18")); !os.IsNotExist(statErr) {
		t.Fatal("nothing may be written when the edition page fails")
	}
}

func assertNoStaging(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		t.Fatalf("read content root: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			t.Fatalf("staging directory left behind: %s", entry.Name())
		}
	}
}
