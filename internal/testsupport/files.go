package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"quire/internal/edition"
)

// WriteFile creates path with content, making parent directories as needed.
func WriteFile(t testing.TB, path string, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteContentSet lays down a complete scraped edition under dir with the
// given chapter titles and returns its metadata.
func WriteContentSet(t testing.TB, dir, id string, titles ...string) edition.Metadata {
	t.Helper()

	meta := edition.Metadata{
		ID:        id,
		Title:     edition.TitleFromSlug(id),
		Author:    "Revista Liberta",
		SourceURL: "https://example.com/edicao/" + id,
		ScrapedAt: time.Now().UTC(),
		Complete:  true,
	}
	for i, title := range titles {
		file := filepath.Join(dir, edition.ChapterFileName(i))
		WriteFile(t, file, "# "+title+"\n\nBody of "+title+".\n")
		meta.Articles = append(meta.Articles, edition.ArticleEntry{
			Index: i,
			Title: title,
			File:  filepath.Base(file),
			URL:   meta.SourceURL + "/" + filepath.Base(file),
		})
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	WriteFile(t, filepath.Join(dir, edition.MetadataFile), string(data))
	return meta
}

