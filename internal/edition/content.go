package edition

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"quire/internal/fileutil"
)

// MetadataFile is written last into a content set directory; its presence
// with Complete set is what makes the set valid.
const MetadataFile = "metadata.json"

// ErrIncomplete reports a content set that is missing or was never finished.
var ErrIncomplete = errors.New("content set incomplete")

// ArticleEntry describes one extracted chapter.
type ArticleEntry struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	File   string `json:"file"`
	URL    string `json:"url"`
}

// FailedArticle records an article skipped during extraction.
type FailedArticle struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Metadata is the persisted description of a content set.
type Metadata struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Author         string          `json:"author"`
	SourceURL      string          `json:"source_url"`
	ScrapedAt      time.Time       `json:"scraped_at"`
	Complete       bool            `json:"complete"`
	CoverFile      string          `json:"cover_file,omitempty"`
	Articles       []ArticleEntry  `json:"articles"`
	FailedArticles []FailedArticle `json:"failed_articles,omitempty"`
	Images         []string        `json:"images,omitempty"`
}

// ContentSet is a complete, read-only working content directory.
type ContentSet struct {
	Dir string
	Metadata
}

// ChapterPaths returns the chapter files in source order.
func (c *ContentSet) ChapterPaths() []string {
	paths := make([]string, 0, len(c.Articles))
	for _, article := range c.Articles {
		paths = append(paths, filepath.Join(c.Dir, article.File))
	}
	return paths
}

// CoverPath returns the absolute cover path, or "" when the set has none.
func (c *ContentSet) CoverPath() string {
	if c.CoverFile == "" {
		return ""
	}
	return filepath.Join(c.Dir, c.CoverFile)
}

// LoadContentSet reads dir and returns ErrIncomplete unless its metadata
// is present, parseable and marked complete.
func LoadContentSet(dir string) (*ContentSet, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no %s", ErrIncomplete, dir, MetadataFile)
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrIncomplete, MetadataFile, err)
	}
	if !meta.Complete || len(meta.Articles) == 0 {
		return nil, fmt.Errorf("%w: %s not marked complete", ErrIncomplete, dir)
	}
	for _, article := range meta.Articles {
		if _, err := os.Stat(filepath.Join(dir, article.File)); err != nil {
			return nil, fmt.Errorf("%w: chapter %s: %v", ErrIncomplete, article.File, err)
		}
	}
	return &ContentSet{Dir: dir, Metadata: meta}, nil
}

// WriteMetadata persists meta atomically into dir.
func WriteMetadata(dir string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return fileutil.WriteFileAtomic(filepath.Join(dir, MetadataFile), data, 0o644)
}

// ChapterFileName names the chapter file for a zero-based source index.
func ChapterFileName(index int) string {
	return fmt.Sprintf("artigo_%02d.md", index)
}
