package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"quire/internal/fileutil"
)

var imageExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// imageStore downloads images once per edition and names them stably from
// their source URL.
type imageStore struct {
	scraper *Scraper
	dir     string

	mu    sync.Mutex
	files map[string]string
}

func newImageStore(s *Scraper, dir string) *imageStore {
	return &imageStore{scraper: s, dir: dir, files: make(map[string]string)}
}

// localize downloads src into the content set and returns its file name.
func (st *imageStore) localize(ctx context.Context, src string) (string, error) {
	st.mu.Lock()
	if name, ok := st.files[src]; ok {
		st.mu.Unlock()
		return name, nil
	}
	st.mu.Unlock()

	name, err := st.save(ctx, src, imageBaseName(src))
	if err != nil {
		return "", err
	}
	st.mu.Lock()
	st.files[src] = name
	st.mu.Unlock()
	return name, nil
}

// save downloads src to <base><ext> inside the content set.
func (st *imageStore) save(ctx context.Context, src, base string) (string, error) {
	if err := st.scraper.wait(ctx); err != nil {
		return "", err
	}
	data, err := st.scraper.fetcher.Download(ctx, src)
	if err != nil {
		return "", err
	}
	ext := imageExtension(src, data)
	if ext == "" {
		return "", fmt.Errorf("%s is not an image (%s)", src, http.DetectContentType(data))
	}
	name := base + ext
	if err := fileutil.WriteFileAtomic(filepath.Join(st.dir, name), data, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

func (st *imageStore) names() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return sortedValues(st.files)
}

func imageBaseName(src string) string {
	sum := sha256.Sum256([]byte(src))
	return "img-" + hex.EncodeToString(sum[:])[:16]
}

// imageExtension prefers the sniffed content type and falls back to the URL
// extension for formats the sniffer does not know.
func imageExtension(src string, data []byte) string {
	if ext, ok := imageExtensions[http.DetectContentType(data)]; ok {
		return ext
	}
	if parsed, err := url.Parse(src); err == nil {
		switch ext := strings.ToLower(path.Ext(parsed.Path)); ext {
		case ".svg", ".avif":
			return ext
		}
	}
	return ""
}
