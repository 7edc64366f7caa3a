package staging

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"quire/internal/edition"
	"quire/internal/logging"
)

// Result contains the outcome of a cleanup pass.
type Result struct {
	// Editions lists the edition IDs pruned, or that would be with dryRun.
	Editions []string
	Removed  []string
	Freed    int64
	Errors   []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// Entry describes one edition's footprint on disk.
type Entry struct {
	EditionID    string
	ContentDir   string
	ArtifactPath string
	ModTime      time.Time
	Size         int64
}

// CleanPartial removes abandoned partial scrape directories older than maxAge.
func CleanPartial(ctx context.Context, contentRoot string, maxAge time.Duration, logger *slog.Logger) Result {
	var result Result
	contentRoot = strings.TrimSpace(contentRoot)
	if contentRoot == "" {
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := os.ReadDir(contentRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: contentRoot, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() || !isPartial(entry.Name()) {
			continue
		}
		dirPath := filepath.Join(contentRoot, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		result.remove(dirPath, logger, "partial scrape")
	}
	return result
}

// PruneDelivered removes the content set and e-book of every delivered
// edition whose content was last touched before maxAge ago. With dryRun the
// candidates are reported without touching the disk.
func PruneDelivered(ctx context.Context, ws edition.Workspace, delivered map[string]struct{}, maxAge time.Duration, dryRun bool, logger *slog.Logger) (Result, error) {
	var result Result
	if logger == nil {
		logger = logging.NewNop()
	}
	entries, err := List(ws)
	if err != nil {
		return result, err
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, ok := delivered[entry.EditionID]; !ok {
			continue
		}
		if entry.ModTime.After(cutoff) {
			continue
		}
		if dryRun {
			result.Editions = append(result.Editions, entry.EditionID)
			result.Freed += entry.Size
			continue
		}
		before := len(result.Errors)
		if entry.ContentDir != "" {
			result.remove(entry.ContentDir, logger, "delivered content")
		}
		if entry.ArtifactPath != "" {
			result.remove(entry.ArtifactPath, logger, "delivered e-book")
		}
		if len(result.Errors) == before {
			result.Editions = append(result.Editions, entry.EditionID)
			logger.Info("pruned delivered edition",
				logging.String(logging.FieldEditionID, entry.EditionID),
				logging.Int64("bytes", entry.Size),
				logging.String(logging.FieldEventType, "prune_edition"),
			)
		}
	}
	return result, nil
}

// List reports every edition that has content or an e-book on disk, sorted
// by edition ID.
func List(ws edition.Workspace) ([]Entry, error) {
	byID := make(map[string]*Entry)
	get := func(id string) *Entry {
		if e, ok := byID[id]; ok {
			return e
		}
		e := &Entry{EditionID: id}
		byID[id] = e
		return e
	}

	contentEntries, err := os.ReadDir(ws.ContentRoot)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, de := range contentEntries {
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		e := get(de.Name())
		e.ContentDir = filepath.Join(ws.ContentRoot, de.Name())
		e.Size += dirSize(e.ContentDir)
		if info.ModTime().After(e.ModTime) {
			e.ModTime = info.ModTime()
		}
	}

	artifactEntries, err := os.ReadDir(ws.ArtifactRoot)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, de := range artifactEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != ".epub" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		e := get(strings.TrimSuffix(de.Name(), ".epub"))
		e.ArtifactPath = filepath.Join(ws.ArtifactRoot, de.Name())
		e.Size += info.Size()
		if info.ModTime().After(e.ModTime) {
			e.ModTime = info.ModTime()
		}
	}

	out := make([]Entry, 0, len(byID))
	for _, e := range byID {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EditionID < out[j].EditionID })
	return out, nil
}

func (r *Result) remove(path string, logger *slog.Logger, what string) {
	size := dirSize(path)
	if err := os.RemoveAll(path); err != nil {
		r.Errors = append(r.Errors, CleanupError{Path: path, Error: err})
		logging.WarnWithContext(logger, "cleanup failed", "cleanup_failed",
			logging.String("path", path),
			logging.String("kind", what),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check data directory permissions"),
		)
		return
	}
	r.Removed = append(r.Removed, path)
	r.Freed += size
	logger.Debug("removed "+what,
		logging.String("path", path),
		logging.String(logging.FieldEventType, "cleanup"),
	)
}

func isPartial(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, ".partial-")
}

// dirSize sums regular file sizes under path. Unreadable entries are skipped.
func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}
