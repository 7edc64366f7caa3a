package ledger

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"quire/internal/textutil"
)

// ImportResult summarises a history import.
type ImportResult struct {
	Imported []string
	Skipped  []string
}

// ImportHistory reads a plain history file with one delivered e-book per
// line, either a slug ("edicao-18") or an attachment name
// ("Edição 18 (Revista Liberta).epub"), and records each edition not yet in
// the ledger as delivered.
func (s *Store) ImportHistory(ctx context.Context, r io.Reader, at time.Time) (ImportResult, error) {
	var result ImportResult
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id := EditionIDFromHistory(line)
		if id == "" {
			result.Skipped = append(result.Skipped, line)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		delivered, err := s.IsDelivered(ctx, id)
		if err != nil {
			return result, err
		}
		if delivered {
			result.Skipped = append(result.Skipped, line)
			continue
		}
		if err := s.Append(ctx, Delivery{EditionID: id, DeliveredAt: at, Success: true, Source: SourceImport}); err != nil {
			return result, err
		}
		result.Imported = append(result.Imported, id)
	}
	if err := scanner.Err(); err != nil {
		return result, ioError("import history", fmt.Errorf("read history: %w", err))
	}
	return result, nil
}

// EditionIDFromHistory maps a history line back to an edition slug.
func EditionIDFromHistory(line string) string {
	name := strings.TrimSpace(filepath.Base(line))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if open := strings.LastIndex(name, " ("); open > 0 && strings.HasSuffix(name, ")") {
		name = name[:open]
	}
	return textutil.Slugify(name)
}
