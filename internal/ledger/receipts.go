package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Receipts returns the destinations that have confirmed id, keyed by
// address. Receipts track partial progress only; membership is decided by
// IsDelivered.
func (s *Store) Receipts(ctx context.Context, id string) (map[string]time.Time, error) {
	builder := sq.Select("destination", "confirmed_at").
		From("destination_receipts").
		Where(sq.Eq{"edition_id": id})
	out := make(map[string]time.Time)
	err := s.query(ctx, builder, func(rows *sql.Rows) error {
		var dest, at string
		if err := rows.Scan(&dest, &at); err != nil {
			return err
		}
		out[dest] = parseTime(at)
		return nil
	})
	if err != nil {
		return nil, ioError("receipts", err)
	}
	return out, nil
}

func insertReceipts(ctx context.Context, tx *sql.Tx, id string, destinations []string, at string) error {
	for _, dest := range destinations {
		dest = strings.ToLower(strings.TrimSpace(dest))
		if dest == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO destination_receipts (edition_id, destination, confirmed_at) VALUES (?, ?, ?)`,
			id, dest, at,
		); err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}
	}
	return nil
}
